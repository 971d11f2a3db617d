package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	RedisAddr   string
	RedisDB     int
	JWTSecret   string

	TryOnBaseURL       string
	TryOnAPIKey        string
	TryOnModel         string
	TryOnFallbackModel string
	InferenceTimeout   time.Duration

	ScratchPath    string
	MaxUploadBytes int64

	ShareRelayURL string
	ShareBaseURL  string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	RateLimitPerMin  int
	AllowedOrigins   []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		TryOnBaseURL:       getEnv("TRYON_BASE_URL", "https://api.tryon.example.com/v1"),
		TryOnAPIKey:        os.Getenv("TRYON_API_KEY"),
		TryOnModel:         getEnv("TRYON_MODEL", "tryon-hd"),
		TryOnFallbackModel: getEnv("TRYON_FALLBACK_MODEL", "tryon-lite"),
		InferenceTimeout:   time.Second * time.Duration(getEnvInt("INFERENCE_TIMEOUT_SECONDS", 240)),

		ScratchPath:    getEnv("SCRATCH_PATH", os.TempDir()),
		MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_MB", 10)) * 1024 * 1024,

		ShareRelayURL: os.Getenv("SHARE_RELAY_URL"),
		ShareBaseURL:  os.Getenv("SHARE_BASE_URL"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:  getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		AllowedOrigins:   splitEnvList("ALLOWED_ORIGINS"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.InferenceTimeout <= 0 {
		return nil, fmt.Errorf("INFERENCE_TIMEOUT_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
