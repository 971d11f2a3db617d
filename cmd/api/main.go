package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"server/internal/credits"
	"server/internal/distribute"
	httpapi "server/internal/http"
	"server/internal/http/handlers"
	"server/internal/inference"
	"server/internal/infra"
	"server/internal/materialize"
	"server/internal/metrics"
	"server/internal/scratch"
	"server/internal/tryon"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: db connection failed")
	}
	defer pool.Close()
	runner := infra.NewSQLRunner(pool, logger)

	redisClient, err := infra.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: redis connection failed")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	scratchStore, err := scratch.NewStore(filepath.Join(cfg.ScratchPath, "tryon-scratch"))
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure scratch storage")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	instruments := metrics.New(registry)

	gateway := credits.NewGateway(credits.NewPGStore(runner), redisClient, logger)

	var locker tryon.Locker
	if redisClient != nil {
		locker = &tryon.RedisLocker{Client: redisClient, TTL: cfg.InferenceTimeout + time.Minute}
	}

	service := tryon.NewService(tryon.Options{
		Credits: gateway,
		Inference: inference.NewClient(inference.Options{
			BaseURL:       cfg.TryOnBaseURL,
			APIKey:        cfg.TryOnAPIKey,
			Model:         cfg.TryOnModel,
			FallbackModel: cfg.TryOnFallbackModel,
			Timeout:       cfg.InferenceTimeout,
		}),
		Materializer: materialize.New(materialize.Options{MaxBytes: cfg.MaxUploadBytes * 4}),
		Scratch:      scratchStore,
		Locker:       locker,
		Metrics:      instruments,
		Logger:       logger,
	})

	var sharers []distribute.Sharer
	if cfg.ShareRelayURL != "" {
		sharers = append(sharers, &distribute.RelaySharer{RelayURL: cfg.ShareRelayURL})
	}
	var links *distribute.LinkSharer
	if cfg.ShareBaseURL != "" {
		links = &distribute.LinkSharer{
			BaseDir: filepath.Join(cfg.ScratchPath, "tryon-shared"),
			BaseURL: cfg.ShareBaseURL,
		}
		if err := os.MkdirAll(links.BaseDir, 0o755); err != nil {
			logger.Fatal().Err(err).Msg("api: failed to configure share directory")
		}
		sharers = append(sharers, links)
	}

	app := &handlers.App{
		Logger:  logger,
		Config:  cfg,
		TryOn:   service,
		Credits: gateway,
		Share:   distribute.NewChain(logger, sharers...),
		Links:   links,
		Metrics: instruments,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, registry))

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
