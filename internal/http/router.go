package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"server/internal/http/handlers"
	"server/internal/middleware"
)

func NewRouter(app *handlers.App, registry *prometheus.Registry) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP, chimw.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(app.Logger))
	r.Use(middleware.CORS(app.Config.AllowedOrigins))
	r.Use(middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute))
	r.Use(middleware.I18N("en"))
	r.Use(middleware.AuthOptional(app.Config.JWTSecret))

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/credits/balance", app.CreditsBalance)

	r.Route("/v1/tryon", func(r chi.Router) {
		r.Post("/", app.TryOnGenerate)
		r.Route("/{job_id}", func(r chi.Router) {
			r.Get("/", app.TryOnStatus)
			r.Delete("/", app.TryOnAbandon)
			r.Get("/progress", app.TryOnProgress)
			r.Get("/progress/stream", app.TryOnProgressStream)
			r.Get("/result", app.TryOnResult)
			r.Get("/download", app.TryOnDownload)
			r.Get("/download.zip", app.TryOnDownloadZip)
			r.Post("/share", app.TryOnShare)
		})
	})

	if registry != nil {
		r.Method(stdhttp.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r
}
