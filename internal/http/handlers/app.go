package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"server/internal/credits"
	"server/internal/distribute"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/metrics"
	"server/internal/middleware"
	"server/internal/tryon"
)

type App struct {
	Logger  zerolog.Logger
	Config  *infra.Config
	TryOn   *tryon.Service
	Credits *credits.Gateway
	Share   *distribute.Chain
	Links   *distribute.LinkSharer
	Metrics *metrics.Metrics
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

// fail translates pipeline errors onto the HTTP surface. The taxonomy is
// stable so storefront clients can key their messaging off the code field.
func (a *App) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrMissingInput):
		a.error(w, http.StatusBadRequest, "missing_input", "both garment and person images are required")
	case errors.Is(err, domain.ErrUnauthenticated):
		a.error(w, http.StatusUnauthorized, "unauthenticated", "sign in to generate a try-on")
	case errors.Is(err, domain.ErrQuotaExhausted):
		a.error(w, http.StatusPaymentRequired, "quota_exhausted", "no generation credits remaining")
	case errors.Is(err, domain.ErrJobInFlight):
		a.error(w, http.StatusConflict, "job_in_flight", "a generation is already running for this account")
	case errors.Is(err, domain.ErrJobNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrResultNotReady):
		a.error(w, http.StatusConflict, "result_not_ready", "generation has not finished")
	default:
		a.failTyped(w, err)
	}
}

func (a *App) failTyped(w http.ResponseWriter, err error) {
	var transport *domain.TransportError
	if errors.As(err, &transport) {
		a.error(w, http.StatusGatewayTimeout, "transport", "inference backend unreachable")
		return
	}
	var inference *domain.InferenceError
	if errors.As(err, &inference) {
		a.error(w, http.StatusBadGateway, "inference_failure", inference.Reason)
		return
	}
	var downstream *domain.DownstreamError
	if errors.As(err, &downstream) {
		a.error(w, http.StatusBadGateway, "downstream_fetch", "generated image could not be retrieved")
		return
	}
	a.Logger.Error().Err(err).Msg("handlers: unclassified failure")
	a.error(w, http.StatusInternalServerError, "internal", "internal error")
}
