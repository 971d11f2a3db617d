package handlers

import (
	"net/http"
)

// CreditsBalance reports the caller's generation allowance. Anonymous
// sessions get an explicit unknown balance rather than an error, because the
// storefront renders the try-on entry point before sign-in.
func (a *App) CreditsBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := a.Credits.Balance(r.Context(), a.currentUserID(r))
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to load balance")
		return
	}
	if !balance.Known {
		a.json(w, http.StatusOK, map[string]any{"known": false})
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"known":     true,
		"granted":   balance.Granted,
		"used":      balance.Used,
		"remaining": balance.Remaining(),
	})
}
