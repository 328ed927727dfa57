package web

import (
	"context"
	"net/http"
	"time"
)

type healthHandlers struct {
	service string
	ping    Pinger
}

// Home answers GET / with the service identity.
func (h *healthHandlers) Home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Registra.Mood " + h.service + " service",
		"service": h.service,
		"status":  "OK",
	})
}

// Health answers GET /health without touching dependencies.
func (h *healthHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.service,
	})
}

// HealthDB answers GET /health/db by pinging the document store.
func (h *healthHandlers) HealthDB(w http.ResponseWriter, r *http.Request) {
	if h.ping == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"database": "not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.ping(ctx); err != nil {
		logCtx(r).Warn().Err(err).Msg("database ping failed")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"database": "unreachable",
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"database": "connected"})
}
