package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ReadinessCheck reports whether the session backend is reachable.
type ReadinessCheck func(ctx context.Context) error

const readyTimeout = 2 * time.Second

// HealthHandler serves /health-check/{action}: "ping" is liveness, "ready"
// probes the session backend.
type HealthHandler struct {
	ready ReadinessCheck
	log   zerolog.Logger
}

// NewHealthHandler builds the handler. A nil check makes "ready" always succeed.
func NewHealthHandler(ready ReadinessCheck, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{ready: ready, log: log}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "pong"})
	case "ready":
		if h.ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := h.ready(ctx); err != nil {
				h.log.Warn().Err(err).Msg("readiness check failed")
				writeError(w, http.StatusServiceUnavailable, "session store unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
