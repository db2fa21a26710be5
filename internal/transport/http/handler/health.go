package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthHandler handles health-check endpoints. "ping" is liveness; "ready"
// also checks the backing store when a check is configured.
type HealthHandler struct {
	ready func(ctx context.Context) error
}

func NewHealthHandler(ready func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ready: ready}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "ping":
		writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "pong"})
	case "ready":
		if h.ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := h.ready(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, "store unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "ready"})
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}
