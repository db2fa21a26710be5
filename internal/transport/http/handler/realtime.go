package handler

import (
	"context"
	"net/http"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/transport/http/middleware"
)

// Drainer hands back and clears a user's buffered realtime events.
type Drainer interface {
	Drain(ctx context.Context, userID string) ([]domain.Envelope, error)
}

// RealtimeHandler lets clients without a socket fetch what they missed.
type RealtimeHandler struct {
	rooms Drainer
}

func NewRealtimeHandler(rooms Drainer) *RealtimeHandler {
	return &RealtimeHandler{rooms: rooms}
}

func (h *RealtimeHandler) Pending(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	events, err := h.rooms.Drain(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	if events == nil {
		events = []domain.Envelope{}
	}
	writeJSON(w, http.StatusOK, EventsEnvelope{Success: true, Events: events})
}
