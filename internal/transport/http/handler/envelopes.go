package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/goccy/go-json"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NotificationsEnvelope wraps a page of notifications.
type NotificationsEnvelope struct {
	Success       bool                  `json:"success"`
	Notifications []domain.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
}

type NotificationEnvelope struct {
	Success      bool                 `json:"success"`
	Notification *domain.Notification `json:"notification"`
}

type UnreadCountEnvelope struct {
	Success     bool `json:"success"`
	UnreadCount int  `json:"unreadCount"`
}

// EventsEnvelope wraps drained realtime events, oldest first.
type EventsEnvelope struct {
	Success bool              `json:"success"`
	Events  []domain.Envelope `json:"events"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps domain errors onto status codes. Store outages surface as
// 503 so callers know to retry.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body", domain.ErrBadRequest)
	}
	return nil
}
