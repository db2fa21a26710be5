package handler

import (
	"context"
	"net/http"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/pkg/validate"
)

// Notifier is the emission API exposed to other services.
type Notifier interface {
	Notify(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error)
	DocumentStatusChanged(ctx context.Context, userID string, ev domain.DocumentStatusChanged) (*domain.Notification, error)
	ApplicationStatusChanged(ctx context.Context, userID string, ev domain.ApplicationStatusChanged) (*domain.Notification, error)
}

type documentStatusRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
	domain.DocumentStatusChanged
}

type applicationStatusRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
	domain.ApplicationStatusChanged
}

// InternalHandler accepts notifications and workflow events from trusted
// services.
type InternalHandler struct {
	notifier Notifier
}

func NewInternalHandler(n Notifier) *InternalHandler {
	return &InternalHandler{notifier: n}
}

func (h *InternalHandler) Notify(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateNotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, err)
		return
	}
	n, err := h.notifier.Notify(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NotificationEnvelope{Success: true, Notification: n})
}

func (h *InternalHandler) DocumentStatus(w http.ResponseWriter, r *http.Request) {
	var req documentStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	n, err := h.notifier.DocumentStatusChanged(r.Context(), req.UserID, req.DocumentStatusChanged)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NotificationEnvelope{Success: true, Notification: n})
}

func (h *InternalHandler) ApplicationStatus(w http.ResponseWriter, r *http.Request) {
	var req applicationStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		httpError(w, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		httpError(w, err)
		return
	}
	n, err := h.notifier.ApplicationStatusChanged(r.Context(), req.UserID, req.ApplicationStatusChanged)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, NotificationEnvelope{Success: true, Notification: n})
}
