package http

import (
	"context"

	"github.com/go-notify-nosql/internal/application/notification"
	"github.com/go-notify-nosql/internal/application/realtime"
	jwtinfra "github.com/go-notify-nosql/internal/infrastructure/jwt"
	"github.com/go-notify-nosql/internal/transport/http/handler"
	"go.uber.org/zap"
)

// Deps holds everything the router wires into handlers.
type Deps struct {
	Notifications notification.Service
	Rooms         *realtime.Manager
	Notifier      handler.Notifier

	// JWTProvider is nil when no keys are configured; the router then falls
	// back to trusting X-User-ID outside production.
	JWTProvider *jwtinfra.Provider

	// Ready checks the backing store for /health-check/ready. May be nil.
	Ready func(ctx context.Context) error

	Logger *zap.Logger
}
