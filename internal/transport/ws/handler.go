// Package ws serves the realtime channel: a websocket endpoint where a client
// joins its user room, receives live events, and drains what it missed.
package ws

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-notify-nosql/internal/application/realtime"
	"github.com/go-notify-nosql/internal/domain"
	jwtinfra "github.com/go-notify-nosql/internal/infrastructure/jwt"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Rooms is the part of realtime.Manager the socket needs.
type Rooms interface {
	Join(userID string, s realtime.Subscriber) error
	Leave(s realtime.Subscriber)
	Drain(ctx context.Context, userID string) ([]domain.Envelope, error)
}

// Verifier checks the token carried by a join frame.
type Verifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

type Handler struct {
	rooms     Rooms
	verify    Verifier
	upgrader  websocket.Upgrader
	sendQueue int
	logger    *zap.Logger
}

// NewHandler builds the upgrade handler. A nil verify trusts the userId in
// join frames. allowedOrigins containing "*" accepts any origin.
func NewHandler(rooms Rooms, verify Verifier, allowedOrigins []string, sendQueue int, logger *zap.Logger) *Handler {
	if sendQueue <= 0 {
		sendQueue = 64
	}
	return &Handler{
		rooms:  rooms,
		verify: verify,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		sendQueue: sendQueue,
		logger:    logger.Named("ws"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Debug("upgrade failed", zap.Error(err))
		return
	}
	c := newClient(conn, h.rooms, h.verify, h.sendQueue, h.logger)
	c.logger.Debug("connection opened", zap.String("remote", r.RemoteAddr))
	c.run(context.WithoutCancel(r.Context()))
	c.logger.Debug("connection closed")
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}
