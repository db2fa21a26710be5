package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-notify-nosql/internal/config"
	"github.com/go-notify-nosql/internal/transport/http/handler"
	appmiddleware "github.com/go-notify-nosql/internal/transport/http/middleware"
	"github.com/go-notify-nosql/internal/transport/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Roles allowed to call the internal emission endpoints.
const (
	RoleService = "service"
	RoleAdmin   = "admin"
)

// NewRouter builds and returns the application router. ctx bounds background
// work owned by the router, such as rate-limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.Logging(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID", "X-User-Role"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var (
		authMw   func(http.Handler) http.Handler
		verifier ws.Verifier
	)
	if deps.JWTProvider != nil {
		authMw = appmiddleware.Auth(deps.JWTProvider)
		verifier = deps.JWTProvider
	} else {
		authMw = appmiddleware.DevAuth
	}

	// 20 requests/second, burst of 40, per caller IP on the internal endpoints.
	internalRL := appmiddleware.NewRateLimiter(ctx, rate.Limit(20), 40)

	healthH := handler.NewHealthHandler(deps.Ready)
	notifH := handler.NewNotificationHandler(deps.Notifications)
	realtimeH := handler.NewRealtimeHandler(deps.Rooms)
	internalH := handler.NewInternalHandler(deps.Notifier)
	wsH := ws.NewHandler(deps.Rooms, verifier, cfg.AllowedOrigins, cfg.WSSendQueue, deps.Logger)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Check)
		// The socket authenticates with the token carried in its join frame.
		r.Get("/ws", wsH.ServeHTTP)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/notifications", notifH.List)
			r.Get("/notifications/unread-count", notifH.UnreadCount)
			r.Put("/notifications/read-all", notifH.MarkAllRead)
			r.Put("/notifications/{id}/read", notifH.MarkRead)
			r.Delete("/notifications/{id}", notifH.Delete)
			r.Get("/realtime/pending", realtimeH.Pending)

			// Service-to-service routes
			r.Group(func(r chi.Router) {
				r.Use(appmiddleware.RequireRole(RoleService, RoleAdmin))
				r.Use(internalRL.Limit)

				r.Post("/internal/notifications", internalH.Notify)
				r.Post("/internal/events/document-status", internalH.DocumentStatus)
				r.Post("/internal/events/application-status", internalH.ApplicationStatus)
			})
		})
	})

	return r
}
