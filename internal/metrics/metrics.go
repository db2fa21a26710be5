// Package metrics holds the Prometheus instruments for the notification core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_ws_connections",
			Help: "Current number of open websocket connections",
		},
	)

	WSJoinedRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_ws_rooms",
			Help: "Current number of user rooms with at least one joined connection",
		},
	)

	// Event Metrics
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_events_emitted_total",
			Help: "Events emitted to users, by kind and delivery path",
		},
		[]string{"event", "path"}, // path: "live", "buffered", "buffer_failed"
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_events_dropped_total",
			Help: "Live frames dropped because a connection's send queue was full",
		},
	)

	BufferDrains = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_buffer_drains_total",
			Help: "Pending-event buffer drains",
		},
	)

	// Notification Metrics
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_notifications_created_total",
			Help: "Notifications persisted, by type",
		},
		[]string{"type"},
	)

	OfflinePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_offline_publishes_total",
			Help: "Offline fan-out publishes, by result",
		},
		[]string{"result"}, // "ok", "error", "skipped"
	)
)
