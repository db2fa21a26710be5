// Package realtime keeps the registry of live connections per user and
// delivers events to them, recording every event in the user's pending
// buffer first so offline users can replay it on reconnect.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/metrics"
	"go.uber.org/zap"
)

var (
	ErrAlreadyJoined = errors.New("connection already joined a room")
	ErrMissingUser   = errors.New("user id is required")
)

// Subscriber is one live connection. Deliver must not block and must be safe
// to call after the connection has gone away; it reports whether the frame
// was queued.
type Subscriber interface {
	ID() string
	Deliver(env domain.Envelope) bool
}

// Buffer is the durable per-user list of undelivered events.
type Buffer interface {
	AppendPendingEvent(ctx context.Context, userID string, env domain.Envelope) error
	DrainPendingEvents(ctx context.Context, userID string) ([]domain.Envelope, error)
}

// Delivery reports what Emit managed to do.
type Delivery struct {
	Buffered bool // the envelope reached the pending buffer
	Live     int  // connections the envelope was queued on
}

// Manager owns the room table. Each instance is independent; nothing is
// shared through package state.
type Manager struct {
	mu      sync.RWMutex
	rooms   map[string]map[string]Subscriber // userID -> connID -> subscriber
	members map[string]string                // connID -> userID

	buffer Buffer
	logger *zap.Logger
	now    func() time.Time
}

func NewManager(buffer Buffer, logger *zap.Logger) *Manager {
	return &Manager{
		rooms:   make(map[string]map[string]Subscriber),
		members: make(map[string]string),
		buffer:  buffer,
		logger:  logger.Named("realtime"),
		now:     time.Now,
	}
}

// Join places s in userID's room. A connection belongs to at most one room
// for its whole lifetime.
func (m *Manager) Join(userID string, s Subscriber) error {
	if userID == "" {
		return ErrMissingUser
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.members[s.ID()]; ok {
		return ErrAlreadyJoined
	}
	room, ok := m.rooms[userID]
	if !ok {
		room = make(map[string]Subscriber)
		m.rooms[userID] = room
		metrics.WSJoinedRooms.Inc()
	}
	room[s.ID()] = s
	m.members[s.ID()] = userID

	m.logger.Debug("connection joined", zap.String("user_id", userID), zap.String("conn_id", s.ID()), zap.Int("room_size", len(room)))
	return nil
}

// Leave drops s from whatever room it joined. Unknown subscribers are ignored.
func (m *Manager) Leave(s Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, ok := m.members[s.ID()]
	if !ok {
		return
	}
	delete(m.members, s.ID())
	if room, ok := m.rooms[userID]; ok {
		delete(room, s.ID())
		if len(room) == 0 {
			delete(m.rooms, userID)
			metrics.WSJoinedRooms.Dec()
		}
	}
	m.logger.Debug("connection left", zap.String("user_id", userID), zap.String("conn_id", s.ID()))
}

// Connections returns how many connections are joined to userID's room.
func (m *Manager) Connections(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms[userID])
}

func (m *Manager) subscribers(userID string) []Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room := m.rooms[userID]
	out := make([]Subscriber, 0, len(room))
	for _, s := range room {
		out = append(out, s)
	}
	return out
}

// Emit records ev in userID's pending buffer and then pushes it to every
// connection in the room. Live delivery is fire-and-forget. A buffer failure
// does not stop live delivery; it is returned so the caller can log it.
func (m *Manager) Emit(ctx context.Context, userID string, ev domain.Event) (Delivery, error) {
	var d Delivery
	env, err := domain.NewEnvelope(ev, m.now())
	if err != nil {
		return d, err
	}

	var bufErr error
	if err := m.buffer.AppendPendingEvent(ctx, userID, env); err != nil {
		bufErr = fmt.Errorf("buffer %s event for %s: %w", env.Event, userID, err)
		metrics.EventsEmitted.WithLabelValues(string(env.Event), "buffer_failed").Inc()
	} else {
		d.Buffered = true
		metrics.EventsEmitted.WithLabelValues(string(env.Event), "buffered").Inc()
	}

	for _, s := range m.subscribers(userID) {
		if s.Deliver(env) {
			d.Live++
		} else {
			metrics.EventsDropped.Inc()
		}
	}
	if d.Live > 0 {
		metrics.EventsEmitted.WithLabelValues(string(env.Event), "live").Add(float64(d.Live))
	}
	return d, bufErr
}

// Drain returns userID's buffered envelopes oldest first and clears the
// buffer. Whatever is returned is gone from the store.
func (m *Manager) Drain(ctx context.Context, userID string) ([]domain.Envelope, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	events, err := m.buffer.DrainPendingEvents(ctx, userID)
	if err != nil {
		return nil, err
	}
	metrics.BufferDrains.Inc()
	return events, nil
}
