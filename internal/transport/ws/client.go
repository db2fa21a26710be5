package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-notify-nosql/internal/application/realtime"
	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/metrics"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	drainTimeout   = 5 * time.Second
)

// Client is one websocket connection. It starts unauthenticated, joins
// exactly one user room, and leaves it when the transport closes.
type Client struct {
	id     string
	conn   *websocket.Conn
	rooms  Rooms
	verify Verifier
	logger *zap.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
	userID string
}

func newClient(conn *websocket.Conn, rooms Rooms, verify Verifier, queue int, logger *zap.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		id:     id,
		conn:   conn,
		rooms:  rooms,
		verify: verify,
		logger: logger.With(zap.String("conn_id", id)),
		send:   make(chan []byte, queue),
	}
}

func (c *Client) ID() string { return c.id }

// Deliver queues env without blocking. A full queue or a closed connection
// drops the frame.
func (c *Client) Deliver(env domain.Envelope) bool {
	return c.enqueue(eventFrame{Type: TypeEvent, Envelope: env})
}

func (c *Client) enqueue(frame any) bool {
	b, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("encode frame", zap.Error(err))
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) joinedUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *Client) fail(msg string) {
	c.enqueue(controlFrame{Type: TypeError, Message: msg})
}

// readPump blocks until the connection ends, then tears the client down.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.rooms.Leave(c)
		c.shutdown()
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error("failed to set read deadline", zap.Error(err))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected websocket close", zap.Error(err))
			}
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.fail("malformed frame")
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Client) handle(ctx context.Context, msg inbound) {
	switch msg.Type {
	case TypeJoin:
		c.join(msg)
	case TypeDrain:
		c.drain(ctx)
	case TypePing:
		c.enqueue(controlFrame{Type: TypePong})
	default:
		c.fail("unknown frame type")
	}
}

func (c *Client) join(msg inbound) {
	if c.joinedUser() != "" {
		c.fail("already joined")
		return
	}
	if msg.UserID == "" {
		c.fail("userId is required")
		return
	}
	if c.verify != nil {
		claims, err := c.verify.Verify(msg.Token)
		if err != nil || claims.UserID != msg.UserID {
			c.fail("unauthorized")
			return
		}
	}
	if err := c.rooms.Join(msg.UserID, c); err != nil {
		if errors.Is(err, realtime.ErrAlreadyJoined) {
			c.fail("already joined")
			return
		}
		c.fail(err.Error())
		return
	}

	c.mu.Lock()
	c.userID = msg.UserID
	c.mu.Unlock()
	c.enqueue(controlFrame{Type: TypeJoined, UserID: msg.UserID})
}

func (c *Client) drain(ctx context.Context) {
	userID := c.joinedUser()
	if userID == "" {
		c.fail("join first")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()

	events, err := c.rooms.Drain(ctx, userID)
	if err != nil {
		c.logger.Warn("drain failed", zap.String("user_id", userID), zap.Error(err))
		c.fail("drain failed")
		return
	}
	if events == nil {
		events = []domain.Envelope{}
	}
	if !c.enqueue(replayFrame{Type: TypeReplay, Events: events}) {
		// Already cleared from the store; the client must fetch the list endpoint.
		c.logger.Warn("replay dropped", zap.String("user_id", userID), zap.Int("events", len(events)))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) run(ctx context.Context) {
	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()
	go c.writePump()
	c.readPump(ctx)
}
