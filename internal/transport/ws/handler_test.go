package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-notify-nosql/internal/application/realtime"
	"github.com/go-notify-nosql/internal/domain"
	jwtinfra "github.com/go-notify-nosql/internal/infrastructure/jwt"
	"github.com/go-notify-nosql/internal/infrastructure/kv"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- helpers ---

type serverFrame struct {
	Type      string            `json:"type"`
	UserID    string            `json:"userId"`
	Message   string            `json:"message"`
	Events    []domain.Envelope `json:"events"`
	Event     domain.EventKind  `json:"event"`
	Data      json.RawMessage   `json:"data"`
	Timestamp int64             `json:"timestamp"`
}

type tokenVerifier map[string]string // token -> user id

func (v tokenVerifier) Verify(token string) (*jwtinfra.Claims, error) {
	userID, ok := v[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &jwtinfra.Claims{UserID: userID, Role: "user"}, nil
}

func newServer(t *testing.T, verify Verifier, origins ...string) (*realtime.Manager, string) {
	t.Helper()
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mgr := realtime.NewManager(kv.NewNotificationRepo(kv.NewMemory(), 0), zap.NewNop())
	srv := httptest.NewServer(NewHandler(mgr, verify, origins, 8, zap.NewNop()))
	t.Cleanup(srv.Close)
	return mgr, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame map[string]string) {
	t.Helper()
	b, err := json.Marshal(frame)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

func read(t *testing.T, conn *websocket.Conn) serverFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var f serverFrame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func join(t *testing.T, conn *websocket.Conn, userID string) {
	t.Helper()
	send(t, conn, map[string]string{"type": TypeJoin, "userId": userID})
	f := read(t, conn)
	require.Equal(t, TypeJoined, f.Type, f.Message)
	assert.Equal(t, userID, f.UserID)
}

func docEvent(id string) domain.DocumentStatusChanged {
	return domain.DocumentStatusChanged{DocumentID: id, DocumentName: id + ".pdf", Status: "approved"}
}

// --- tests ---

func TestSocket_JoinedClientReceivesLiveEvents(t *testing.T) {
	mgr, url := newServer(t, nil)
	conn := dial(t, url)
	join(t, conn, "u1")

	d, err := mgr.Emit(context.Background(), "u1", docEvent("d1"))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Live)

	f := read(t, conn)
	assert.Equal(t, TypeEvent, f.Type)
	assert.Equal(t, domain.EventDocumentStatusChanged, f.Event)
	assert.NotZero(t, f.Timestamp)
	var got domain.DocumentStatusChanged
	require.NoError(t, json.Unmarshal(f.Data, &got))
	assert.Equal(t, "d1", got.DocumentID)
}

func TestSocket_DrainReplaysMissedEventsInOrder(t *testing.T) {
	ctx := context.Background()
	mgr, url := newServer(t, nil)
	for _, id := range []string{"A", "B"} {
		_, err := mgr.Emit(ctx, "u2", docEvent(id))
		require.NoError(t, err)
	}

	conn := dial(t, url)
	join(t, conn, "u2")
	send(t, conn, map[string]string{"type": TypeDrain})

	f := read(t, conn)
	require.Equal(t, TypeReplay, f.Type)
	require.Len(t, f.Events, 2)
	var ids []string
	for _, env := range f.Events {
		ev, err := env.Decode()
		require.NoError(t, err)
		ids = append(ids, ev.(domain.DocumentStatusChanged).DocumentID)
	}
	assert.Equal(t, []string{"A", "B"}, ids)

	send(t, conn, map[string]string{"type": TypeDrain})
	f = read(t, conn)
	assert.Equal(t, TypeReplay, f.Type)
	assert.Empty(t, f.Events)
}

func TestSocket_PingPong(t *testing.T) {
	_, url := newServer(t, nil)
	conn := dial(t, url)
	send(t, conn, map[string]string{"type": TypePing})
	assert.Equal(t, TypePong, read(t, conn).Type)
}

func TestSocket_DrainBeforeJoin(t *testing.T) {
	_, url := newServer(t, nil)
	conn := dial(t, url)
	send(t, conn, map[string]string{"type": TypeDrain})
	f := read(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, "join first", f.Message)
}

func TestSocket_SecondJoinIsRejected(t *testing.T) {
	mgr, url := newServer(t, nil)
	conn := dial(t, url)
	join(t, conn, "u1")

	send(t, conn, map[string]string{"type": TypeJoin, "userId": "u2"})
	f := read(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, "already joined", f.Message)
	assert.Equal(t, 1, mgr.Connections("u1"))
	assert.Zero(t, mgr.Connections("u2"))
}

func TestSocket_UnknownAndMalformedFrames(t *testing.T) {
	_, url := newServer(t, nil)
	conn := dial(t, url)

	send(t, conn, map[string]string{"type": "subscribe"})
	assert.Equal(t, "unknown frame type", read(t, conn).Message)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "malformed frame", read(t, conn).Message)
}

func TestSocket_JoinRequiresMatchingToken(t *testing.T) {
	mgr, url := newServer(t, tokenVerifier{"tok-u1": "u1"})
	conn := dial(t, url)

	send(t, conn, map[string]string{"type": TypeJoin, "userId": "u2", "token": "tok-u1"})
	f := read(t, conn)
	assert.Equal(t, TypeError, f.Type)
	assert.Equal(t, "unauthorized", f.Message)
	assert.Zero(t, mgr.Connections("u2"))

	send(t, conn, map[string]string{"type": TypeJoin, "userId": "u1", "token": "tok-u1"})
	assert.Equal(t, TypeJoined, read(t, conn).Type)
}

func TestSocket_CloseLeavesRoom(t *testing.T) {
	mgr, url := newServer(t, nil)
	conn := dial(t, url)
	join(t, conn, "u1")
	require.Equal(t, 1, mgr.Connections("u1"))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))
	_ = conn.Close()

	assert.Eventually(t, func() bool { return mgr.Connections("u1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestSocket_RejectsUnknownOrigin(t *testing.T) {
	_, url := newServer(t, nil, "https://app.example.com")

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://app.example.com")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}
