package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/infrastructure/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- fakes ---

type fakeSub struct {
	id string

	mu     sync.Mutex
	got    []domain.Envelope
	closed bool
}

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Deliver(env domain.Envelope) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.got = append(f.got, env)
	return true
}

func (f *fakeSub) received() []domain.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Envelope(nil), f.got...)
}

type mockBuffer struct{ mock.Mock }

func (m *mockBuffer) AppendPendingEvent(ctx context.Context, userID string, env domain.Envelope) error {
	return m.Called(ctx, userID, env).Error(0)
}

func (m *mockBuffer) DrainPendingEvents(ctx context.Context, userID string) ([]domain.Envelope, error) {
	args := m.Called(ctx, userID)
	events, _ := args.Get(0).([]domain.Envelope)
	return events, args.Error(1)
}

// --- helpers ---

func newManager() *Manager {
	m := NewManager(kv.NewNotificationRepo(kv.NewMemory(), 0), zap.NewNop())
	var tick int64
	m.now = func() time.Time {
		tick++
		return time.UnixMilli(tick)
	}
	return m
}

func docEvent(id string) domain.Event {
	return domain.DocumentStatusChanged{DocumentID: id, DocumentName: id, Status: "approved"}
}

func docIDs(t *testing.T, envs []domain.Envelope) []string {
	t.Helper()
	var ids []string
	for _, env := range envs {
		ev, err := env.Decode()
		require.NoError(t, err)
		ids = append(ids, ev.(domain.DocumentStatusChanged).DocumentID)
	}
	return ids
}

// --- tests ---

func TestEmit_OfflineUserDrainsChronologically(t *testing.T) {
	ctx := context.Background()
	m := newManager()

	for _, id := range []string{"A", "B", "C"} {
		d, err := m.Emit(ctx, "u1", docEvent(id))
		require.NoError(t, err)
		assert.True(t, d.Buffered)
		assert.Zero(t, d.Live)
	}

	events, err := m.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, docIDs(t, events))

	events, err = m.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestEmit_FansOutToEveryConnectionInRoom(t *testing.T) {
	ctx := context.Background()
	m := newManager()
	tab1, tab2, other := &fakeSub{id: "c1"}, &fakeSub{id: "c2"}, &fakeSub{id: "c3"}
	require.NoError(t, m.Join("u1", tab1))
	require.NoError(t, m.Join("u1", tab2))
	require.NoError(t, m.Join("u2", other))

	d, err := m.Emit(ctx, "u1", docEvent("A"))
	require.NoError(t, err)
	assert.True(t, d.Buffered)
	assert.Equal(t, 2, d.Live)

	assert.Equal(t, []string{"A"}, docIDs(t, tab1.received()))
	assert.Equal(t, []string{"A"}, docIDs(t, tab2.received()))
	assert.Empty(t, other.received())
}

func TestEmit_LiveDeliveryStillBuffers(t *testing.T) {
	ctx := context.Background()
	m := newManager()
	require.NoError(t, m.Join("u1", &fakeSub{id: "c1"}))

	_, err := m.Emit(ctx, "u1", docEvent("A"))
	require.NoError(t, err)

	events, err := m.Drain(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, docIDs(t, events))
}

func TestJoin_OneRoomPerConnection(t *testing.T) {
	m := newManager()
	c := &fakeSub{id: "c1"}
	require.NoError(t, m.Join("u1", c))
	assert.ErrorIs(t, m.Join("u2", c), ErrAlreadyJoined)
	assert.ErrorIs(t, m.Join("u1", c), ErrAlreadyJoined)
	assert.Equal(t, 1, m.Connections("u1"))
	assert.Zero(t, m.Connections("u2"))
}

func TestJoin_RequiresUser(t *testing.T) {
	assert.ErrorIs(t, newManager().Join("", &fakeSub{id: "c1"}), ErrMissingUser)
}

func TestLeave_StopsLiveDelivery(t *testing.T) {
	ctx := context.Background()
	m := newManager()
	c := &fakeSub{id: "c1"}
	require.NoError(t, m.Join("u1", c))
	m.Leave(c)
	m.Leave(c)

	d, err := m.Emit(ctx, "u1", docEvent("A"))
	require.NoError(t, err)
	assert.Zero(t, d.Live)
	assert.Empty(t, c.received())
	assert.Zero(t, m.Connections("u1"))
}

func TestEmit_ClosedSubscriberIsNotCounted(t *testing.T) {
	m := newManager()
	c := &fakeSub{id: "c1", closed: true}
	require.NoError(t, m.Join("u1", c))

	d, err := m.Emit(context.Background(), "u1", docEvent("A"))
	require.NoError(t, err)
	assert.Zero(t, d.Live)
}

func TestManagers_AreIndependent(t *testing.T) {
	m1, m2 := newManager(), newManager()
	require.NoError(t, m1.Join("u1", &fakeSub{id: "c1"}))
	assert.Equal(t, 1, m1.Connections("u1"))
	assert.Zero(t, m2.Connections("u1"))
}

func TestEmit_BufferFailureStillDeliversLive(t *testing.T) {
	buf := &mockBuffer{}
	boom := errors.New("store down")
	buf.On("AppendPendingEvent", mock.Anything, "u1", mock.Anything).Return(boom)

	m := NewManager(buf, zap.NewNop())
	c := &fakeSub{id: "c1"}
	require.NoError(t, m.Join("u1", c))

	d, err := m.Emit(context.Background(), "u1", docEvent("A"))
	assert.ErrorIs(t, err, boom)
	assert.False(t, d.Buffered)
	assert.Equal(t, 1, d.Live)
	assert.Len(t, c.received(), 1)
}

func TestDrain_PropagatesStoreError(t *testing.T) {
	buf := &mockBuffer{}
	buf.On("DrainPendingEvents", mock.Anything, "u1").Return(nil, domain.ErrStoreUnavailable)

	_, err := NewManager(buf, zap.NewNop()).Drain(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestEmit_ConcurrentJoinLeave(t *testing.T) {
	ctx := context.Background()
	m := newManager()
	m.now = time.Now

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		c := &fakeSub{id: string(rune('a' + i))}
		go func() {
			defer wg.Done()
			_ = m.Join("u1", c)
			m.Leave(c)
		}()
		go func() {
			defer wg.Done()
			_, _ = m.Emit(ctx, "u1", docEvent("A"))
		}()
	}
	wg.Wait()
	assert.Zero(t, m.Connections("u1"))
}
