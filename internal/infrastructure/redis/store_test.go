package redisinfra

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/infrastructure/kv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, found, err := s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStore_SetsAndLists(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.SAdd(ctx, "s", "a"))
	require.NoError(t, s.SAdd(ctx, "s", "b"))
	require.NoError(t, s.SRem(ctx, "s", "a"))
	members, err := s.SMembers(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)

	for _, v := range []string{"1", "2", "3"} {
		require.NoError(t, s.LPush(ctx, "l", v))
	}
	require.NoError(t, s.LTrim(ctx, "l", 0, 1))
	items, err := s.LDrain(ctx, "l")
	require.NoError(t, err)
	assert.Equal(t, []string{"3", "2"}, items)

	left, err := s.LRange(ctx, "l", 0, -1)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestStore_UnavailableServerSurfacesAsStoreError(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	repo := kv.NewNotificationRepo(s, 0)
	err := repo.Put(context.Background(), &domain.Notification{ID: "n1", UserID: "u1"})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestStore_BacksNotificationRepo(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	repo := kv.NewNotificationRepo(s, 0)

	require.NoError(t, repo.Put(ctx, &domain.Notification{ID: "n1", UserID: "u1", Title: "t", CreatedAt: 1}))
	got, err := repo.Get(ctx, "n1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)

	ids, err := repo.ListIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"n1"}, ids)
}
