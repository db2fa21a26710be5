package kv

import (
	"context"
	"fmt"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/goccy/go-json"
)

// DefaultPendingEventsMax caps the per-user undelivered-event list.
const DefaultPendingEventsMax = 100

func notificationKey(id string) string { return "notification:" + id }
func userNotificationsKey(userID string) string { return "notifications:user:" + userID }
func pendingEventsKey(userID string) string { return "events:pending:" + userID }

// NotificationRepo maps notification operations onto Store primitives.
// It holds no business rules beyond the ownership check on Remove.
type NotificationRepo struct {
	store      Store
	pendingMax int64
}

func NewNotificationRepo(store Store, pendingMax int) *NotificationRepo {
	if pendingMax <= 0 {
		pendingMax = DefaultPendingEventsMax
	}
	return &NotificationRepo{store: store, pendingMax: int64(pendingMax)}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
}

// Put stores the record and indexes it under its owner.
func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	if err := r.write(ctx, n); err != nil {
		return err
	}
	if err := r.store.SAdd(ctx, userNotificationsKey(n.UserID), n.ID); err != nil {
		return storeErr("index notification", err)
	}
	return nil
}

// Update rewrites the record without touching the owner's index.
func (r *NotificationRepo) Update(ctx context.Context, n *domain.Notification) error {
	return r.write(ctx, n)
}

func (r *NotificationRepo) write(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := r.store.Set(ctx, notificationKey(n.ID), string(data)); err != nil {
		return storeErr("put notification", err)
	}
	return nil
}

// Get returns nil, nil when the notification does not exist.
func (r *NotificationRepo) Get(ctx context.Context, id string) (*domain.Notification, error) {
	raw, found, err := r.store.Get(ctx, notificationKey(id))
	if err != nil {
		return nil, storeErr("get notification", err)
	}
	if !found {
		return nil, nil
	}
	var n domain.Notification
	if err := json.Unmarshal([]byte(raw), &n); err != nil {
		return nil, fmt.Errorf("unmarshal notification %s: %w", id, err)
	}
	return &n, nil
}

// Remove deletes the record and its index entry. It reports false without
// touching anything when the record is missing or owned by another user.
func (r *NotificationRepo) Remove(ctx context.Context, id, userID string) (bool, error) {
	n, err := r.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if !n.OwnedBy(userID) {
		return false, nil
	}
	if err := r.store.Del(ctx, notificationKey(id)); err != nil {
		return false, storeErr("delete notification", err)
	}
	if err := r.store.SRem(ctx, userNotificationsKey(userID), id); err != nil {
		return false, storeErr("unindex notification", err)
	}
	return true, nil
}

// ListIDs returns every notification id owned by userID, in no particular order.
func (r *NotificationRepo) ListIDs(ctx context.Context, userID string) ([]string, error) {
	ids, err := r.store.SMembers(ctx, userNotificationsKey(userID))
	if err != nil {
		return nil, storeErr("list notification ids", err)
	}
	return ids, nil
}

// AppendPendingEvent pushes env onto the head of the user's buffer and trims
// the oldest entries beyond the cap.
func (r *NotificationRepo) AppendPendingEvent(ctx context.Context, userID string, env domain.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	key := pendingEventsKey(userID)
	if err := r.store.LPush(ctx, key, string(data)); err != nil {
		return storeErr("buffer event", err)
	}
	if err := r.store.LTrim(ctx, key, 0, r.pendingMax-1); err != nil {
		return storeErr("trim event buffer", err)
	}
	return nil
}

// DrainPendingEvents reads and clears the user's buffer, returning the
// envelopes oldest first. The list is stored newest first, so it is reversed
// here. Entries that fail to decode are dropped.
func (r *NotificationRepo) DrainPendingEvents(ctx context.Context, userID string) ([]domain.Envelope, error) {
	key := pendingEventsKey(userID)

	var raw []string
	if d, ok := r.store.(Drainer); ok {
		items, err := d.LDrain(ctx, key)
		if err != nil {
			return nil, storeErr("drain event buffer", err)
		}
		raw = items
	} else {
		// Not atomic: an event pushed between the two calls is lost.
		items, err := r.store.LRange(ctx, key, 0, -1)
		if err != nil {
			return nil, storeErr("read event buffer", err)
		}
		if err := r.store.Del(ctx, key); err != nil {
			return nil, storeErr("clear event buffer", err)
		}
		raw = items
	}

	out := make([]domain.Envelope, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var env domain.Envelope
		if err := json.Unmarshal([]byte(raw[i]), &env); err != nil {
			continue
		}
		out = append(out, env)
	}
	return out, nil
}
