package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/metrics"
	"github.com/go-notify-nosql/internal/pkg/id"
	"github.com/go-notify-nosql/internal/pkg/validate"
)

// Repository is the persistence the service needs. Get returns nil, nil for
// a missing record; Remove reports false for a missing or foreign record.
type Repository interface {
	Put(ctx context.Context, n *domain.Notification) error
	Update(ctx context.Context, n *domain.Notification) error
	Get(ctx context.Context, id string) (*domain.Notification, error)
	Remove(ctx context.Context, id, userID string) (bool, error)
	ListIDs(ctx context.Context, userID string) ([]string, error)
}

// Service owns notification records and their read state. Mutations on a
// notification that is missing or belongs to someone else return false with
// no error; callers cannot tell the two apart.
type Service interface {
	Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error)
	List(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) (bool, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, notificationID, userID string) (bool, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) Service {
	return &service{repo: repo, now: time.Now}
}

func (s *service) Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	if req.Type == "" {
		req.Type = domain.NotificationInfo
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	at := s.now()
	n := &domain.Notification{
		ID:        id.NewAt(at),
		UserID:    req.UserID,
		Title:     req.Title,
		Message:   req.Message,
		Type:      req.Type,
		Read:      false,
		CreatedAt: at.UnixMilli(),
		Link:      req.Link,
	}
	if err := s.repo.Put(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	return n, nil
}

// List resolves every id in the user's index, newest first, then applies
// offset and limit in memory. limit <= 0 returns everything past offset.
// Offsets shift if notifications are created between page requests.
func (s *service) List(ctx context.Context, userID string, limit, offset int) ([]domain.Notification, error) {
	ids, err := s.repo.ListIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Notification, 0, len(ids))
	for _, nid := range ids {
		n, err := s.repo.Get(ctx, nid)
		if err != nil {
			if errors.Is(err, domain.ErrStoreUnavailable) {
				return nil, err
			}
			// Undecodable record; leave it out rather than fail the page.
			continue
		}
		if n == nil || n.UserID != userID {
			continue
		}
		out = append(out, *n)
	}
	domain.SortNewestFirst(out)

	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []domain.Notification{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *service) MarkRead(ctx context.Context, notificationID, userID string) (bool, error) {
	n, err := s.repo.Get(ctx, notificationID)
	if err != nil {
		return false, err
	}
	if !n.OwnedBy(userID) {
		return false, nil
	}
	if n.Read {
		return true, nil
	}
	n.Read = true
	if err := s.repo.Update(ctx, n); err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return true, nil
}

// MarkAllRead reports false only when the user has no notifications. Each
// item is marked independently; failures are joined into the returned error
// while the result stays true.
func (s *service) MarkAllRead(ctx context.Context, userID string) (bool, error) {
	ns, err := s.List(ctx, userID, 0, 0)
	if err != nil {
		return false, err
	}
	if len(ns) == 0 {
		return false, nil
	}

	var errs []error
	for _, n := range ns {
		if n.Read {
			continue
		}
		if _, err := s.MarkRead(ctx, n.ID, userID); err != nil {
			errs = append(errs, fmt.Errorf("notification %s: %w", n.ID, err))
		}
	}
	return true, errors.Join(errs...)
}

// UnreadCount is derived from the records on every call rather than kept as
// a separate counter.
func (s *service) UnreadCount(ctx context.Context, userID string) (int, error) {
	ns, err := s.List(ctx, userID, 0, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range ns {
		if !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *service) Delete(ctx context.Context, notificationID, userID string) (bool, error) {
	ok, err := s.repo.Remove(ctx, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("delete notification: %w", err)
	}
	return ok, nil
}
