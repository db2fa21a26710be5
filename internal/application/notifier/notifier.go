// Package notifier is the entry point other services use to tell a user
// something happened. Every call persists a notification before any realtime
// delivery is attempted.
package notifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-notify-nosql/internal/application/realtime"
	"github.com/go-notify-nosql/internal/domain"
	"github.com/go-notify-nosql/internal/pkg/validate"
	"go.uber.org/zap"
)

const (
	DocumentsLink    = "/dashboard/documents"
	ApplicationsLink = "/dashboard/applications"
)

// Creator persists notifications.
type Creator interface {
	Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error)
}

// Emitter pushes events to a user's room.
type Emitter interface {
	Emit(ctx context.Context, userID string, ev domain.Event) (realtime.Delivery, error)
}

// OfflinePublisher hands a notification to an out-of-band channel for users
// with no live connection.
type OfflinePublisher interface {
	Publish(ctx context.Context, n *domain.Notification) error
}

type Notifier struct {
	notifications Creator
	emitter       Emitter
	offline       OfflinePublisher
	logger        *zap.Logger
}

// New wires a Notifier. offline may be nil.
func New(notifications Creator, emitter Emitter, offline OfflinePublisher, logger *zap.Logger) *Notifier {
	return &Notifier{
		notifications: notifications,
		emitter:       emitter,
		offline:       offline,
		logger:        logger.Named("notifier"),
	}
}

// Notify stores the notification and then pushes it to the user. Only the
// store write can fail the call; delivery problems are logged.
func (n *Notifier) Notify(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	created, err := n.notifications.Create(ctx, req)
	if err != nil {
		return nil, err
	}

	d := n.emit(ctx, created.UserID, domain.NotificationCreated{Notification: *created})
	if d.Live == 0 && n.offline != nil {
		if err := n.offline.Publish(ctx, created); err != nil {
			n.logger.Warn("offline publish failed",
				zap.String("user_id", created.UserID),
				zap.String("notification_id", created.ID),
				zap.Error(err))
		}
	}
	return created, nil
}

// DocumentStatusChanged records a notification describing the new document
// status and then emits the status event itself.
func (n *Notifier) DocumentStatusChanged(ctx context.Context, userID string, ev domain.DocumentStatusChanged) (*domain.Notification, error) {
	if err := validate.Struct(ev); err != nil {
		return nil, err
	}
	title, message, typ := describeDocument(ev)
	created, err := n.Notify(ctx, domain.CreateNotificationRequest{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
		Link:    DocumentsLink,
	})
	if err != nil {
		return nil, fmt.Errorf("document %s status: %w", ev.DocumentID, err)
	}
	n.emit(ctx, userID, ev)
	return created, nil
}

// ApplicationStatusChanged mirrors DocumentStatusChanged for applications.
func (n *Notifier) ApplicationStatusChanged(ctx context.Context, userID string, ev domain.ApplicationStatusChanged) (*domain.Notification, error) {
	if err := validate.Struct(ev); err != nil {
		return nil, err
	}
	title, message, typ := describeApplication(ev)
	created, err := n.Notify(ctx, domain.CreateNotificationRequest{
		UserID:  userID,
		Title:   title,
		Message: message,
		Type:    typ,
		Link:    ApplicationsLink,
	})
	if err != nil {
		return nil, fmt.Errorf("application %s status: %w", ev.ApplicationID, err)
	}
	n.emit(ctx, userID, ev)
	return created, nil
}

func (n *Notifier) emit(ctx context.Context, userID string, ev domain.Event) realtime.Delivery {
	d, err := n.emitter.Emit(ctx, userID, ev)
	if err != nil {
		n.logger.Warn("emit failed",
			zap.String("user_id", userID),
			zap.String("event", string(ev.Kind())),
			zap.Bool("buffered", d.Buffered),
			zap.Int("live", d.Live),
			zap.Error(err))
	}
	return d
}

func statusType(status string) domain.NotificationType {
	switch strings.ToLower(status) {
	case "approved":
		return domain.NotificationSuccess
	case "rejected":
		return domain.NotificationError
	default:
		return domain.NotificationInfo
	}
}

func describeDocument(ev domain.DocumentStatusChanged) (string, string, domain.NotificationType) {
	typ := statusType(ev.Status)
	switch typ {
	case domain.NotificationSuccess:
		return "Document Approved", fmt.Sprintf("Your document %q was approved", ev.DocumentName), typ
	case domain.NotificationError:
		msg := fmt.Sprintf("Your document %q was rejected", ev.DocumentName)
		if ev.Reason != "" {
			msg += ": " + ev.Reason
		}
		return "Document Rejected", msg, typ
	default:
		return "Document Under Review", fmt.Sprintf("Your document %q is being reviewed", ev.DocumentName), typ
	}
}

func describeApplication(ev domain.ApplicationStatusChanged) (string, string, domain.NotificationType) {
	status := strings.ReplaceAll(strings.ToLower(ev.Status), "_", " ")
	msg := fmt.Sprintf("Your application is now %s", status)
	if ev.Note != "" {
		msg += ": " + ev.Note
	}
	return "Application Update", msg, statusType(ev.Status)
}
