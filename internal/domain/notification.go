package domain

import "sort"

// NotificationType classifies how a notification is presented.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// Notification is a message addressed to exactly one user. Read is the only
// field that changes after creation.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	Read      bool             `json:"read"`
	CreatedAt int64            `json:"createdAt"` // epoch milliseconds
	Link      string           `json:"link,omitempty"`
}

// OwnedBy reports whether userID owns the notification.
func (n *Notification) OwnedBy(userID string) bool {
	return n != nil && n.UserID == userID
}

// CreateNotificationRequest is the input accepted by the notification service
// and the internal notify endpoint.
type CreateNotificationRequest struct {
	UserID  string           `json:"userId" validate:"required,max=128"`
	Title   string           `json:"title" validate:"required,max=200"`
	Message string           `json:"message" validate:"required,max=2000"`
	Type    NotificationType `json:"type" validate:"omitempty,oneof=info success warning error"`
	Link    string           `json:"link" validate:"omitempty,max=512"`
}

// SortNewestFirst orders notifications by CreatedAt descending. Equal
// timestamps fall back to ID descending; ULIDs share the time ordering.
func SortNewestFirst(ns []Notification) {
	sort.SliceStable(ns, func(i, j int) bool {
		if ns[i].CreatedAt != ns[j].CreatedAt {
			return ns[i].CreatedAt > ns[j].CreatedAt
		}
		return ns[i].ID > ns[j].ID
	})
}
