package domain

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// EventKind is the name a realtime event travels under.
type EventKind string

const (
	EventNotificationCreated      EventKind = "notification"
	EventDocumentStatusChanged    EventKind = "document_status_changed"
	EventApplicationStatusChanged EventKind = "application_status_changed"
)

// Event is one of the known realtime event payloads.
type Event interface {
	Kind() EventKind
}

// NotificationCreated carries a freshly persisted notification.
type NotificationCreated struct {
	Notification Notification `json:"notification"`
}

func (NotificationCreated) Kind() EventKind { return EventNotificationCreated }

// DocumentStatusChanged is raised by the document review workflow.
type DocumentStatusChanged struct {
	DocumentID   string `json:"documentId" validate:"required"`
	DocumentName string `json:"documentName" validate:"required"`
	Status       string `json:"status" validate:"required,oneof=pending approved rejected"`
	Reason       string `json:"reason,omitempty"`
}

func (DocumentStatusChanged) Kind() EventKind { return EventDocumentStatusChanged }

// ApplicationStatusChanged is raised by the application status workflow.
type ApplicationStatusChanged struct {
	ApplicationID string `json:"applicationId" validate:"required"`
	Status        string `json:"status" validate:"required"`
	Note          string `json:"note,omitempty"`
}

func (ApplicationStatusChanged) Kind() EventKind { return EventApplicationStatusChanged }

// Envelope is the serialized form of an event, as buffered for offline users
// and as written to live connections.
type Envelope struct {
	Event     EventKind       `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // epoch milliseconds
}

// NewEnvelope encodes ev stamped with at.
func NewEnvelope(ev Event, at time.Time) (Envelope, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s event: %w", ev.Kind(), err)
	}
	return Envelope{Event: ev.Kind(), Data: data, Timestamp: at.UnixMilli()}, nil
}

// Decode returns the typed event held by the envelope.
func (e Envelope) Decode() (Event, error) {
	var ev Event
	switch e.Event {
	case EventNotificationCreated:
		var p NotificationCreated
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Event, err)
		}
		ev = p
	case EventDocumentStatusChanged:
		var p DocumentStatusChanged
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Event, err)
		}
		ev = p
	case EventApplicationStatusChanged:
		var p ApplicationStatusChanged
		if err := json.Unmarshal(e.Data, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", e.Event, err)
		}
		ev = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Event)
	}
	return ev, nil
}
