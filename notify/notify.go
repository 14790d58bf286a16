package notify

import (
	"context"
	"time"
)

// EventType classifies a rotation lifecycle notification.
type EventType string

const (
	// EventStarted is emitted when a rotation is initiated.
	EventStarted EventType = "rotation.started"
	// EventStateChanged is emitted on every state transition.
	EventStateChanged EventType = "rotation.state_changed"
	// EventCompleted is emitted when a rotation reaches new_active.
	EventCompleted EventType = "rotation.completed"
	// EventFailed is emitted when a rotation reaches failed.
	EventFailed EventType = "rotation.failed"
)

// Event is one rotation lifecycle notification.
type Event struct {
	Type       EventType `json:"type"`
	RotationID string    `json:"rotationId"`
	ClientID   string    `json:"clientId"`
	FromState  string    `json:"fromState,omitempty"`
	ToState    string    `json:"toState,omitempty"`
	Message    string    `json:"message,omitempty"`
	At         time.Time `json:"at"`
}

// Notifier accepts rotation events without blocking the caller. Delivery
// is best effort: a failed or dropped notification never blocks state
// progression.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Transport delivers one event to its destination.
type Transport interface {
	Send(ctx context.Context, event Event) error
}

// Nop is a Notifier that discards every event, for wiring without a
// notification channel.
type Nop struct{}

// Notify discards the event.
func (Nop) Notify(context.Context, Event) {}
