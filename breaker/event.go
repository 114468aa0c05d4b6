package breaker

import (
	"context"
	"time"
)

// EventType classifies breaker lifecycle events.
type EventType string

const (
	// EventStateChanged: a circuit transitioned between states.
	EventStateChanged EventType = "state_changed"

	// EventCallRejected: a call was rejected by an open circuit.
	EventCallRejected EventType = "call_rejected"
)

// Event is the interface all breaker events implement.
type Event interface {
	Type() EventType
	Resource() string
	Context() context.Context
	Timestamp() time.Time
}

// BaseEvent carries the shared event fields.
type BaseEvent struct {
	eventType EventType
	resource  string
	ctx       context.Context
	timestamp time.Time
}

// NewBaseEvent creates the shared event core.
func NewBaseEvent(eventType EventType, resource string, ctx context.Context) BaseEvent {
	return BaseEvent{
		eventType: eventType,
		resource:  resource,
		ctx:       ctx,
		timestamp: time.Now(),
	}
}

func (e *BaseEvent) Type() EventType          { return e.eventType }
func (e *BaseEvent) Resource() string         { return e.resource }
func (e *BaseEvent) Context() context.Context { return e.ctx }
func (e *BaseEvent) Timestamp() time.Time     { return e.timestamp }

// StateChangedEvent is published on every transition.
type StateChangedEvent struct {
	BaseEvent
	FromState           State
	ToState             State
	ConsecutiveFailures int
	Reason              string
}

// RejectedEvent is published when an open circuit rejects a call.
type RejectedEvent struct {
	BaseEvent
	CurrentState State
}

// EventListener receives published events.
type EventListener interface {
	OnEvent(event Event)
}

// EventListenerFunc adapts a function to EventListener.
type EventListenerFunc func(event Event)

func (f EventListenerFunc) OnEvent(event Event) { f(event) }

// EventBus fans events out to listeners.
type EventBus interface {
	Subscribe(listener EventListener)
	Publish(event Event)
	Close()
}
