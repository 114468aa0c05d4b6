package limiter

import (
	"context"
	"time"
)

// EventType classifies limiter lifecycle events.
type EventType string

const (
	// EventAllowed: a check admitted the request.
	EventAllowed EventType = "allowed"

	// EventRejected: a check hit the cap.
	EventRejected EventType = "rejected"

	// EventStoreFailure: the backing store errored and the check failed open.
	EventStoreFailure EventType = "store_failure"
)

// Event is the interface all limiter events implement.
type Event interface {
	Type() EventType
	Key() string
	Context() context.Context
	Timestamp() time.Time
}

// BaseEvent carries the fields shared by every event.
type BaseEvent struct {
	eventType EventType
	key       string
	ctx       context.Context
	timestamp time.Time
}

// NewBaseEvent creates the shared event core.
func NewBaseEvent(eventType EventType, key string, ctx context.Context) BaseEvent {
	return BaseEvent{
		eventType: eventType,
		key:       key,
		ctx:       ctx,
		timestamp: time.Now(),
	}
}

func (e *BaseEvent) Type() EventType          { return e.eventType }
func (e *BaseEvent) Key() string              { return e.key }
func (e *BaseEvent) Context() context.Context { return e.ctx }
func (e *BaseEvent) Timestamp() time.Time     { return e.timestamp }

// RejectedEvent is published when a check hits its cap.
type RejectedEvent struct {
	BaseEvent
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// StoreFailureEvent is published once per failed-open check.
type StoreFailureEvent struct {
	BaseEvent
	Err error
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
