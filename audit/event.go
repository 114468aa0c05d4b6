// Package audit records the structured security and resilience events
// the traffic-control core produces: throttles, DDoS suspicions,
// breaker transitions and infrastructure failures. Sinks fan events
// out to the structured log and optionally to Kafka.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a recordable occurrence.
type EventType string

const (
	// EventThrottled: a caller hit a rate limit tier.
	EventThrottled EventType = "THROTTLED"

	// EventDDoSSuspect: a rejected caller matched the suspect heuristics.
	EventDDoSSuspect EventType = "DDOS_SUSPECT"

	// EventBreakerOpened: a dependency circuit opened.
	EventBreakerOpened EventType = "BREAKER_OPENED"

	// EventInfraFailure: the counter store errored and a check failed open.
	EventInfraFailure EventType = "INFRA_FAILURE"
)

// Event is one audit record. Details never include request bodies or
// credentials.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Key       string         `json:"key"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewEvent creates an event with a fresh ID.
func NewEvent(eventType EventType, key string, details map[string]any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Key:       key,
		Timestamp: time.Now().UTC(),
		Details:   details,
	}
}
