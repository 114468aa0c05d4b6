package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepass/go-stagepass-core/breaker"
	"github.com/stagepass/go-stagepass-core/limiter"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Emit(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) Close() error { return nil }

func (c *captureSink) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestNewEvent_Fields(t *testing.T) {
	event := NewEvent(EventThrottled, "ip:10.0.0.1", map[string]any{"limit": 60})

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventThrottled, event.Type)
	assert.Equal(t, "ip:10.0.0.1", event.Key)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Second)
	assert.Equal(t, 60, event.Details["limit"])
}

func TestMultiSink_FansOut(t *testing.T) {
	a := &captureSink{}
	b := &captureSink{}
	multi := NewMultiSink(a, b)

	multi.Emit(NewEvent(EventDDoSSuspect, "ip:10.0.0.2", nil))

	assert.Len(t, a.all(), 1)
	assert.Len(t, b.all(), 1)
	assert.NoError(t, multi.Close())
}

func TestLimiterListener_OnlyStoreFailures(t *testing.T) {
	sink := &captureSink{}
	listener := LimiterListener(sink)

	listener.OnEvent(&limiter.RejectedEvent{
		BaseEvent: limiter.NewBaseEvent(limiter.EventRejected, "admission:ip:1.2.3.4", context.Background()),
	})
	assert.Empty(t, sink.all(), "rejections are recorded by admission, not the bridge")

	listener.OnEvent(&limiter.StoreFailureEvent{
		BaseEvent: limiter.NewBaseEvent(limiter.EventStoreFailure, "admission:global:all", context.Background()),
		Err:       errors.New("redis down"),
	})

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventInfraFailure, events[0].Type)
	assert.Equal(t, "admission:global:all", events[0].Key)
	assert.Equal(t, "redis down", events[0].Details["error"])
}

func TestBreakerListener_OnlyOpenings(t *testing.T) {
	sink := &captureSink{}
	listener := BreakerListener(sink)

	listener.OnEvent(&breaker.StateChangedEvent{
		BaseEvent: breaker.NewBaseEvent(breaker.EventStateChanged, "payments", context.Background()),
		FromState: breaker.StateHalfOpen,
		ToState:   breaker.StateClosed,
	})
	assert.Empty(t, sink.all())

	listener.OnEvent(&breaker.StateChangedEvent{
		BaseEvent:           breaker.NewBaseEvent(breaker.EventStateChanged, "payments", context.Background()),
		FromState:           breaker.StateClosed,
		ToState:             breaker.StateOpen,
		ConsecutiveFailures: 5,
		Reason:              "failure threshold exceeded",
	})

	events := sink.all()
	require.Len(t, events, 1)
	assert.Equal(t, EventBreakerOpened, events[0].Type)
	assert.Equal(t, "payments", events[0].Key)
	assert.Equal(t, 5, events[0].Details["consecutive_failures"])
}
