package limiter

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagepass/go-stagepass-core/logger"
)

// failingStore always errors, simulating an unreachable counter store.
type failingStore struct {
	calls int
}

func (s *failingStore) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.calls++
	return 0, 0, errors.New("connection refused")
}

func (s *failingStore) Close() error { return nil }

// captureListener records events for assertions.
type captureListener struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureListener) OnEvent(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureListener) byType(t EventType) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type() == t {
			out = append(out, e)
		}
	}
	return out
}

func TestLimiter_CapacityEnforced(t *testing.T) {
	l := New(NewMemoryStore(), WithLogger(logger.NewNopLogger("limiter")))
	defer l.Close()

	ctx := context.Background()
	const capacity = 5

	for i := 0; i < capacity; i++ {
		res := l.Check(ctx, "user:42", capacity, time.Minute)
		assert.True(t, res.Allowed, "request %d within capacity", i+1)
		assert.LessOrEqual(t, res.Count, int64(capacity))
		assert.Equal(t, int64(capacity)-res.Count, res.Remaining)
	}

	// the (N+1)-th request in the same window is rejected
	res := l.Check(ctx, "user:42", capacity, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, int64(0), res.Remaining)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
}

func TestLimiter_WindowResetBehavesLikeFreshKey(t *testing.T) {
	l := New(NewMemoryStore(), WithLogger(logger.NewNopLogger("limiter")))
	defer l.Close()

	ctx := context.Background()
	window := 50 * time.Millisecond

	first := l.Check(ctx, "k", 1, window)
	require.True(t, first.Allowed)
	require.False(t, l.Check(ctx, "k", 1, window).Allowed)

	time.Sleep(80 * time.Millisecond)

	again := l.Check(ctx, "k", 1, window)
	assert.True(t, again.Allowed)
	assert.Equal(t, first.Count, again.Count)
	assert.True(t, again.ResetAt.After(first.ResetAt), "resetAt strictly increases across windows")
}

func TestLimiter_FailsOpenOnStoreError(t *testing.T) {
	store := &failingStore{}
	bus := NewEventBus(10)
	capture := &captureListener{}
	bus.Subscribe(capture)

	l := New(store, WithEventBus(bus), WithLogger(logger.NewNopLogger("limiter")))

	res := l.Check(context.Background(), "k", 10, time.Minute)
	assert.True(t, res.Allowed)
	assert.True(t, res.FailedOpen)
	assert.Equal(t, int64(10), res.Remaining)

	// exactly one failure event per failed check
	require.Eventually(t, func() bool {
		return len(capture.byType(EventStoreFailure)) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, store.calls)
}

func TestLimiter_RejectionPublishesEvent(t *testing.T) {
	bus := NewEventBus(10)
	capture := &captureListener{}
	bus.Subscribe(capture)

	l := New(NewMemoryStore(), WithEventBus(bus), WithLogger(logger.NewNopLogger("limiter")))
	defer l.Close()

	ctx := context.Background()
	l.Check(ctx, "k", 1, time.Minute)
	l.Check(ctx, "k", 1, time.Minute)

	require.Eventually(t, func() bool {
		return len(capture.byType(EventRejected)) == 1
	}, time.Second, 10*time.Millisecond)

	rejected := capture.byType(EventRejected)[0].(*RejectedEvent)
	assert.Equal(t, "k", rejected.Key())
	assert.Equal(t, int64(1), rejected.Limit)
	assert.Equal(t, int64(2), rejected.Count)
}

func TestLimiter_ConcurrentChecksNeverOverAdmit(t *testing.T) {
	l := New(NewMemoryStore(), WithLogger(logger.NewNopLogger("limiter")))
	defer l.Close()

	ctx := context.Background()
	const capacity = 20
	const attempts = 100

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check(ctx, "hot", capacity, time.Minute).Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, admitted)
}
