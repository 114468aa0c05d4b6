// Package limiter provides the sliding-window counter primitive shared
// by the admission controller and the dependency gateway.
//
// Design notes:
//   - One narrow Store contract (atomic increment-and-expire); memory
//     and Redis implementations.
//   - Fail-open: a store error admits the request and is logged once,
//     availability over strict enforcement.
//   - Event-driven: rejections and store failures are published on an
//     event bus the audit layer subscribes to.
package limiter

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stagepass/go-stagepass-core/logger"
)

// Result is the outcome of one check.
type Result struct {
	// Allowed reports whether the request fits in the current window.
	Allowed bool

	// Count is the window occupancy including this request.
	Count int64

	// Limit is the capacity the check ran against.
	Limit int64

	// Remaining is how many requests still fit (0 when rejected).
	Remaining int64

	// ResetAt is when the window expires.
	ResetAt time.Time

	// RetryAfter is the suggested wait on rejection.
	RetryAfter time.Duration

	// FailedOpen marks a result produced by the fail-open path after a
	// store error; counters were not reliably consulted.
	FailedOpen bool
}

// Limiter wraps a Store with the check semantics.
type Limiter struct {
	store    Store
	eventBus EventBus
	logger   *logger.CtxZapLogger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithEventBus attaches an event bus for rejection/failure events.
func WithEventBus(bus EventBus) Option {
	return func(l *Limiter) { l.eventBus = bus }
}

// WithLogger overrides the default module logger.
func WithLogger(log *logger.CtxZapLogger) Option {
	return func(l *Limiter) { l.logger = log }
}

// New creates a Limiter over the given store.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		logger: logger.GetLogger("limiter"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check charges one slot for key and reports whether it fits within
// capacity for the window. A single atomic increment-and-read runs per
// check; there is no separate read-then-write. Charged slots are never
// refunded, including on caller cancellation.
//
// On a store error the check fails open: the request is admitted with a
// full Remaining, the error is logged exactly once and a store-failure
// event is published.
func (l *Limiter) Check(ctx context.Context, key string, capacity int64, window time.Duration) *Result {
	if capacity <= 0 {
		capacity = 1
	}

	count, ttl, err := l.store.IncrWithTTL(ctx, key, window)
	if err != nil {
		l.logger.ErrorCtx(ctx, "limiter store failure, failing open",
			zap.String("key", key),
			zap.Int64("capacity", capacity),
			zap.Error(err))
		if l.eventBus != nil {
			l.eventBus.Publish(&StoreFailureEvent{
				BaseEvent: NewBaseEvent(EventStoreFailure, key, ctx),
				Err:       err,
			})
		}
		return &Result{
			Allowed:    true,
			Count:      0,
			Limit:      capacity,
			Remaining:  capacity,
			ResetAt:    time.Now().Add(window),
			FailedOpen: true,
		}
	}

	resetAt := time.Now().Add(ttl)
	result := &Result{
		Count:   count,
		Limit:   capacity,
		ResetAt: resetAt,
	}

	if count > capacity {
		result.Allowed = false
		result.Remaining = 0
		result.RetryAfter = ttl
		if l.eventBus != nil {
			l.eventBus.Publish(&RejectedEvent{
				BaseEvent:  NewBaseEvent(EventRejected, key, ctx),
				Count:      count,
				Limit:      capacity,
				RetryAfter: ttl,
			})
		}
		return result
	}

	result.Allowed = true
	result.Remaining = capacity - count
	return result
}

// Close releases the store and event bus.
func (l *Limiter) Close() error {
	if l.eventBus != nil {
		l.eventBus.Close()
	}
	return l.store.Close()
}
