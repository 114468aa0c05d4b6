package limiter

import (
	"context"
	"time"
)

// Store is the narrow contract against the shared counter backend.
//
// IncrWithTTL is the single atomic increment-and-expire operation every
// check is built on: it bumps the counter for key, starts the window on
// first use, and reports the new count together with the time left until
// the window resets. Implementations must not split this into separate
// read and write calls.
type Store interface {
	// IncrWithTTL atomically increments key and returns the new count
	// and the remaining window duration. A fresh key gets its TTL set
	// to window in the same operation.
	IncrWithTTL(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)

	// Close releases store resources.
	Close() error
}

// StoreType identifies the backing store.
type StoreType string

const (
	// StoreTypeMemory keeps counters in-process. Single-node fallback:
	// each instance enforces its own caps.
	StoreTypeMemory StoreType = "memory"

	// StoreTypeRedis shares counters across instances.
	StoreTypeRedis StoreType = "redis"
)
