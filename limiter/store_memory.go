package limiter

import (
	"context"
	"errors"
	"sync"
	"time"
)

// memoryStore is the in-process fallback. Counters are per-instance, so
// a horizontally scaled deployment enforces caps per node, not globally.
type memoryStore struct {
	mu     sync.Mutex
	data   map[string]*memoryWindow
	closed bool
	done   chan struct{}
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

// NewMemoryStore creates an in-memory store with a background cleanup
// goroutine for expired windows.
func NewMemoryStore() Store {
	store := &memoryStore{
		data: make(map[string]*memoryWindow),
		done: make(chan struct{}),
	}
	go store.cleanupLoop(1 * time.Minute)
	return store
}

// IncrWithTTL implements Store under a single mutex section, so the
// increment-and-read is atomic with respect to concurrent callers.
func (s *memoryStore) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, 0, errors.New("store is closed")
	}

	now := time.Now()
	w, exists := s.data[key]
	if !exists || now.After(w.resetAt) {
		// Expired windows are logically recreated in place; resetAt
		// strictly increases for the same key.
		w = &memoryWindow{resetAt: now.Add(window)}
		s.data[key] = w
	}

	w.count++
	return w.count, time.Until(w.resetAt), nil
}

// Close stops the cleanup goroutine and drops all counters.
func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.data = nil
	close(s.done)
	return nil
}

func (s *memoryStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.done:
			return
		}
	}
}

func (s *memoryStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	now := time.Now()
	for key, w := range s.data {
		if now.After(w.resetAt) {
			delete(s.data, key)
		}
	}
}
