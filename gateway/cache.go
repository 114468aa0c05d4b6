package gateway

import (
	"sync"
	"time"

	"github.com/stagepass/go-stagepass-core/httpclient"
)

// responseCache holds successful GET payloads per (dependency,
// signature). Entries are evicted lazily on the first read past
// expiresAt; only 2xx responses populate it.
type responseCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
}

type cacheEntry struct {
	response  *httpclient.Response
	expiresAt time.Time
}

// snapshot copies the stored response so a caller mutating body or
// headers cannot corrupt the shared entry.
func (e *cacheEntry) snapshot() *httpclient.Response {
	cp := *e.response
	cp.Headers = e.response.Headers.Clone()
	cp.Body = append([]byte(nil), e.response.Body...)
	return &cp
}

func newResponseCache() *responseCache {
	return &responseCache{
		entries: make(map[string]*cacheEntry),
	}
}

func (c *responseCache) get(key string) (*httpclient.Response, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if time.Now().After(entry.expiresAt) {
		c.mu.Lock()
		// re-check: a writer may have refreshed the entry
		if current, ok := c.entries[key]; ok && time.Now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.snapshot(), true
}

func (c *responseCache) set(key string, resp *httpclient.Response, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = &cacheEntry{
		response:  resp,
		expiresAt: time.Now().Add(ttl),
	}
	c.mu.Unlock()
}

func (c *responseCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
