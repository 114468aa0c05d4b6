package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithTTLScript bumps the counter and arms the window TTL in one
// round trip. PEXPIRE runs only on the first hit so resetAt is stable
// for the lifetime of the window.
var incrWithTTLScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
return {count, ttl}
`)

// RedisStore backs the limiter with a shared Redis counter.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore creates a Redis-backed store. The store does not own the
// client; closing the store leaves the client untouched.
func NewRedisStore(client *redis.Client, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "limiter:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) buildKey(key string) string {
	return s.keyPrefix + key
}

// IncrWithTTL implements Store with a single Lua invocation.
func (s *RedisStore) IncrWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	fullKey := s.buildKey(key)

	raw, err := incrWithTTLScript.Run(ctx, s.client, []string{fullKey}, window.Milliseconds()).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr failed: %w", err)
	}

	values, ok := raw.([]interface{})
	if !ok || len(values) != 2 {
		return 0, 0, fmt.Errorf("unexpected script reply: %v", raw)
	}
	count, ok := values[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected count reply: %v", values[0])
	}
	ttlMs, ok := values[1].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected ttl reply: %v", values[1])
	}

	// PTTL reports -1 when the key somehow lost its TTL; treat the
	// window as just started rather than leaking an immortal counter.
	ttl := window
	if ttlMs >= 0 {
		ttl = time.Duration(ttlMs) * time.Millisecond
	}

	return count, ttl, nil
}

// Close is a no-op; the client belongs to the redis manager.
func (s *RedisStore) Close() error {
	return nil
}
