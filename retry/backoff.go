package retry

import (
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy yields the delay before retry attempt N (1-based).
type BackoffStrategy interface {
	Next(attempt int) time.Duration
}

// BackoffOption tunes a backoff strategy.
type BackoffOption func(*backoffConfig)

type backoffConfig struct {
	multiplier float64
	maxDelay   time.Duration
	jitter     float64
}

func defaultBackoffConfig() *backoffConfig {
	return &backoffConfig{
		multiplier: 2.0,
		maxDelay:   10 * time.Second,
		jitter:     0,
	}
}

// WithMultiplier sets the exponential multiplier (default 2.0).
func WithMultiplier(m float64) BackoffOption {
	return func(c *backoffConfig) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// WithMaxDelay caps the delay (default 10s).
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(c *backoffConfig) {
		if d > 0 {
			c.maxDelay = d
		}
	}
}

// WithJitter randomizes the delay by ±ratio (0.0-1.0).
func WithJitter(ratio float64) BackoffOption {
	return func(c *backoffConfig) {
		if ratio >= 0 && ratio <= 1.0 {
			c.jitter = ratio
		}
	}
}

// exponentialBackoff: delay = min(base * multiplier^(attempt-1), maxDelay).
// With base=1s: attempt 1 → 1s, attempt 2 → 2s, attempt 3 → 4s, capped.
type exponentialBackoff struct {
	base   time.Duration
	config *backoffConfig
}

// ExponentialBackoff creates the exponential strategy.
func ExponentialBackoff(base time.Duration, opts ...BackoffOption) BackoffStrategy {
	config := defaultBackoffConfig()
	for _, opt := range opts {
		opt(config)
	}
	return &exponentialBackoff{base: base, config: config}
}

func (b *exponentialBackoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(b.base) * math.Pow(b.config.multiplier, float64(attempt-1))
	if delay > float64(b.config.maxDelay) {
		delay = float64(b.config.maxDelay)
	}
	if b.config.jitter > 0 {
		delay = applyJitter(delay, b.config.jitter)
	}
	return time.Duration(delay)
}

// constantBackoff: fixed delay every attempt.
type constantBackoff struct {
	delay  time.Duration
	config *backoffConfig
}

// ConstantBackoff creates a fixed-delay strategy.
func ConstantBackoff(delay time.Duration, opts ...BackoffOption) BackoffStrategy {
	config := defaultBackoffConfig()
	for _, opt := range opts {
		opt(config)
	}
	return &constantBackoff{delay: delay, config: config}
}

func (b *constantBackoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(b.delay)
	if b.config.jitter > 0 {
		delay = applyJitter(delay, b.config.jitter)
	}
	return time.Duration(delay)
}

// noBackoff retries immediately.
type noBackoff struct{}

// NoBackoff creates an immediate-retry strategy.
func NoBackoff() BackoffStrategy {
	return &noBackoff{}
}

func (b *noBackoff) Next(attempt int) time.Duration {
	return 0
}

// applyJitter offsets delay randomly within ±(delay*jitter).
func applyJitter(delay float64, jitter float64) float64 {
	delta := delay * jitter
	offset := (rand.Float64()*2 - 1) * delta
	result := delay + offset
	if result < 0 {
		return 0
	}
	return result
}
