package retry

import "time"

// Option configures a retry run.
type Option func(*config)

type config struct {
	maxAttempts int
	backoff     BackoffStrategy
	retryIf     func(error) bool
	onRetry     func(attempt int, err error)
}

func defaultConfig() *config {
	return &config{
		maxAttempts: 3,
		backoff:     ExponentialBackoff(time.Second),
		retryIf:     func(error) bool { return true },
	}
}

// WithMaxAttempts sets the total attempt budget (first call included).
func WithMaxAttempts(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoff sets the delay strategy between attempts.
func WithBackoff(strategy BackoffStrategy) Option {
	return func(c *config) {
		if strategy != nil {
			c.backoff = strategy
		}
	}
}

// WithRetryIf restricts retries to errors the predicate accepts.
// A rejected error is returned as-is, attempts remaining or not.
func WithRetryIf(predicate func(error) bool) Option {
	return func(c *config) {
		if predicate != nil {
			c.retryIf = predicate
		}
	}
}

// WithOnRetry registers a hook fired after each failed attempt that
// will be retried.
func WithOnRetry(hook func(attempt int, err error)) Option {
	return func(c *config) {
		c.onRetry = hook
	}
}
