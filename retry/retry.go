// Package retry runs an operation until it succeeds, a condition stops
// it, or the attempt budget is exhausted. Delays between attempts come
// from a pluggable backoff strategy and honor context cancellation.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Do runs op until success or the attempt budget is spent.
// The returned error is the last attempt's error.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	_, err := DoWithData(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)
	return err
}

// DoWithData runs op until success and returns its result.
func DoWithData[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var zero T

	config := defaultConfig()
	for _, opt := range opts {
		opt(config)
	}

	var lastErr error
	for attempt := 0; attempt < config.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, config.backoff.Next(attempt)); err != nil {
				return zero, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		var unrecoverable *unrecoverableError
		if errors.As(err, &unrecoverable) {
			return zero, unrecoverable.err
		}
		if !config.retryIf(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		if config.onRetry != nil {
			config.onRetry(attempt+1, err)
		}
	}

	return zero, fmt.Errorf("all %d attempts failed: %w", config.maxAttempts, lastErr)
}

// Unrecoverable marks an error as terminal: Do returns it immediately
// without consuming further attempts.
func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &unrecoverableError{err: err}
}

type unrecoverableError struct {
	err error
}

func (e *unrecoverableError) Error() string {
	return e.err.Error()
}

func (e *unrecoverableError) Unwrap() error {
	return e.err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
