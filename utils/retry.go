package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff is a geometric wait policy bounded by MinWait and MaxWait.
type Backoff struct {
	MinWait     time.Duration
	MaxWait     time.Duration
	MaxAttempts int
}

// Delay returns the wait before retrying after the given (1-based) failed attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.MinWait
	for i := 1; i < attempt && d < b.MaxWait; i++ {
		d *= 2
	}
	if b.MaxWait > 0 && d > b.MaxWait {
		d = b.MaxWait
	}
	if d < b.MinWait {
		d = b.MinWait
	}
	return d
}

// RetryConfig holds the parameters for the retry strategy.
type RetryConfig struct {
	Backoff Backoff
	Logger  *Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetryConfig builds a RetryConfig that sleeps on the wall clock.
func NewRetryConfig(b Backoff, logger *Logger) *RetryConfig {
	return &RetryConfig{Backoff: b, Logger: logger, sleep: Sleep}
}

// Do executes fn with exponential back-off retry logic. shouldRetry decides
// whether a failure is worth another attempt; nil retries every failure.
// Context cancellation is never retried.
func (r *RetryConfig) Do(ctx context.Context, operationName string, shouldRetry func(error) bool, fn func() error) error {
	maxAttempts := r.Backoff.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := r.sleep
	if sleep == nil {
		sleep = Sleep
	}

	var lastErr error
	attempt := 1
	for ; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(lastErr, context.Canceled) {
			return lastErr
		}
		if shouldRetry != nil && !shouldRetry(lastErr) {
			break
		}
		if attempt == maxAttempts {
			break
		}

		delay := r.Backoff.Delay(attempt)
		if r.Logger != nil {
			r.Logger.Warn("[retry] %s failed (attempt %d/%d): %v, retrying in %v",
				operationName, attempt, maxAttempts, lastErr, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	if attempt > maxAttempts {
		attempt = maxAttempts
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, attempt, lastErr)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
