package utils

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy controls how Retry repeats a failing operation.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first one.
	Attempts int
	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration
	// Multiplier is applied to the delay after every failed attempt.
	Multiplier float64
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
	// Jitter randomizes each wait by up to this fraction, e.g. 0.2 for ±20%.
	Jitter float64
	// Retryable reports whether err is worth another attempt. Nil retries everything.
	Retryable func(err error) bool
	// OnRetry is invoked before waiting for the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = max(p.BaseDelay, 0)
	b.Multiplier = max(p.Multiplier, 1)
	b.RandomizationFactor = p.Jitter
	b.MaxInterval = p.MaxDelay
	if b.MaxInterval <= 0 {
		b.MaxInterval = time.Duration(math.MaxInt64)
	}
	b.MaxElapsedTime = 0
	b.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Retry runs op until it succeeds, the attempts are exhausted, the error is not
// retryable or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var (
		lastErr error
		attempt int
	)

	operation := func() (T, error) {
		result, err := op(ctx)
		lastErr = err
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil || (p.Retryable != nil && !p.Retryable(err)) {
			return result, backoff.Permanent(err)
		}
		return result, err
	}

	notify := func(err error, delay time.Duration) {
		attempt++
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
	}

	result, err := backoff.RetryNotifyWithData(operation, p.backOff(ctx), notify)
	if err != nil && lastErr != nil {
		// A context ending mid-wait surfaces as ctx.Err(); report what op said.
		return result, lastErr
	}
	return result, err
}
