// ABOUTME: Retry with exponential backoff and full jitter for reasoning provider calls.
// ABOUTME: Respects error retryability and provider RetryAfter hints, cancellable via context.

package llm

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures retry behavior for provider calls.
type RetryPolicy struct {
	// MaxRetries is the number of retry attempts after the initial call.
	MaxRetries int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration

	// Multiplier controls exponential growth of the delay.
	Multiplier float64

	// Jitter randomizes each delay between zero and the computed backoff.
	Jitter bool
}

// DefaultRetryPolicy returns the policy used by the adapter: 2 retries,
// 1s base, 30s cap, 2x growth, jitter on.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     true,
	}
}

// Delay computes the backoff for a 0-indexed retry attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	delay := time.Duration(d)
	if p.Jitter && delay > 0 {
		delay = time.Duration(rand.Int63n(int64(delay) + 1))
	}
	return delay
}

// Retry runs fn, retrying retryable errors up to MaxRetries times. A RetryAfter
// hint on a ProviderError raises the delay floor. Context cancellation ends
// retries early with the last error.
func Retry(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var r retryable
		if attempt >= policy.MaxRetries || !errors.As(lastErr, &r) || !r.IsRetryable() {
			return lastErr
		}

		delay := policy.Delay(attempt)
		var pe *ProviderError
		if errors.As(lastErr, &pe) && pe.RetryAfter != nil {
			hinted := time.Duration(*pe.RetryAfter * float64(time.Second))
			if hinted > delay {
				delay = hinted
			}
		}

		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(delay):
		}
	}
}
