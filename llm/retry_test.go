// ABOUTME: Tests for retry policy delay computation and the Retry loop's handling
// ABOUTME: of retryable errors, non-retryable errors, hints, and cancellation.

package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDelayGrowsExponentially(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: 10 * time.Second, Multiplier: 2.0}
	if d := p.Delay(0); d != 100*time.Millisecond {
		t.Errorf("attempt 0: expected 100ms, got %v", d)
	}
	if d := p.Delay(1); d != 200*time.Millisecond {
		t.Errorf("attempt 1: expected 200ms, got %v", d)
	}
	if d := p.Delay(3); d != 800*time.Millisecond {
		t.Errorf("attempt 3: expected 800ms, got %v", d)
	}
}

func TestDelayCapsAtMax(t *testing.T) {
	p := RetryPolicy{BaseDelay: time.Second, MaxDelay: 2 * time.Second, Multiplier: 10.0}
	if d := p.Delay(5); d != 2*time.Second {
		t.Errorf("expected cap at 2s, got %v", d)
	}
}

func TestDelayJitterStaysInBounds(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2.0, Jitter: true}
	for i := 0; i < 50; i++ {
		if d := p.Delay(1); d < 0 || d > 200*time.Millisecond {
			t.Fatalf("jittered delay out of bounds: %v", d)
		}
	}
}

func TestRetrySucceedsAfterRetryableFailures(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}
	calls := 0
	err := Retry(context.Background(), p, func() error {
		calls++
		if calls < 3 {
			return &NetworkError{SDKError: SDKError{Message: "transient"}}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}
	calls := 0
	err := Retry(context.Background(), p, func() error {
		calls++
		return &ConfigurationError{SDKError: SDKError{Message: "bad key"}}
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if calls != 1 {
		t.Errorf("non-retryable errors must not be retried, got %d calls", calls)
	}
}

func TestRetryStopsOnPlainError(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}
	calls := 0
	err := Retry(context.Background(), p, func() error {
		calls++
		return errors.New("plain")
	})
	if err == nil || calls != 1 {
		t.Errorf("errors without retryability must not be retried: calls=%d err=%v", calls, err)
	}
}

func TestRetryExhaustsBudget(t *testing.T) {
	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1.0}
	calls := 0
	sentinel := &ProviderError{SDKError: SDKError{Message: "throttled"}, StatusCode: 429, Retryable: true}
	err := Retry(context.Background(), p, func() error {
		calls++
		return sentinel
	})
	if calls != 3 {
		t.Errorf("expected initial call plus 2 retries, got %d", calls)
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.StatusCode != 429 {
		t.Errorf("expected the last provider error back, got %v", err)
	}
}

func TestRetryHonorsRetryAfterHint(t *testing.T) {
	hint := 0.05 // 50ms
	p := RetryPolicy{MaxRetries: 1, BaseDelay: time.Nanosecond, MaxDelay: time.Nanosecond, Multiplier: 1.0}
	start := time.Now()
	_ = Retry(context.Background(), p, func() error {
		return &ProviderError{SDKError: SDKError{Message: "throttled"}, Retryable: true, RetryAfter: &hint}
	})
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("expected the RetryAfter hint to raise the delay floor, waited only %v", elapsed)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	p := RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour, Multiplier: 1.0}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, p, func() error {
		calls++
		return &NetworkError{SDKError: SDKError{Message: "transient"}}
	})
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Errorf("expected the last error back on cancellation, got %v", err)
	}
}

func TestErrorRetryability(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &NetworkError{}, true},
		{"configuration", &ConfigurationError{}, false},
		{"provider retryable", &ProviderError{Retryable: true}, true},
		{"provider terminal", &ProviderError{StatusCode: 400}, false},
	}
	for _, tc := range cases {
		var r retryable
		if !errors.As(tc.err, &r) {
			t.Fatalf("%s: error does not expose retryability", tc.name)
		}
		if got := r.IsRetryable(); got != tc.want {
			t.Errorf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}
