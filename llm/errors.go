// ABOUTME: Error hierarchy for the reasoning provider adapter.
// ABOUTME: Classifies provider failures by retryability so callers can degrade deliberately.

package llm

// SDKError is the base error type for the adapter. All other error types
// embed it.
type SDKError struct {
	Message string
	Cause   error
}

func (e *SDKError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *SDKError) Unwrap() error { return e.Cause }

// IsRetryable returns false for the base SDKError. Subtypes override this.
func (e *SDKError) IsRetryable() bool { return false }

// ConfigurationError indicates the adapter cannot operate at all, for example
// a missing API key. Never retryable; the pipeline treats it as run-fatal.
type ConfigurationError struct {
	SDKError
}

// ProviderError is an error returned by the provider's API, carrying the HTTP
// status and a retryability decision derived from it.
type ProviderError struct {
	SDKError
	StatusCode int
	Retryable  bool
	// RetryAfter is a provider hint in seconds, nil when absent.
	RetryAfter *float64
}

func (e *ProviderError) IsRetryable() bool { return e.Retryable }

// NetworkError covers transport-level failures (connection refused, DNS,
// timeouts). Always retryable.
type NetworkError struct {
	SDKError
}

func (e *NetworkError) IsRetryable() bool { return true }

// retryable is the interface retry logic checks to decide whether to retry.
type retryable interface {
	IsRetryable() bool
}
