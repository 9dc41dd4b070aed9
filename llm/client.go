// ABOUTME: Reasoning provider adapter over the OpenAI Chat Completions API.
// ABOUTME: Supports OpenAI-compatible base URLs, classifies failures, and retries retryable errors.

package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client sends prompt-in/text-out completions to an OpenAI-compatible
// provider. It is the single reasoning boundary the pipeline consumes.
type Client struct {
	client openai.Client
	model  string
	apiKey string
	policy RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) { c.policy = policy }
}

// NewClient creates a client for the given credentials. baseURL may be empty
// for the default OpenAI endpoint, or point at any Chat Completions
// compatible provider. An empty apiKey is allowed at construction; it
// surfaces through Preflight when a run first needs the provider.
func NewClient(apiKey, model, baseURL string, opts ...Option) *Client {
	if model == "" {
		model = "gpt-4o-mini"
	}
	// The SDK's built-in retry is disabled; the adapter owns retry policy.
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(baseURL))
	}
	c := &Client{
		client: openai.NewClient(reqOpts...),
		model:  model,
		apiKey: apiKey,
		policy: DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Preflight reports whether the adapter can operate at all. A missing API key
// is the canonical run-fatal configuration error.
func (c *Client) Preflight(ctx context.Context) error {
	if c.apiKey == "" {
		return &ConfigurationError{SDKError: SDKError{Message: "reasoning provider API key not set"}}
	}
	return nil
}

// Complete sends system instructions plus user content and returns the text
// of the first choice. Retryable provider failures are retried per the
// client's policy before the error is returned.
func (c *Client) Complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		MaxCompletionTokens: openai.Int(int64(maxTokens)),
	}

	var text string
	err := Retry(ctx, c.policy, func() error {
		resp, err := c.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return &ProviderError{SDKError: SDKError{Message: "provider returned no choices"}}
		}
		text = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	return text, nil
}

// classify maps raw openai-go errors into the adapter's error hierarchy so
// retry logic and the pipeline's error taxonomy can act on them.
func classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		retryable := apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
		pe := &ProviderError{
			SDKError:   SDKError{Message: fmt.Sprintf("provider API error (status %d)", apiErr.StatusCode), Cause: err},
			StatusCode: apiErr.StatusCode,
			Retryable:  retryable,
		}
		if apiErr.Response != nil {
			pe.RetryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
		}
		return pe
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		// Timeouts of individual calls are recoverable like any other
		// external failure; the caller decides whether to keep going.
		return &NetworkError{SDKError: SDKError{Message: "provider call timed out", Cause: err}}
	}
	return &NetworkError{SDKError: SDKError{Message: "provider transport failure", Cause: err}}
}

// parseRetryAfter reads a Retry-After header value, either delta-seconds or
// an HTTP date, returning nil when absent or unparseable.
func parseRetryAfter(header string) *float64 {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}
	if secs, err := strconv.ParseFloat(header, 64); err == nil && secs >= 0 {
		return &secs
	}
	if at, err := http.ParseTime(header); err == nil {
		secs := time.Until(at).Seconds()
		if secs < 0 {
			secs = 0
		}
		return &secs
	}
	return nil
}
