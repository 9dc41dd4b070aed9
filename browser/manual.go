// ABOUTME: HTTP client for the manual/automation provider's verified interaction scripts.
// ABOUTME: A missing manual is a normal outcome, not an error; the executor falls back to direct navigation.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ManualClient fetches verified interaction scripts for a task description.
type ManualClient struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

// NewManualClient creates a manual provider client. An empty baseURL disables
// lookups entirely; GetManual then always reports no manual.
func NewManualClient(baseURL, apiKey string, timeout time.Duration) *ManualClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ManualClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type manualResponse struct {
	Found  bool            `json:"found"`
	Script json.RawMessage `json:"script"`
}

// GetManual returns the interaction script for the task, or "" when no
// manual is available. Only transport and decoding problems are errors.
func (c *ManualClient) GetManual(ctx context.Context, task string) (string, error) {
	if c.baseURL == "" {
		return "", nil
	}

	endpoint := fmt.Sprintf("%s/v1/manuals?task=%s", c.baseURL, url.QueryEscape(task))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("manual lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("manual provider status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read manual: %w", err)
	}
	var mr manualResponse
	if err := json.Unmarshal(body, &mr); err != nil {
		return "", fmt.Errorf("decode manual: %w", err)
	}
	if !mr.Found || len(mr.Script) == 0 {
		return "", nil
	}
	return string(mr.Script), nil
}
