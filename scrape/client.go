// ABOUTME: HTTP client for the external search/scrape provider: keyword search and URL-to-text extraction.
// ABOUTME: Inserts a polite delay between sequential calls to the same instance to avoid throttling.
package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/2389-research/nichescout/pipeline"
)

// maxResponseBytes bounds how much of a provider response body is read.
const maxResponseBytes = 1 << 20

// Client talks to a JSON-over-HTTP search/scrape service. It implements
// pipeline.Searcher. Calls are serialized per client instance with a polite
// delay; concurrent callers queue behind the delay rather than bursting.
type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
	delay   time.Duration

	mu       sync.Mutex
	lastCall time.Time
}

// Config holds the scrape provider connection settings.
type Config struct {
	BaseURL string
	APIKey  string
	// Delay between sequential calls (default 500ms).
	Delay time.Duration
	// Timeout for the underlying HTTP client (default 20s).
	Timeout time.Duration
}

// NewClient creates a scrape provider client.
func NewClient(cfg Config) *Client {
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		delay:   cfg.Delay,
	}
}

var _ pipeline.Searcher = (*Client)(nil)

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"results"`
}

// Search runs a keyword search and returns up to maxResults hits in provider order.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]pipeline.SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	var resp searchResponse
	err := c.post(ctx, "/v1/search", searchRequest{Query: query, Limit: maxResults}, &resp)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := make([]pipeline.SearchResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" {
			continue
		}
		results = append(results, pipeline.SearchResult{URL: r.URL, Title: r.Title, Snippet: r.Snippet})
	}
	return results, nil
}

type extractRequest struct {
	URL string `json:"url"`
}

type extractResponse struct {
	Content string `json:"content"`
}

// FetchContent extracts the readable text of a URL.
func (c *Client) FetchContent(ctx context.Context, url string) (string, error) {
	var resp extractResponse
	if err := c.post(ctx, "/v1/extract", extractRequest{URL: url}, &resp); err != nil {
		return "", fmt.Errorf("extract %s: %w", url, err)
	}
	if resp.Content == "" {
		return "", fmt.Errorf("extract %s: empty content", url)
	}
	return resp.Content, nil
}

// post sends one JSON request after the polite delay and decodes the response.
func (c *Client) post(ctx context.Context, path string, reqBody, respBody any) error {
	c.politeWait(ctx)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// politeWait blocks until the delay since the previous call has elapsed.
func (c *Client) politeWait(ctx context.Context) {
	c.mu.Lock()
	wait := c.delay - time.Since(c.lastCall)
	if wait < 0 {
		wait = 0
	}
	c.lastCall = time.Now().Add(wait)
	c.mu.Unlock()

	if wait == 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
