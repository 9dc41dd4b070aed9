// ABOUTME: Narrow interfaces for the external collaborators the pipeline consumes.
// ABOUTME: Adapters in scrape/, llm/, browser/, and memory/ provide the concrete implementations.
package pipeline

import "context"

// Searcher is the search/scrape provider boundary: keyword search plus
// URL-to-text extraction. Both calls may fail per-call; callers degrade
// rather than propagate.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
	FetchContent(ctx context.Context, url string) (string, error)
}

// Reasoner is the reasoning provider boundary: prompt in, text out. The
// returned text is expected but not guaranteed to be valid JSON; call sites
// own their fallback values.
type Reasoner interface {
	// Complete sends system instructions plus user content and returns the
	// provider's text response.
	Complete(ctx context.Context, system, user string, maxTokens int) (string, error)

	// Preflight reports whether the provider is usable at all (credentials
	// present). A Preflight failure is the one run-fatal condition.
	Preflight(ctx context.Context) error
}

// CompetitorTarget names one competitor to probe and where to look.
type CompetitorTarget struct {
	Name string   `json:"name"`
	URLs []string `json:"urls"`
}

// Checker is the manual/automation provider boundary: fetch a verified
// interaction script for a task, and execute a competitor check in a
// headless browser, falling back to direct navigation when no manual exists.
type Checker interface {
	// GetManual returns the interaction script for the task, or "" when none
	// is available. Absence is not an error.
	GetManual(ctx context.Context, task string) (string, error)

	// Execute probes one competitor for the keyword capability. manual may be
	// empty. One competitor's failure never blocks another; checks are
	// independent and order-insensitive.
	Execute(ctx context.Context, target CompetitorTarget, keyword, manual string) (CompetitorCheck, error)
}

// Memory is the memory store boundary: an append-only session log per run
// plus a small persisted report blob.
type Memory interface {
	CreateSession(ctx context.Context, runID, niche string) (sessionID, spaceID string, err error)
	AppendEvent(ctx context.Context, sessionID string, evt Event) error
	SaveReport(ctx context.Context, runID string, state *RunState) error
	GetReport(ctx context.Context, runID string) (*RunState, error)
}
