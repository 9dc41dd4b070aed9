// ABOUTME: Defines RunState, the typed record threading through all four pipeline phases,
// ABOUTME: and the merge semantics phases use to fold their partial results back in.
package pipeline

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle status of a run.
type Status string

const (
	StatusRunning              Status = "running"
	StatusComplete             Status = "complete"
	StatusCompleteWithWarnings Status = "complete_with_warnings"
	StatusError                Status = "error"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusCompleteWithWarnings || s == StatusError
}

// SearchResult is one hit returned by the search provider.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Document is a search result with its full extracted text content.
type Document struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Content string `json:"content"`
}

// Finding is a single extracted pain point with supporting evidence.
type Finding struct {
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
	SourceURL   string `json:"source_url"`
	Intensity   string `json:"intensity"` // "low", "medium", "high"
	Category    string `json:"category"`
}

// TopFinding is the finding selected for validation, with ranking scores and
// a derived keyword used to probe competitors.
type TopFinding struct {
	Description string   `json:"description"`
	Keyword     string   `json:"keyword"`
	Evidence    []string `json:"evidence"`
	Rationale   string   `json:"rationale"`
	Frequency   int      `json:"frequency_score"`   // 1-10
	Intensity   int      `json:"intensity_score"`   // 1-10
	Monetizable int      `json:"monetizable_score"` // 1-10
}

// CompetitorCheck is the result of probing one competitor for the target capability.
type CompetitorCheck struct {
	Name         string   `json:"name"`
	URLsChecked  []string `json:"urls_checked"`
	DetectedGaps []string `json:"detected_gaps"`
	Screenshot   string   `json:"screenshot,omitempty"` // file path, empty when capture failed
	Success      bool     `json:"success"`
	Notes        string   `json:"notes,omitempty"`
}

// GapVerdict is the synthesized determination of whether competitors lack the capability.
type GapVerdict struct {
	Confirmed  bool     `json:"confirmed"`
	Confidence string   `json:"confidence"` // "low", "medium", "high"
	Summary    string   `json:"summary"`
	MissingIn  []string `json:"missing_in"`
}

// Feature is one recommended product feature in the final brief.
type Feature struct {
	Name     string `json:"name"`
	Priority string `json:"priority"` // "must", "should", "later"
}

// Brief is the final synthesized opportunity brief.
type Brief struct {
	Headline         string    `json:"headline"`
	ProblemStatement string    `json:"problem_statement"`
	TargetUser       string    `json:"target_user"`
	Features         []Feature `json:"features"`
	GoToMarket       string    `json:"go_to_market"`
	Confidence       string    `json:"validation_confidence"`
}

// RunError is one non-fatal error accumulated during a run, attributed to a phase.
type RunError struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

// RunState is the single mutable-by-merge record threading through all phases.
// Phases never mutate it directly; they return an Update the orchestrator merges.
type RunState struct {
	RunID         string            `json:"run_id"`
	Niche         string            `json:"niche"`
	SessionID     string            `json:"session_id,omitempty"`
	SpaceID       string            `json:"space_id,omitempty"`
	SearchResults []SearchResult    `json:"search_results"`
	Documents     []Document        `json:"documents"`
	Findings      []Finding         `json:"findings"`
	Top           *TopFinding       `json:"top_finding,omitempty"`
	Checks        []CompetitorCheck `json:"competitor_checks"`
	Verdict       *GapVerdict       `json:"gap_verdict,omitempty"`
	Brief         *Brief            `json:"brief,omitempty"`
	Errors        []RunError        `json:"errors"`
	StartedAt     time.Time         `json:"started_at"`
}

// Update is the partial result a phase returns. A nil slice or pointer field
// means "no write"; a non-nil field (even an empty allocated slice) fully
// replaces the previous value, except where noted below.
type Update struct {
	SearchResults []SearchResult // merged into state with URL dedup, never replaced
	Documents     []Document     // merged into state with URL dedup, never replaced
	Findings      []Finding
	Top           *TopFinding
	Checks        []CompetitorCheck
	Verdict       *GapVerdict
	Brief         *Brief
	Errors        []RunError // always appended, never replaces prior entries
}

// Merge folds a phase's partial update into the run state. Search results and
// documents are deduplicated by URL (first occurrence wins, re-merging the same
// URL set is a no-op). Errors concatenate. Everything else is last-write-wins.
func (s *RunState) Merge(u Update) {
	if u.SearchResults != nil {
		s.SearchResults = mergeResults(s.SearchResults, u.SearchResults)
	}
	if u.Documents != nil {
		s.Documents = mergeDocuments(s.Documents, u.Documents)
	}
	if u.Findings != nil {
		s.Findings = u.Findings
	}
	if u.Top != nil {
		s.Top = u.Top
	}
	if u.Checks != nil {
		s.Checks = u.Checks
	}
	if u.Verdict != nil {
		s.Verdict = u.Verdict
	}
	if u.Brief != nil {
		s.Brief = u.Brief
	}
	s.Errors = append(s.Errors, u.Errors...)
}

// mergeResults appends entries whose URL has not been seen, preserving order.
func mergeResults(existing, incoming []SearchResult) []SearchResult {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r.URL] = true
	}
	out := existing
	for _, r := range incoming {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}

// mergeDocuments appends documents whose URL has not been seen, preserving order.
func mergeDocuments(existing, incoming []Document) []Document {
	seen := make(map[string]bool, len(existing))
	for _, d := range existing {
		seen[d.URL] = true
	}
	out := existing
	for _, d := range incoming {
		if d.URL == "" || seen[d.URL] {
			continue
		}
		seen[d.URL] = true
		out = append(out, d)
	}
	return out
}

// Snapshot returns a deep copy of the state via JSON round-trip, safe to hand
// to readers while the run is still mutating the original.
func (s *RunState) Snapshot() (*RunState, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var cp RunState
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}
