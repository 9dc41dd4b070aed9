// ABOUTME: Tests for RunState merge semantics: URL dedup, error accumulation,
// ABOUTME: last-write-wins fields, and the nil-means-no-write convention.
package pipeline

import (
	"testing"
)

func TestMergeDedupesSearchResultsByURL(t *testing.T) {
	var st RunState
	st.Merge(Update{SearchResults: []SearchResult{
		{URL: "https://a.example", Title: "first"},
		{URL: "https://b.example", Title: "second"},
	}})
	st.Merge(Update{SearchResults: []SearchResult{
		{URL: "https://b.example", Title: "duplicate"},
		{URL: "https://c.example", Title: "third"},
	}})

	if len(st.SearchResults) != 3 {
		t.Fatalf("expected 3 results, got %d", len(st.SearchResults))
	}
	// First occurrence wins.
	if st.SearchResults[1].Title != "second" {
		t.Errorf("expected first occurrence to win, got title %q", st.SearchResults[1].Title)
	}
}

func TestMergeSameResultsIsIdempotent(t *testing.T) {
	results := []SearchResult{
		{URL: "https://a.example"},
		{URL: "https://b.example"},
	}
	var st RunState
	st.Merge(Update{SearchResults: results})
	st.Merge(Update{SearchResults: results})

	if len(st.SearchResults) != 2 {
		t.Errorf("re-merging the same set should be a no-op, got %d results", len(st.SearchResults))
	}
}

func TestMergeSkipsEmptyURLs(t *testing.T) {
	var st RunState
	st.Merge(Update{SearchResults: []SearchResult{{URL: "", Title: "no url"}}})
	if len(st.SearchResults) != 0 {
		t.Errorf("expected empty-URL result to be dropped, got %d", len(st.SearchResults))
	}
}

func TestMergeDedupesDocumentsByURL(t *testing.T) {
	var st RunState
	st.Merge(Update{Documents: []Document{{URL: "https://a.example", Content: "one"}}})
	st.Merge(Update{Documents: []Document{
		{URL: "https://a.example", Content: "replaced"},
		{URL: "https://b.example", Content: "two"},
	}})

	if len(st.Documents) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(st.Documents))
	}
	if st.Documents[0].Content != "one" {
		t.Errorf("expected first document content preserved, got %q", st.Documents[0].Content)
	}
}

func TestMergeErrorsAccumulate(t *testing.T) {
	var st RunState
	st.Merge(Update{Errors: []RunError{{Phase: "scout", Message: "query failed"}}})
	st.Merge(Update{Errors: []RunError{{Phase: "analyze", Message: "no documents"}}})
	st.Merge(Update{})

	if len(st.Errors) != 2 {
		t.Fatalf("expected 2 accumulated errors, got %d", len(st.Errors))
	}
	if st.Errors[0].Phase != "scout" || st.Errors[1].Phase != "analyze" {
		t.Errorf("expected errors in emission order, got %+v", st.Errors)
	}
}

func TestMergeNilFieldsDoNotOverwrite(t *testing.T) {
	st := RunState{
		Top:     &TopFinding{Description: "existing"},
		Verdict: &GapVerdict{Confirmed: true},
		Brief:   &Brief{Headline: "existing"},
	}
	st.Merge(Update{})

	if st.Top == nil || st.Top.Description != "existing" {
		t.Errorf("nil Top in update must not clear state")
	}
	if st.Verdict == nil || !st.Verdict.Confirmed {
		t.Errorf("nil Verdict in update must not clear state")
	}
	if st.Brief == nil || st.Brief.Headline != "existing" {
		t.Errorf("nil Brief in update must not clear state")
	}
}

func TestMergeLastWriteWins(t *testing.T) {
	var st RunState
	st.Merge(Update{Top: &TopFinding{Description: "first"}})
	st.Merge(Update{Top: &TopFinding{Description: "second"}})

	if st.Top.Description != "second" {
		t.Errorf("expected last write to win, got %q", st.Top.Description)
	}
}

func TestMergeEmptyNonNilSliceReplacesFindings(t *testing.T) {
	var st RunState
	st.Merge(Update{Findings: []Finding{{Description: "pain"}}})
	st.Merge(Update{Findings: []Finding{}})

	if len(st.Findings) != 0 {
		t.Errorf("non-nil empty Findings should replace, got %d entries", len(st.Findings))
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	st := RunState{
		RunID: "run-1",
		Niche: "indie podcasters",
		Top:   &TopFinding{Description: "original"},
	}
	cp, err := st.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	cp.Top.Description = "mutated"
	if st.Top.Description != "original" {
		t.Errorf("mutating the snapshot leaked into the original state")
	}
	if cp.RunID != "run-1" || cp.Niche != "indie podcasters" {
		t.Errorf("snapshot lost fields: %+v", cp)
	}
}

func TestStatusTerminal(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{StatusRunning, false},
		{StatusComplete, true},
		{StatusCompleteWithWarnings, true},
		{StatusError, true},
	}
	for _, tc := range cases {
		if got := tc.status.Terminal(); got != tc.want {
			t.Errorf("Terminal(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
