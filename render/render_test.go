// ABOUTME: Tests for report rendering: full and degraded Markdown output plus
// ABOUTME: the HTML conversion.
package render

import (
	"strings"
	"testing"

	"github.com/2389-research/nichescout/pipeline"
)

func fullState() *pipeline.RunState {
	return &pipeline.RunState{
		RunID: "run-1",
		Niche: "indie podcasters",
		Top: &pipeline.TopFinding{
			Description: "guest scheduling is painful",
			Keyword:     "guest scheduling",
			Frequency:   8,
			Intensity:   7,
			Monetizable: 6,
			Rationale:   "common and costly",
		},
		Checks: []pipeline.CompetitorCheck{
			{Name: "Acme", URLsChecked: []string{"https://acme.example"}, DetectedGaps: []string{`no mention of "guest"`}, Success: true},
		},
		Verdict: &pipeline.GapVerdict{Confirmed: true, Confidence: "medium", Summary: "gap looks real", MissingIn: []string{"Acme"}},
		Brief: &pipeline.Brief{
			Headline:         "Guest scheduling for podcasters",
			ProblemStatement: "hours lost to email",
			TargetUser:       "indie podcasters",
			Features:         []pipeline.Feature{{Name: "guest portal", Priority: "must"}},
			GoToMarket:       "podcast communities",
			Confidence:       "medium",
		},
		Findings: []pipeline.Finding{
			{Description: "scheduling pain", Category: "workflow", Intensity: "high", SourceURL: "https://a.example"},
		},
	}
}

func TestMarkdownFullReport(t *testing.T) {
	md := Markdown(fullState())

	for _, want := range []string{
		"# Opportunity Report: indie podcasters",
		"## Guest scheduling for podcasters",
		"## Top Problem",
		"guest scheduling is painful",
		"## Gap Analysis",
		"Gap confirmed (confidence: medium)",
		"Missing in: Acme.",
		"## Competitor Checks",
		"| Acme | 1 | 1 | yes |",
		"## All Findings (1)",
		"- [must] guest portal",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(md, "## Warnings") {
		t.Errorf("clean run should have no warnings section")
	}
}

func TestMarkdownDegradedReport(t *testing.T) {
	st := &pipeline.RunState{
		RunID: "run-2",
		Niche: "indie podcasters",
		Errors: []pipeline.RunError{
			{Phase: "scout", Message: "search provider down"},
		},
	}
	md := Markdown(st)

	if !strings.Contains(md, "_No brief was produced for this run._") {
		t.Errorf("expected missing-brief note, got:\n%s", md)
	}
	if !strings.Contains(md, "## Warnings (1)") {
		t.Errorf("expected warnings section")
	}
	if !strings.Contains(md, "`scout`: search provider down") {
		t.Errorf("expected the phase error listed")
	}
	if strings.Contains(md, "## Top Problem") || strings.Contains(md, "## Gap Analysis") {
		t.Errorf("sections without data must be omitted")
	}
}

func TestHTMLConversion(t *testing.T) {
	html, err := HTML(fullState())
	if err != nil {
		t.Fatalf("HTML: %v", err)
	}
	if !strings.Contains(html, "<h1>Opportunity Report: indie podcasters</h1>") {
		t.Errorf("expected rendered h1, got:\n%s", html)
	}
	if !strings.Contains(html, "<table>") {
		t.Errorf("expected the competitor table rendered as HTML")
	}
}
