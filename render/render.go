// ABOUTME: Renders a run's opportunity report to Markdown and HTML.
// ABOUTME: Markdown is the canonical human-readable form; HTML is produced from it via goldmark.
package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389-research/nichescout/pipeline"
)

// Markdown renders the run state as a Markdown opportunity report.
// Degraded runs render whatever sections have data; missing sections are
// noted rather than omitted silently.
func Markdown(st *pipeline.RunState) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Opportunity Report: %s\n\n", st.Niche)
	fmt.Fprintf(&b, "Run `%s`, started %s.\n\n", st.RunID, st.StartedAt.Format("2006-01-02 15:04 UTC"))

	if st.Brief != nil {
		writeBrief(&b, st.Brief)
	} else {
		b.WriteString("## Brief\n\n_No brief was produced for this run._\n\n")
	}

	if st.Top != nil {
		writeTopFinding(&b, st.Top)
	}

	if st.Verdict != nil {
		writeVerdict(&b, st.Verdict)
	}

	if len(st.Checks) > 0 {
		writeChecks(&b, st.Checks)
	}

	if len(st.Findings) > 0 {
		fmt.Fprintf(&b, "## All Findings (%d)\n\n", len(st.Findings))
		for _, f := range st.Findings {
			fmt.Fprintf(&b, "- **%s** (%s, %s) — %s\n", f.Description, f.Category, f.Intensity, f.SourceURL)
		}
		b.WriteString("\n")
	}

	if len(st.Errors) > 0 {
		fmt.Fprintf(&b, "## Warnings (%d)\n\n", len(st.Errors))
		for _, e := range st.Errors {
			fmt.Fprintf(&b, "- `%s`: %s\n", e.Phase, e.Message)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// HTML renders the run state to HTML by converting the Markdown report.
func HTML(st *pipeline.RunState) (string, error) {
	var buf bytes.Buffer
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	if err := md.Convert([]byte(Markdown(st)), &buf); err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}
	return buf.String(), nil
}

func writeBrief(b *strings.Builder, brief *pipeline.Brief) {
	fmt.Fprintf(b, "## %s\n\n", brief.Headline)
	fmt.Fprintf(b, "**Problem.** %s\n\n", brief.ProblemStatement)
	fmt.Fprintf(b, "**Target user.** %s\n\n", brief.TargetUser)
	if len(brief.Features) > 0 {
		b.WriteString("**Features.**\n\n")
		for _, f := range brief.Features {
			fmt.Fprintf(b, "- [%s] %s\n", f.Priority, f.Name)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(b, "**Go to market.** %s\n\n", brief.GoToMarket)
	fmt.Fprintf(b, "**Validation confidence.** %s\n\n", brief.Confidence)
}

func writeTopFinding(b *strings.Builder, top *pipeline.TopFinding) {
	b.WriteString("## Top Problem\n\n")
	fmt.Fprintf(b, "%s\n\n", top.Description)
	fmt.Fprintf(b, "Keyword: `%s` — frequency %d/10, intensity %d/10, monetizable %d/10.\n\n",
		top.Keyword, top.Frequency, top.Intensity, top.Monetizable)
	if top.Rationale != "" {
		fmt.Fprintf(b, "_%s_\n\n", top.Rationale)
	}
}

func writeVerdict(b *strings.Builder, v *pipeline.GapVerdict) {
	b.WriteString("## Gap Analysis\n\n")
	verdict := "not confirmed"
	if v.Confirmed {
		verdict = "confirmed"
	}
	fmt.Fprintf(b, "Gap %s (confidence: %s). %s\n\n", verdict, v.Confidence, v.Summary)
	if len(v.MissingIn) > 0 {
		fmt.Fprintf(b, "Missing in: %s.\n\n", strings.Join(v.MissingIn, ", "))
	}
}

func writeChecks(b *strings.Builder, checks []pipeline.CompetitorCheck) {
	b.WriteString("## Competitor Checks\n\n")
	b.WriteString("| Competitor | Pages | Gaps | OK | Notes |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, c := range checks {
		ok := "no"
		if c.Success {
			ok = "yes"
		}
		fmt.Fprintf(b, "| %s | %d | %d | %s | %s |\n",
			c.Name, len(c.URLsChecked), len(c.DetectedGaps), ok, c.Notes)
	}
	b.WriteString("\n")
}
