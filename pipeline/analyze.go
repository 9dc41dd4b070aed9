// ABOUTME: Analyze phase: extracts pain-point findings from scraped documents and ranks them.
// ABOUTME: Both reasoning calls carry fallback values so the phase degrades instead of failing.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/2389-research/nichescout/llm"
)

// corpus limits keep the reasoning payload bounded regardless of scrape size.
const (
	maxCorpusPerDoc = 1500
	maxCorpusTotal  = 8000
)

type analyzePhase struct {
	reason      Reasoner
	callTimeout time.Duration
}

func (p *analyzePhase) Name() string { return "analyze" }

func (p *analyzePhase) Run(ctx context.Context, st *RunState, sink Sink) (Update, error) {
	update := Update{Findings: []Finding{}}

	findings, errs := p.extractFindings(ctx, st)
	update.Findings = findings
	update.Errors = append(update.Errors, errs...)

	sink.Emit(Event{Type: EventPainPointsExtracted, Data: map[string]any{
		"count": len(findings),
	}})

	if len(findings) == 0 {
		return update, nil
	}

	top, errs := p.rankFindings(ctx, st.Niche, findings)
	update.Top = top
	update.Errors = append(update.Errors, errs...)

	if top != nil {
		sink.Emit(Event{Type: EventTopProblemSelected, Data: map[string]any{
			"description": top.Description,
			"keyword":     top.Keyword,
		}})
	}
	return update, nil
}

// extractFindings asks the reasoning provider for structured pain points from
// the scraped corpus. Any failure yields an empty list plus a recorded error.
func (p *analyzePhase) extractFindings(ctx context.Context, st *RunState) ([]Finding, []RunError) {
	if len(st.Documents) == 0 {
		return []Finding{}, []RunError{{Phase: p.Name(), Message: "no documents to analyze"}}
	}

	system := "You extract customer pain points from raw web text. " +
		"Respond with a JSON array of objects with keys: description, evidence, source_url, intensity (low|medium|high), category."
	user := fmt.Sprintf("Niche: %s\n\n%s", st.Niche, buildCorpus(st.Documents))

	raw, err := p.complete(ctx, system, user, 2048)
	if err != nil {
		return []Finding{}, []RunError{{Phase: p.Name(), Message: "extract findings: " + err.Error()}}
	}

	var findings []Finding
	if !llm.Decode(raw, &findings) {
		return []Finding{}, []RunError{{Phase: p.Name(), Message: "extract findings: unparseable response"}}
	}
	return findings, nil
}

// rankFindings asks the provider to pick and score the strongest finding.
// On failure it falls back to the first extracted finding with neutral scores.
func (p *analyzePhase) rankFindings(ctx context.Context, niche string, findings []Finding) (*TopFinding, []RunError) {
	system := "You rank customer pain points by opportunity. " +
		"Respond with a JSON object with keys: description, keyword (a short search phrase for the capability), " +
		"evidence (array of strings), rationale, frequency_score, intensity_score, monetizable_score (each 1-10)."
	user := fmt.Sprintf("Niche: %s\nFindings:\n%s", niche, findingsBullets(findings))

	raw, err := p.complete(ctx, system, user, 1024)
	if err == nil {
		var top TopFinding
		if llm.Decode(raw, &top) && top.Description != "" {
			if top.Keyword == "" {
				top.Keyword = niche
			}
			return &top, nil
		}
		err = fmt.Errorf("unparseable response")
	}

	// Fallback: first finding, niche as keyword, neutral scores.
	first := findings[0]
	return &TopFinding{
		Description: first.Description,
		Keyword:     niche,
		Evidence:    []string{first.Evidence},
		Rationale:   "fallback selection: ranking unavailable",
		Frequency:   5,
		Intensity:   5,
		Monetizable: 5,
	}, []RunError{{Phase: p.Name(), Message: "rank findings: " + err.Error()}}
}

func (p *analyzePhase) complete(ctx context.Context, system, user string, maxTokens int) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.reason.Complete(callCtx, system, user, maxTokens)
}

// buildCorpus concatenates document contents with per-document and total caps.
func buildCorpus(docs []Document) string {
	var b strings.Builder
	for _, d := range docs {
		content := truncateRunes(d.Content, maxCorpusPerDoc)
		if b.Len()+len(content) > maxCorpusTotal {
			break
		}
		fmt.Fprintf(&b, "Source: %s (%s)\n%s\n\n", d.Title, d.URL, content)
	}
	return b.String()
}

// truncateRunes caps s at max bytes without splitting a multi-byte rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func findingsBullets(findings []Finding) string {
	var b strings.Builder
	for _, f := range findings {
		fmt.Fprintf(&b, "- [%s/%s] %s (evidence: %s, source: %s)\n",
			f.Category, f.Intensity, f.Description, f.Evidence, f.SourceURL)
	}
	return b.String()
}
