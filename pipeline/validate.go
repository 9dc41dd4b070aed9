// ABOUTME: Validate phase: probes a bounded set of competitors for the derived capability keyword.
// ABOUTME: Checks run with a bounded concurrency cap, results are collected by index for determinism.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2389-research/nichescout/llm"
)

// defaultCompetitors is the hardcoded target list used when neither the
// configuration nor the reasoning provider supplies alternatives.
var defaultCompetitors = []CompetitorTarget{
	{Name: "Notion", URLs: []string{"https://www.notion.so/pricing", "https://www.notion.so/product"}},
	{Name: "Trello", URLs: []string{"https://trello.com/pricing", "https://trello.com/tour"}},
	{Name: "Asana", URLs: []string{"https://asana.com/pricing", "https://asana.com/product"}},
}

type validatePhase struct {
	checker     Checker
	search      Searcher
	reason      Reasoner
	targets     []CompetitorTarget
	maxTargets  int
	concurrency int
	callTimeout time.Duration
}

func (p *validatePhase) Name() string { return "validate" }

func (p *validatePhase) Run(ctx context.Context, st *RunState, sink Sink) (Update, error) {
	update := Update{Checks: []CompetitorCheck{}}

	// The derived keyword may be absent after a degraded analyze phase; the
	// niche itself then stands in so all checks still execute.
	keyword := st.Niche
	if st.Top != nil && st.Top.Keyword != "" {
		keyword = st.Top.Keyword
	}

	targets := p.resolveTargets(ctx, st.Niche, &update)

	// errMu guards update.Errors; check results go into a fixed-size slice by
	// position so reported order never depends on arrival order.
	checks := make([]CompetitorCheck, len(targets))
	var errMu sync.Mutex
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, target := range targets {
		wg.Add(1)
		go func(i int, target CompetitorTarget) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			chk, errs := p.checkOne(ctx, target, keyword, sink)
			checks[i] = chk
			if len(errs) > 0 {
				errMu.Lock()
				update.Errors = append(update.Errors, errs...)
				errMu.Unlock()
			}
		}(i, target)
	}
	wg.Wait()
	update.Checks = checks

	verdict, errs := p.interpret(ctx, keyword, checks)
	update.Verdict = verdict
	update.Errors = append(update.Errors, errs...)

	sink.Emit(Event{Type: EventGapAnalysisComplete, Data: map[string]any{
		"confirmed":  verdict.Confirmed,
		"confidence": verdict.Confidence,
		"missing_in": verdict.MissingIn,
	}})
	return update, nil
}

// resolveTargets picks the competitor list: configured targets first, then
// reasoning-provider suggestions, then the hardcoded defaults. The list is
// always bounded by maxTargets.
func (p *validatePhase) resolveTargets(ctx context.Context, niche string, update *Update) []CompetitorTarget {
	targets := p.targets
	if len(targets) == 0 && p.reason != nil {
		suggested, err := p.suggestTargets(ctx, niche)
		if err != nil {
			update.Errors = append(update.Errors, RunError{Phase: p.Name(), Message: "suggest competitors: " + err.Error()})
		} else {
			targets = suggested
		}
	}
	if len(targets) == 0 {
		targets = defaultCompetitors
	}
	if len(targets) > p.maxTargets {
		targets = targets[:p.maxTargets]
	}
	return targets
}

// suggestTargets asks the reasoning provider for competitors in the niche.
func (p *validatePhase) suggestTargets(ctx context.Context, niche string) ([]CompetitorTarget, error) {
	system := "You name established competitors in a market niche. " +
		"Respond with a JSON array of objects with keys: name, urls (array of product/pricing page URLs)."
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	raw, err := p.reason.Complete(callCtx, system, "Niche: "+niche, 512)
	if err != nil {
		return nil, err
	}
	var targets []CompetitorTarget
	if !llm.Decode(raw, &targets) || len(targets) == 0 {
		return nil, fmt.Errorf("unparseable response")
	}
	return targets, nil
}

// checkOne probes a single competitor. Browser execution failures fall back
// to a plain scrape of the target's pages with the keyword heuristics, so a
// dead browser never empties the phase.
func (p *validatePhase) checkOne(ctx context.Context, target CompetitorTarget, keyword string, sink Sink) (CompetitorCheck, []RunError) {
	var errs []RunError

	sink.Emit(Event{Type: EventBrowserAction, Data: map[string]any{
		"competitor": target.Name,
		"action":     "check_start",
	}})

	if p.checker != nil {
		manual, err := p.getManual(ctx, target, keyword)
		if err != nil {
			// Absent manual is expected; a failed lookup only degrades to the
			// executor's direct-navigation strategy.
			errs = append(errs, RunError{Phase: p.Name(), Message: fmt.Sprintf("manual lookup %s: %v", target.Name, err)})
		}

		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		chk, err := p.checker.Execute(callCtx, target, keyword, manual)
		cancel()
		if err == nil && chk.Success {
			sink.Emit(Event{Type: EventBrowserAction, Data: map[string]any{
				"competitor": target.Name,
				"action":     "check_complete",
				"gaps":       len(chk.DetectedGaps),
			}})
			return chk, errs
		}
		if err != nil {
			errs = append(errs, RunError{Phase: p.Name(), Message: fmt.Sprintf("browser check %s: %v", target.Name, err)})
		}
	}

	chk := p.fallbackScrape(ctx, target, keyword, &errs)
	sink.Emit(Event{Type: EventBrowserAction, Data: map[string]any{
		"competitor": target.Name,
		"action":     "check_complete",
		"gaps":       len(chk.DetectedGaps),
		"fallback":   true,
	}})
	return chk, errs
}

func (p *validatePhase) getManual(ctx context.Context, target CompetitorTarget, keyword string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	task := fmt.Sprintf("check %s for %q support", target.Name, keyword)
	return p.checker.GetManual(callCtx, task)
}

// fallbackScrape fetches the target's pages as plain text and applies the
// keyword gap heuristics directly.
func (p *validatePhase) fallbackScrape(ctx context.Context, target CompetitorTarget, keyword string, errs *[]RunError) CompetitorCheck {
	chk := CompetitorCheck{
		Name:         target.Name,
		URLsChecked:  []string{},
		DetectedGaps: []string{},
		Notes:        "direct scrape fallback",
	}
	if p.search == nil {
		chk.DetectedGaps = DetectKeywordGaps("", keyword)
		chk.Success = false
		chk.Notes = "no scrape provider; heuristic-only check"
		return chk
	}

	var combined strings.Builder
	for _, url := range target.URLs {
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		content, err := p.search.FetchContent(callCtx, url)
		cancel()
		if err != nil {
			*errs = append(*errs, RunError{Phase: p.Name(), Message: fmt.Sprintf("fallback scrape %s: %v", url, err)})
			continue
		}
		chk.URLsChecked = append(chk.URLsChecked, url)
		combined.WriteString(content)
		combined.WriteString("\n")
	}

	chk.DetectedGaps = DetectKeywordGaps(combined.String(), keyword)
	chk.Success = len(chk.URLsChecked) > 0
	if !chk.Success {
		chk.Notes = "all fallback scrapes failed; heuristic-only check"
	}
	return chk
}

// interpret turns the raw check results into a gap verdict, degrading to a
// low-confidence heuristic verdict when the provider cannot.
func (p *validatePhase) interpret(ctx context.Context, keyword string, checks []CompetitorCheck) (*GapVerdict, []RunError) {
	if p.reason != nil {
		raw, err := func() (string, error) {
			callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
			defer cancel()
			payload, _ := json.Marshal(checks)
			system := "You judge whether competitors lack a capability based on check results. " +
				"Respond with a JSON object with keys: confirmed (bool), confidence (low|medium|high), summary, missing_in (array of competitor names)."
			return p.reason.Complete(callCtx, system, fmt.Sprintf("Capability: %s\nChecks: %s", keyword, payload), 512)
		}()
		if err == nil {
			var v GapVerdict
			if llm.Decode(raw, &v) && v.Confidence != "" {
				return &v, nil
			}
			err = fmt.Errorf("unparseable response")
		}
		return heuristicVerdict(keyword, checks), []RunError{{Phase: p.Name(), Message: "interpret checks: " + err.Error()}}
	}
	return heuristicVerdict(keyword, checks), nil
}

// heuristicVerdict is the reasoning-free fallback: confirmed when any check
// detected gaps, always low confidence.
func heuristicVerdict(keyword string, checks []CompetitorCheck) *GapVerdict {
	v := &GapVerdict{
		Confidence: "low",
		MissingIn:  []string{},
	}
	for _, chk := range checks {
		if len(chk.DetectedGaps) > 0 {
			v.Confirmed = true
			v.MissingIn = append(v.MissingIn, chk.Name)
		}
	}
	if v.Confirmed {
		v.Summary = fmt.Sprintf("%d of %d checked competitors show no support for %q", len(v.MissingIn), len(checks), keyword)
	} else {
		v.Summary = fmt.Sprintf("no gap evidence for %q across %d competitors", keyword, len(checks))
	}
	return v
}

// DetectKeywordGaps applies the hardcoded gap heuristics: each significant
// term of the keyword missing from the page text counts as a detected gap.
// Empty text reports the whole keyword as unverifiable-and-missing.
func DetectKeywordGaps(text, keyword string) []string {
	gaps := []string{}
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return append(gaps, fmt.Sprintf("no page text; %q unverified", keyword))
	}
	for _, term := range significantTerms(keyword) {
		if !strings.Contains(lower, term) {
			gaps = append(gaps, fmt.Sprintf("no mention of %q", term))
		}
	}
	return gaps
}

// significantTerms splits a keyword phrase into lowercase terms longer than
// three characters, which filters stopwords well enough for gap probing.
func significantTerms(keyword string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(keyword)) {
		if len(w) > 3 {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 && strings.TrimSpace(keyword) != "" {
		terms = append(terms, strings.ToLower(strings.TrimSpace(keyword)))
	}
	return terms
}
