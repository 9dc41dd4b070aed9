// ABOUTME: Brief phase: synthesizes the final structured opportunity brief from all prior state.
// ABOUTME: A degraded placeholder brief is produced whenever the reasoning call cannot deliver one.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389-research/nichescout/llm"
)

type briefPhase struct {
	reason      Reasoner
	callTimeout time.Duration
}

func (p *briefPhase) Name() string { return "brief" }

func (p *briefPhase) Run(ctx context.Context, st *RunState, sink Sink) (Update, error) {
	var update Update

	sink.Emit(Event{Type: EventTaskUpdate, Data: map[string]any{
		"task": "synthesizing brief",
	}})

	brief, errs := p.synthesize(ctx, st)
	update.Brief = brief
	update.Errors = append(update.Errors, errs...)
	return update, nil
}

func (p *briefPhase) synthesize(ctx context.Context, st *RunState) (*Brief, []RunError) {
	system := "You write a concise product opportunity brief. " +
		"Respond with a JSON object with keys: headline, problem_statement, target_user, " +
		"features (array of {name, priority} with priority one of must|should|later), " +
		"go_to_market, validation_confidence (low|medium|high)."

	payload := map[string]any{
		"niche":             st.Niche,
		"top_finding":       st.Top,
		"gap_verdict":       st.Verdict,
		"competitor_checks": st.Checks,
		"findings":          st.Findings,
	}
	user, _ := json.Marshal(payload)

	callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	raw, err := p.reason.Complete(callCtx, system, string(user), 2048)
	if err == nil {
		var b Brief
		if llm.Decode(raw, &b) && b.Headline != "" {
			if b.Confidence == "" {
				b.Confidence = confidenceFrom(st)
			}
			return &b, nil
		}
		err = fmt.Errorf("unparseable response")
	}

	return degradedBrief(st), []RunError{{Phase: p.Name(), Message: "synthesize brief: " + err.Error()}}
}

// degradedBrief assembles a placeholder brief from whatever state exists.
// With no findings at all, the problem statement is the niche itself.
func degradedBrief(st *RunState) *Brief {
	problem := st.Niche
	if st.Top != nil && st.Top.Description != "" {
		problem = st.Top.Description
	}
	b := &Brief{
		Headline:         fmt.Sprintf("Opportunity in %s", st.Niche),
		ProblemStatement: problem,
		TargetUser:       st.Niche,
		Features:         []Feature{},
		GoToMarket:       "Insufficient data for a go-to-market recommendation.",
		Confidence:       "low",
	}
	if st.Verdict != nil && st.Verdict.Confirmed {
		b.Features = append(b.Features, Feature{
			Name:     "Close the capability gap competitors leave open",
			Priority: "must",
		})
	}
	return b
}

// confidenceFrom derives a confidence level from the gap verdict when the
// provider response omitted one.
func confidenceFrom(st *RunState) string {
	if st.Verdict == nil || st.Verdict.Confidence == "" {
		return "low"
	}
	return st.Verdict.Confidence
}
