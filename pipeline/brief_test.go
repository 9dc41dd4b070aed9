// ABOUTME: Tests for the brief phase: synthesis from full state, confidence
// ABOUTME: derivation, and the placeholder brief when reasoning is unavailable.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func briefForTest(r Reasoner) *briefPhase {
	return &briefPhase{reason: r, callTimeout: time.Second}
}

func TestBriefSynthesizes(t *testing.T) {
	r := &scriptedReasoner{answers: map[string]string{
		"product opportunity brief": `{"headline":"Guest scheduling for podcasters","problem_statement":"hours lost","target_user":"indie podcasters","features":[{"name":"guest portal","priority":"must"}],"go_to_market":"communities","validation_confidence":"high"}`,
	}}

	st := &RunState{Niche: "indie podcasters", Top: &TopFinding{Description: "scheduling pain"}}
	update, err := briefForTest(r).Run(context.Background(), st, nullSink())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if update.Brief == nil || update.Brief.Headline != "Guest scheduling for podcasters" {
		t.Errorf("expected synthesized brief, got %+v", update.Brief)
	}
	if update.Brief.Confidence != "high" {
		t.Errorf("expected provider confidence kept, got %q", update.Brief.Confidence)
	}
	if len(update.Errors) != 0 {
		t.Errorf("expected no errors, got %+v", update.Errors)
	}
}

func TestBriefConfidenceDerivedFromVerdictWhenOmitted(t *testing.T) {
	r := &scriptedReasoner{answers: map[string]string{
		"product opportunity brief": `{"headline":"Something","problem_statement":"p","target_user":"t"}`,
	}}

	st := &RunState{Niche: "indie podcasters", Verdict: &GapVerdict{Confirmed: true, Confidence: "medium"}}
	update, err := briefForTest(r).Run(context.Background(), st, nullSink())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if update.Brief.Confidence != "medium" {
		t.Errorf("expected confidence from verdict, got %q", update.Brief.Confidence)
	}
}

func TestBriefDegradesToPlaceholder(t *testing.T) {
	r := &scriptedReasoner{err: errors.New("rate limited")}

	st := &RunState{Niche: "indie podcasters"}
	update, err := briefForTest(r).Run(context.Background(), st, nullSink())
	if err != nil {
		t.Fatalf("degraded synthesis must not be phase-fatal: %v", err)
	}
	b := update.Brief
	if b == nil {
		t.Fatalf("expected a placeholder brief")
	}
	if !strings.Contains(b.Headline, "indie podcasters") {
		t.Errorf("placeholder headline should name the niche, got %q", b.Headline)
	}
	if b.ProblemStatement != "indie podcasters" {
		t.Errorf("with no findings the problem statement is the niche, got %q", b.ProblemStatement)
	}
	if b.Confidence != "low" {
		t.Errorf("placeholder confidence must be low, got %q", b.Confidence)
	}
	if len(update.Errors) == 0 {
		t.Errorf("expected the synthesis failure recorded")
	}
}

func TestDegradedBriefUsesTopFindingAndVerdict(t *testing.T) {
	st := &RunState{
		Niche:   "indie podcasters",
		Top:     &TopFinding{Description: "scheduling pain"},
		Verdict: &GapVerdict{Confirmed: true},
	}
	b := degradedBrief(st)
	if b.ProblemStatement != "scheduling pain" {
		t.Errorf("expected top finding as problem statement, got %q", b.ProblemStatement)
	}
	if len(b.Features) != 1 || b.Features[0].Priority != "must" {
		t.Errorf("confirmed verdict should add a must feature, got %+v", b.Features)
	}
}
