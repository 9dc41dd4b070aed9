// ABOUTME: Pipeline orchestrator executing the four fixed phases Scout, Analyze, Validate, Brief.
// ABOUTME: Owns phase sequencing, state merging, event emission, error accumulation, and degraded completion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ErrNicheTooShort is returned by StartRun for niche strings under 3 characters.
var ErrNicheTooShort = errors.New("niche must be at least 3 characters")

// Config holds the collaborators and tuning knobs for the orchestrator.
type Config struct {
	Searcher Searcher
	Reasoner Reasoner
	Checker  Checker
	Memory   Memory

	// Competitors overrides the default target list for the validate phase.
	Competitors []CompetitorTarget

	// MaxCompetitors bounds how many targets are checked (default 3).
	MaxCompetitors int

	// CheckConcurrency caps parallel competitor checks (default 2).
	CheckConcurrency int

	// CallTimeout bounds each external provider call (default 20s).
	CallTimeout time.Duration

	// RunTimeout bounds an entire run so a hung dependency cannot stall it
	// forever (default 30m).
	RunTimeout time.Duration

	// ScrapeDelay is the polite delay between sequential calls to the
	// search/scrape provider (default 500ms).
	ScrapeDelay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxCompetitors <= 0 {
		c.MaxCompetitors = 3
	}
	if c.CheckConcurrency <= 0 {
		c.CheckConcurrency = 2
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 20 * time.Second
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 30 * time.Minute
	}
	if c.ScrapeDelay <= 0 {
		c.ScrapeDelay = 500 * time.Millisecond
	}
	return c
}

// phase is one coarse-grained pipeline stage with a fixed contract against
// RunState: read prior state, do work, return a partial update. A returned
// error (or panic, caught by the orchestrator) marks the phase errored; the
// pipeline continues with whatever partial data the update carried.
type phase interface {
	Name() string
	Run(ctx context.Context, st *RunState, sink Sink) (Update, error)
}

// Orchestrator sequences the four analysis phases for each run.
type Orchestrator struct {
	cfg      Config
	registry *Registry
}

// NewOrchestrator creates an orchestrator using the given registry for run tracking.
func NewOrchestrator(cfg Config, registry *Registry) *Orchestrator {
	return &Orchestrator{cfg: cfg.withDefaults(), registry: registry}
}

// StartRun validates the niche, registers a run, and kicks off asynchronous
// execution. It returns the run ID immediately; progress flows through the
// run's event channel. The run is fire-and-forget: consumers disconnecting
// does not cancel it.
func (o *Orchestrator) StartRun(niche string) (string, error) {
	if utf8.RuneCountInString(niche) < 3 {
		return "", ErrNicheTooShort
	}

	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RunTimeout)

	rec := &RunRecord{
		ID:        runID,
		Niche:     niche,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
		Events:    NewBroadcaster(runID),
		Cancel:    cancel,
	}
	o.registry.Add(rec)

	go o.run(ctx, cancel, rec)

	return runID, nil
}

// GetRun returns a snapshot of the run record, or false for unknown IDs.
func (o *Orchestrator) GetRun(runID string) (RunInfo, bool) {
	return o.registry.Info(runID)
}

// run executes the full phase sequence for one run. It is the single point
// where phase-fatal errors become state updates instead of process crashes,
// and it guarantees exactly one terminal done event however the run ends.
func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, rec *RunRecord) {
	defer cancel()

	start := time.Now()
	state := &RunState{
		RunID:     rec.ID,
		Niche:     rec.Niche,
		StartedAt: rec.StartedAt,
	}

	sink := o.newSink(rec, state)
	defer rec.Events.Close()

	// finish is guarded so the run emits its terminal done event exactly once,
	// whichever path ends the run.
	finished := false
	finish := func(status Status) {
		if finished {
			return
		}
		finished = true
		o.finish(ctx, rec, state, sink, start, status)
	}

	// A panic escaping everything below still produces a terminal state.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("run panic run=%s: %v\n%s", rec.ID, r, debug.Stack())
			state.Errors = append(state.Errors, RunError{Phase: "orchestrator", Message: fmt.Sprintf("panic: %v", r)})
			finish(StatusError)
		}
	}()

	sink.Emit(Event{Type: EventRunStart, Data: map[string]any{"niche": rec.Niche}})

	// Total reasoning-provider unavailability is the one run-fatal condition:
	// every downstream phase depends on it.
	if err := o.preflight(ctx); err != nil {
		log.Printf("run preflight failed run=%s err=%v", rec.ID, err)
		state.Errors = append(state.Errors, RunError{Phase: "preflight", Message: err.Error()})
		sink.Emit(Event{Type: EventError, Data: map[string]any{"error": err.Error()}})
		finish(StatusError)
		return
	}

	// Memory session setup is fallible and non-fatal: the run proceeds with
	// an absent space ID when it does not work out.
	if o.cfg.Memory != nil {
		sessionID, spaceID, err := o.cfg.Memory.CreateSession(ctx, rec.ID, rec.Niche)
		if err != nil {
			log.Printf("memory session setup failed run=%s err=%v", rec.ID, err)
			state.Errors = append(state.Errors, RunError{Phase: "setup", Message: "memory session setup: " + err.Error()})
		} else {
			state.SessionID = sessionID
			state.SpaceID = spaceID
			sink.Emit(Event{Type: EventSessionCreated, Data: map[string]any{"session_id": sessionID, "space_id": spaceID}})
		}
	}

	for _, p := range o.phases() {
		if ctx.Err() != nil {
			state.Errors = append(state.Errors, RunError{Phase: p.Name(), Message: "run aborted: " + ctx.Err().Error()})
			break
		}

		sink.Emit(Event{Type: EventPhaseStart, Data: map[string]any{"phase": p.Name()}})

		update, err := runPhase(ctx, p, state, sink)
		if err != nil {
			log.Printf("phase errored run=%s phase=%s err=%v", rec.ID, p.Name(), err)
			update.Errors = append(update.Errors, RunError{Phase: p.Name(), Message: err.Error()})
			sink.Emit(Event{Type: EventPhaseWarning, Data: map[string]any{"phase": p.Name(), "error": err.Error()}})
		}
		state.Merge(update)

		// phase_complete is emitted unconditionally: degraded completion is
		// the default, not the exception.
		sink.Emit(Event{Type: EventPhaseComplete, Data: map[string]any{"phase": p.Name()}})
	}

	status := StatusComplete
	if len(state.Errors) > 0 {
		status = StatusCompleteWithWarnings
	}
	finish(status)
}

// phases builds the fixed four-phase sequence for one run.
func (o *Orchestrator) phases() []phase {
	return []phase{
		&scoutPhase{search: o.cfg.Searcher, callTimeout: o.cfg.CallTimeout, delay: o.cfg.ScrapeDelay},
		&analyzePhase{reason: o.cfg.Reasoner, callTimeout: o.cfg.CallTimeout},
		&validatePhase{
			checker:     o.cfg.Checker,
			search:      o.cfg.Searcher,
			reason:      o.cfg.Reasoner,
			targets:     o.cfg.Competitors,
			maxTargets:  o.cfg.MaxCompetitors,
			concurrency: o.cfg.CheckConcurrency,
			callTimeout: o.cfg.CallTimeout,
		},
		&briefPhase{reason: o.cfg.Reasoner, callTimeout: o.cfg.CallTimeout},
	}
}

// preflight verifies the pipeline's hard preconditions before the first phase.
func (o *Orchestrator) preflight(ctx context.Context) error {
	if o.cfg.Reasoner == nil {
		return errors.New("reasoning provider not configured")
	}
	if err := o.cfg.Reasoner.Preflight(ctx); err != nil {
		return fmt.Errorf("reasoning provider unavailable: %w", err)
	}
	return nil
}

// finish persists the final state, transitions the registry status, and emits
// report_ready (when a report was saved) followed by the single done event.
func (o *Orchestrator) finish(ctx context.Context, rec *RunRecord, state *RunState, sink Sink, start time.Time, status Status) {
	if o.cfg.Memory != nil {
		// Persist whatever partial state exists, even after a run-fatal error.
		// Use a fresh context: the run context may already be expired.
		saveCtx, saveCancel := context.WithTimeout(context.Background(), o.cfg.CallTimeout)
		defer saveCancel()
		if err := o.cfg.Memory.SaveReport(saveCtx, rec.ID, state); err != nil {
			log.Printf("report save failed run=%s err=%v", rec.ID, err)
			state.Errors = append(state.Errors, RunError{Phase: "finalize", Message: "report save: " + err.Error()})
			if status == StatusComplete {
				status = StatusCompleteWithWarnings
			}
		} else if status != StatusError {
			snap, err := state.Snapshot()
			if err == nil {
				sink.Emit(Event{Type: EventReportReady, Data: map[string]any{"report": snap}})
			}
		}
	}

	o.registry.SetStatus(rec.ID, status)
	sink.Emit(Event{Type: EventDone, Data: map[string]any{
		"status":     string(status),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}})
	log.Printf("run finished run=%s status=%s elapsed=%s errors=%d",
		rec.ID, status, time.Since(start).Round(time.Millisecond), len(state.Errors))
}

// newSink builds the event sink for a run: broadcast to subscribers and
// best-effort append to the memory store's session log.
func (o *Orchestrator) newSink(rec *RunRecord, state *RunState) Sink {
	return SinkFunc(func(evt Event) {
		if evt.RunID == "" {
			evt.RunID = rec.ID
		}
		if evt.Timestamp.IsZero() {
			evt.Timestamp = time.Now().UTC()
		}
		rec.Events.Emit(evt)

		if o.cfg.Memory == nil || state.SessionID == "" {
			return
		}
		// Appends outlive the run context so terminal events of a cancelled
		// or expired run still reach the session log.
		appendCtx, cancel := context.WithTimeout(context.Background(), o.cfg.CallTimeout)
		defer cancel()
		if err := o.cfg.Memory.AppendEvent(appendCtx, state.SessionID, evt); err != nil {
			log.Printf("session log append failed run=%s type=%s err=%v", rec.ID, evt.Type, err)
		}
	})
}

// runPhase executes one phase with panic recovery at the phase boundary,
// converting panics into phase-fatal errors so the pipeline keeps moving.
func runPhase(ctx context.Context, p phase, st *RunState, sink Sink) (update Update, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("phase panic: %v\n%s", r, debug.Stack())
			update = Update{}
		}
	}()
	return p.Run(ctx, st, sink)
}

// sleepWithContext sleeps for d, returning early if the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
