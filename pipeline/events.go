// ABOUTME: Typed progress events and the per-run broadcast channel phases publish to.
// ABOUTME: Single producer per run, multiple subscribers, delivery in emission order, no replay.
package pipeline

import (
	"sync"
	"time"
)

// EventType identifies the kind of progress event.
type EventType string

const (
	EventRunStart            EventType = "run_start"
	EventSessionCreated      EventType = "session_created"
	EventPhaseStart          EventType = "phase_start"
	EventPhaseComplete       EventType = "phase_complete"
	EventPhaseWarning        EventType = "phase_warning"
	EventSearchComplete      EventType = "search_complete"
	EventScrapeComplete      EventType = "scrape_complete"
	EventTaskUpdate          EventType = "task_update"
	EventPainPointsExtracted EventType = "pain_points_extracted"
	EventTopProblemSelected  EventType = "top_problem_selected"
	EventBrowserAction       EventType = "browser_action"
	EventGapAnalysisComplete EventType = "gap_analysis_complete"
	EventReportReady         EventType = "report_ready"
	EventDone                EventType = "done"
	EventError               EventType = "error"
)

// Event is one timestamped, run-scoped progress event.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Sink receives progress events. Phases get a Sink as an explicit parameter;
// event emission is never smuggled through the data model.
type Sink interface {
	Emit(evt Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(evt Event)

func (f SinkFunc) Emit(evt Event) { f(evt) }

// Broadcaster fans one run's events out to any number of subscribers.
// Subscribers receive every event from the moment of subscription onward;
// there is no replay of past events. A slow subscriber whose buffer fills
// has events dropped rather than blocking the producer.
type Broadcaster struct {
	runID string

	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	closed bool
}

// subscriberBuffer is the per-subscriber channel capacity. Events beyond a
// full buffer are dropped for that subscriber only.
const subscriberBuffer = 256

// NewBroadcaster creates a broadcaster for the given run.
func NewBroadcaster(runID string) *Broadcaster {
	return &Broadcaster{
		runID: runID,
		subs:  make(map[int]chan Event),
	}
}

// Emit stamps the event with the run ID and current time (when unset) and
// delivers it to all current subscribers in emission order.
func (b *Broadcaster) Emit(evt Event) {
	if evt.RunID == "" {
		evt.RunID = b.runID
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Subscriber buffer full, drop for this subscriber.
		}
	}
}

// Subscribe attaches a listener and returns its channel plus a cancel function.
// The channel is closed when the broadcaster closes or the listener cancels.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Close detaches and closes all subscriber channels. Further Emit calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
