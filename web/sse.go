// ABOUTME: SSE handler streaming per-run pipeline events as text/event-stream.
// ABOUTME: Subscribes from now by default; ?replay=1 prepends the persisted session log.
package web

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/2389-research/nichescout/pipeline"
)

// sseHeartbeatInterval is how often the SSE handler sends keep-alive comments.
const sseHeartbeatInterval = 15 * time.Second

// handleEvents handles GET /runs/{id}/events as an SSE stream. Subscription
// starts at the current point in the run; slow consumers drop events rather
// than stall the pipeline. With ?replay=1 the persisted session log is written
// before the live subscription so late joiners see the whole run.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	rec := s.registry.Get(runID)
	if rec == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before replay so no live event falls in the gap. Replayed
	// events may overlap the head of the live stream; consumers dedupe on
	// timestamp if they care.
	ch, cancel := rec.Events.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	_, _ = fmt.Fprint(w, ":ok\n\n")
	flusher.Flush()

	if r.URL.Query().Get("replay") == "1" && s.store != nil {
		s.replaySession(w, r, flusher, runID)
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case evt, open := <-ch:
			if !open {
				return
			}
			writeSSEEvent(w, evt)
			flusher.Flush()
			if evt.Type == pipeline.EventDone {
				return
			}

		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ":heartbeat\n\n")
			flusher.Flush()

		case <-ctx.Done():
			return
		}
	}
}

// replaySession writes the persisted event log for a run, best effort.
func (s *Server) replaySession(w http.ResponseWriter, r *http.Request, flusher http.Flusher, runID string) {
	sessionID, err := s.store.SessionForRun(r.Context(), runID)
	if err != nil {
		log.Printf("sse replay skipped run=%s err=%v", runID, err)
		return
	}
	events, err := s.store.Events(r.Context(), sessionID)
	if err != nil {
		log.Printf("sse replay failed run=%s session=%s err=%v", runID, sessionID, err)
		return
	}
	for _, evt := range events {
		writeSSEEvent(w, evt)
	}
	flusher.Flush()
}

func writeSSEEvent(w http.ResponseWriter, evt pipeline.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
}
