// ABOUTME: Process-wide registry mapping run IDs to run records with concurrent-safe access.
// ABOUTME: Owns a janitor goroutine that evicts finished runs after a configurable TTL.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"
)

// RunRecord is one registry entry tracking a run's lifecycle.
type RunRecord struct {
	ID        string
	Niche     string
	Status    Status
	StartedAt time.Time
	EndedAt   time.Time // zero until the run reaches a terminal status

	Events *Broadcaster
	Cancel context.CancelFunc
}

// RunInfo is a copyable snapshot of a RunRecord for external consumers.
type RunInfo struct {
	ID        string    `json:"id"`
	Niche     string    `json:"niche"`
	Status    Status    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Registry is an explicit, owned map of run records. It is constructed at
// startup and passed by reference to whoever needs it; there is no ambient
// package-level instance.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*RunRecord

	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

// NewRegistry creates a registry. When ttl is positive, a janitor goroutine
// evicts runs that reached a terminal status more than ttl ago; persisted
// reports outlive eviction.
func NewRegistry(ttl time.Duration) *Registry {
	r := &Registry{
		runs: make(map[string]*RunRecord),
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	if ttl > 0 {
		go r.janitor()
	}
	return r
}

// Add registers a run record.
func (r *Registry) Add(rec *RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[rec.ID] = rec
}

// Get returns the record for a run ID, or nil if unknown.
func (r *Registry) Get(id string) *RunRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runs[id]
}

// Info returns a snapshot of the record for a run ID.
func (r *Registry) Info(id string) (RunInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.runs[id]
	if !ok {
		return RunInfo{}, false
	}
	return snapshot(rec), true
}

// List returns snapshots of all registered runs, newest first.
func (r *Registry) List() []RunInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RunInfo, 0, len(r.runs))
	for _, rec := range r.runs {
		out = append(out, snapshot(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// SetStatus transitions a run's status. Terminal transitions stamp EndedAt.
func (r *Registry) SetStatus(id string, status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.runs[id]
	if !ok {
		return
	}
	rec.Status = status
	if status.Terminal() && rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now().UTC()
	}
}

// Close stops the janitor and closes all run broadcasters.
func (r *Registry) Close() {
	r.once.Do(func() { close(r.stop) })
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.runs {
		if rec.Events != nil {
			rec.Events.Close()
		}
	}
}

// janitor periodically evicts terminal runs older than the TTL.
func (r *Registry) janitor() {
	interval := r.ttl / 4
	if interval > 10*time.Minute {
		interval = 10 * time.Minute
	}
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.evictExpired(time.Now())
		}
	}
}

// evictExpired removes terminal runs whose EndedAt is older than the TTL.
func (r *Registry) evictExpired(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, rec := range r.runs {
		if !rec.Status.Terminal() || rec.EndedAt.IsZero() {
			continue
		}
		if now.Sub(rec.EndedAt) >= r.ttl {
			if rec.Events != nil {
				rec.Events.Close()
			}
			delete(r.runs, id)
		}
	}
}

func snapshot(rec *RunRecord) RunInfo {
	return RunInfo{
		ID:        rec.ID,
		Niche:     rec.Niche,
		Status:    rec.Status,
		StartedAt: rec.StartedAt,
		EndedAt:   rec.EndedAt,
	}
}
