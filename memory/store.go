// ABOUTME: SQLite-backed memory store: append-only session event log plus persisted report blobs.
// ABOUTME: Reports are upserted per run and remain retrievable after the run registry evicts the run.
package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/2389-research/nichescout/pipeline"
)

// ErrNotFound is returned when no report exists for a run.
var ErrNotFound = errors.New("report not found")

// Store is the SQLite-backed memory store. It implements pipeline.Memory.
type Store struct {
	db *sql.DB
}

var _ pipeline.Memory = (*Store)(nil)

// Open opens or creates the store at the given path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			space_id TEXT NOT NULL,
			niche TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS session_events (
			event_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(session_id)
		);

		CREATE TABLE IF NOT EXISTS reports (
			run_id TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession allocates a session log and space handle for a run.
func (s *Store) CreateSession(ctx context.Context, runID, niche string) (string, string, error) {
	sessionID := uuid.NewString()
	spaceID := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, run_id, space_id, niche, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sessionID, runID, spaceID, niche, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", "", fmt.Errorf("create session: %w", err)
	}
	return sessionID, spaceID, nil
}

// AppendEvent appends one event to a session's log. The log is append-only;
// nothing ever updates or deletes rows here.
func (s *Store) AppendEvent(ctx context.Context, sessionID string, evt pipeline.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	eventID := ulid.Make().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_events (event_id, session_id, event_type, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		eventID, sessionID, string(evt.Type), string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Events returns a session's full event log in append (insertion) order.
func (s *Store) Events(ctx context.Context, sessionID string) ([]pipeline.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM session_events WHERE session_id = ? ORDER BY rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []pipeline.Event
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var evt pipeline.Event
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, evt)
	}
	return events, rows.Err()
}

// SessionForRun returns the session ID recorded for a run, or "" when none exists.
func (s *Store) SessionForRun(ctx context.Context, runID string) (string, error) {
	var sessionID string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM sessions WHERE run_id = ? ORDER BY created_at DESC LIMIT 1`, runID,
	).Scan(&sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query session: %w", err)
	}
	return sessionID, nil
}

// SaveReport upserts the run's report blob.
func (s *Store) SaveReport(ctx context.Context, runID string, state *pipeline.RunState) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (run_id, state, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			state = excluded.state,
			updated_at = excluded.updated_at`,
		runID, string(blob), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert report: %w", err)
	}
	return nil
}

// GetReport returns the persisted report for a run, or ErrNotFound.
func (s *Store) GetReport(ctx context.Context, runID string) (*pipeline.RunState, error) {
	var blob string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM reports WHERE run_id = ?`, runID,
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query report: %w", err)
	}

	var state pipeline.RunState
	if err := json.Unmarshal([]byte(blob), &state); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &state, nil
}
