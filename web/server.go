// ABOUTME: HTTP server exposing the research pipeline behind a chi router.
// ABOUTME: Starts runs, lists them, streams per-run events over SSE, and serves reports.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/2389-research/nichescout/memory"
	"github.com/2389-research/nichescout/pipeline"
	"github.com/2389-research/nichescout/render"
)

// Server wires the orchestrator, run registry, and memory store behind HTTP.
type Server struct {
	orch     *pipeline.Orchestrator
	registry *pipeline.Registry
	store    *memory.Store
	router   chi.Router
	addr     string
}

// ServerConfig holds the configuration for the run server.
type ServerConfig struct {
	Addr     string // listen address (default: "127.0.0.1:8390")
	Orch     *pipeline.Orchestrator
	Registry *pipeline.Registry
	Store    *memory.Store // optional; report and replay endpoints degrade without it
}

// NewServer creates a Server and sets up routing.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8390"
	}
	if cfg.Orch == nil || cfg.Registry == nil {
		return nil, fmt.Errorf("orchestrator and registry are required")
	}

	s := &Server{
		orch:     cfg.Orch,
		registry: cfg.Registry,
		store:    cfg.Store,
		addr:     cfg.Addr,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start runs the HTTP server until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // SSE streams are long-lived
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/runs", s.handleCreateRun)
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{id}", s.handleGetRun)
	r.Get("/runs/{id}/events", s.handleEvents)
	r.Get("/runs/{id}/report", s.handleReport)
	r.Post("/runs/{id}/cancel", s.handleCancel)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateRun handles POST /runs {"niche": "..."} and returns 202 with the run ID.
func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Niche string `json:"niche"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	runID, err := s.orch.StartRun(req.Niche)
	if err != nil {
		if errors.Is(err, pipeline.ErrNicheTooShort) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"runs": s.registry.List()})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	info, ok := s.registry.Info(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleCancel handles POST /runs/{id}/cancel. Canceling a finished run is a no-op.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	rec := s.registry.Get(chi.URLParam(r, "id"))
	if rec == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if rec.Cancel != nil {
		rec.Cancel()
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": rec.ID, "status": "cancel_requested"})
}

// handleReport handles GET /runs/{id}/report?format=json|markdown|html.
// Reports are served from the memory store, so they outlive registry eviction.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeError(w, http.StatusNotFound, "report storage not configured")
		return
	}

	runID := chi.URLParam(r, "id")
	state, err := s.store.GetReport(r.Context(), runID)
	if err != nil {
		if errors.Is(err, memory.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch r.URL.Query().Get("format") {
	case "", "json":
		writeJSON(w, http.StatusOK, state)
	case "markdown":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = fmt.Fprint(w, render.Markdown(state))
	case "html":
		html, err := render.HTML(state)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = fmt.Fprint(w, html)
	default:
		writeError(w, http.StatusBadRequest, "unknown format; want json, markdown, or html")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
