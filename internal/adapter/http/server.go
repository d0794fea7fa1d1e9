package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/fire-incident-pipeline/internal/pipeline"
	"github.com/couchcryptid/fire-incident-pipeline/internal/scheduler"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusProvider exposes the outcome of the most recent pipeline run.
type StatusProvider interface {
	sharedobs.ReadinessChecker
	LastSummary() (pipeline.RunSummary, bool)
}

// JobLister reports scheduled jobs. Optional.
type JobLister interface {
	Jobs() []scheduler.JobInfo
}

// Server exposes health, readiness, metrics, and run status endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	status     StatusProvider
	jobs       JobLister
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and /status routes.
// jobs may be nil.
func NewServer(addr string, status StatusProvider, jobs JobLister, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
		status: status,
		jobs:   jobs,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(status))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", s.handleStatus)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type statusResponse struct {
	LastRun *pipeline.RunSummary `json:"last_run"`
	Jobs    []scheduler.JobInfo  `json:"jobs,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var resp statusResponse
	if sum, ok := s.status.LastSummary(); ok {
		resp.LastRun = &sum
	}
	if s.jobs != nil {
		resp.Jobs = s.jobs.Jobs()
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort status response
}
