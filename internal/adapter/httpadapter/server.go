// Package httpadapter serves the radar result state, run submission and the
// operational endpoints over HTTP.
package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-radar-etl/internal/pipeline"
	"github.com/couchcryptid/storm-radar-etl/internal/state"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunSubmitter starts a pipeline run in the background.
type RunSubmitter interface {
	Submit(ctx context.Context, req pipeline.Request) (string, error)
}

// StateReader exposes copies of the shared pipeline state.
type StateReader interface {
	Snapshot() state.Snapshot
	Status() state.Snapshot
}

// Server exposes the radar API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger

	// base outlives individual requests and bounds submitted runs.
	base     context.Context
	runs     RunSubmitter
	state    StateReader
	defaults pipeline.Defaults
	clock    clockwork.Clock
}

// Option configures a Server.
type Option func(*Server)

// WithClock sets the clock used to default a run's date and time.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) { s.clock = c }
}

// NewServer creates an HTTP server. Runs submitted through POST /api/v1/runs
// are bound to base rather than to the submitting request.
func NewServer(
	base context.Context,
	addr string,
	ready sharedobs.ReadinessChecker,
	runs RunSubmitter,
	st StateReader,
	defaults pipeline.Defaults,
	logger *slog.Logger,
	opts ...Option,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:   logger,
		base:     base,
		runs:     runs,
		state:    st,
		defaults: defaults,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/points", s.handlePoints)
	mux.HandleFunc("GET /api/v1/clusters", s.handleClusters)
	mux.HandleFunc("POST /api/v1/runs", s.handleSubmitRun)

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
