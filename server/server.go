package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("nupython.server")

// Server is the network front of the interpreter: it serves the
// evaluation service over Connect.
type Server struct {
	worker     *RunWorker
	runs       *RunStore
	mux        *http.ServeMux
	httpServer *http.Server

	stopSweeper func()
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	maxConcurrentRuns int
	runTTL            time.Duration
	sweepInterval     time.Duration
}

// WithMaxConcurrentRuns bounds how many programs execute at once.
func WithMaxConcurrentRuns(n int) ServerOption {
	return func(c *serverConfig) { c.maxConcurrentRuns = n }
}

// WithRunTTL sets how long finished runs stay retrievable by GetRun after
// their last access.
func WithRunTTL(ttl time.Duration) ServerOption {
	return func(c *serverConfig) { c.runTTL = ttl }
}

// New creates a Server.
func New(opts ...ServerOption) *Server {
	cfg := &serverConfig{
		maxConcurrentRuns: 8,
		runTTL:            30 * time.Minute,
		sweepInterval:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sweepInterval > cfg.runTTL {
		cfg.sweepInterval = cfg.runTTL
	}

	s := &Server{
		worker: NewRunWorker(cfg.maxConcurrentRuns),
		runs:   NewRunStore(),
		mux:    http.NewServeMux(),
	}

	evalPath, evalHandler := NewEvaluationServiceHandler(NewEvalService(s.worker, s.runs))
	s.mux.Handle(evalPath, evalHandler)

	s.stopSweeper = s.runs.StartSweeper(cfg.sweepInterval, cfg.runTTL)
	return s
}

// Handler returns the HTTP handler serving all services.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe starts the HTTP server on the given address, "host:port"
// or ":port". It returns nil after Shutdown.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Noticef("nuPython evaluation service listening on %s", addr)
	log.Noticef("  Connect (CBOR/JSON): http://%s%s", addr, EvaluateProcedure)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, waits for in-flight requests and
// then stops the worker pool.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	s.Stop()
	return err
}

// Stop releases the worker pool and the run sweeper.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.worker.Stop()
}
