package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/rackledger/internal/metrics"
	"github.com/HerbHall/rackledger/internal/version"
)

// Registrar mounts a group of routes on the server mux.
type Registrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// Options configures New.
type Options struct {
	Addr string
	// RateLimit is the per-client request rate; zero disables limiting.
	RateLimit float64
	RateBurst int
}

// Server is the RackLedger HTTP server.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	metrics    *metrics.Recorder
	mux        *http.ServeMux
}

// New creates a Server serving the core routes plus every registrar's.
func New(opts Options, logger *zap.Logger, rec *metrics.Recorder, registrars ...Registrar) *Server {
	mux := http.NewServeMux()

	s := &Server{
		logger:  logger,
		metrics: rec,
		mux:     mux,
	}

	s.registerCoreRoutes()
	for _, reg := range registrars {
		reg.RegisterRoutes(mux)
	}

	var limiter *RateLimiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit) + 1
		}
		limiter = NewRateLimiter(opts.RateLimit, burst)
	}

	s.httpServer = &http.Server{
		Addr: opts.Addr,
		Handler: Chain(mux,
			RequestID(),
			Logging(logger),
			Metrics(rec),
			RateLimit(limiter),
		),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerCoreRoutes sets up routes that are always available.
func (s *Server) registerCoreRoutes() {
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-RackLedger-Version", version.Short())
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"service": "rackledger",
		"version": version.Map(),
	})
}
