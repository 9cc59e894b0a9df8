// Package httpserver provides the HTTP status API of the citation tracker:
// health probes, Prometheus metrics, ledger inspection, and the last cycle report.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/citation-tracker-service/internal/domain"
	"github.com/helixir/citation-tracker-service/internal/ledger"
	"github.com/helixir/citation-tracker-service/internal/pipeline"
)

// LedgerReader is the subset of the ledger the API exposes.
type LedgerReader interface {
	Entry(ctx context.Context, paperID string) (*domain.LedgerEntry, error)
	Stats(ctx context.Context) (*ledger.Stats, error)
	Reset(ctx context.Context, paperID string) (bool, error)
	Ping(ctx context.Context) error
}

// CycleReporter returns the most recent cycle report.
type CycleReporter interface {
	LatestReport() *pipeline.CycleReport
}

// Server is the HTTP status API server.
type Server struct {
	router      chi.Router
	httpServer  *http.Server
	ledger      LedgerReader
	cycles      CycleReporter
	metricsPath string
	logger      zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	// MetricsPath mounts the Prometheus handler. Empty disables it.
	MetricsPath string
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, store LedgerReader, cycles CycleReporter, logger zerolog.Logger) *Server {
	s := &Server{
		ledger:      store,
		cycles:      cycles,
		metricsPath: cfg.MetricsPath,
		logger:      logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(requestLogger(s.logger))

	if s.metricsPath != "" {
		r.Handle(s.metricsPath, promhttp.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Get("/healthz", s.healthHandler)
		r.Get("/readyz", s.readinessHandler)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/ledger/stats", s.getLedgerStats)
			r.Get("/ledger/papers/{paperID}", s.getLedgerEntry)
			r.Delete("/ledger/papers/{paperID}", s.resetLedgerEntry)
			r.Get("/cycles/latest", s.getLatestCycle)
		})
	})

	return r
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports whether the ledger is reachable.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.ledger.Ping(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("ledger not ready")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"ledger": "unhealthy",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"ledger": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
