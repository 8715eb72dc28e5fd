// Package server exposes the screener's read API: health, open positions and
// history, recent screening results, and recent liquidity ranks, plus the
// operator open and close actions.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port int
}

// Server is the HTTP API server. Construct with New and start with Start; it
// shuts down gracefully via Shutdown.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered. Nil services disable
// their routes; health is always available.
func New(cfg Config, positions PositionReader, opener PositionOpener, closer PositionCloser, screener ScreenerReader, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handleHealth)

	if positions != nil {
		ph := newPositionHandler(positions, opener, closer, logger)
		mux.HandleFunc("GET /api/positions", ph.listOpen)
		mux.HandleFunc("GET /api/positions/history", ph.listHistory)
		mux.HandleFunc("GET /api/positions/{id}", ph.get)
		if opener != nil {
			mux.HandleFunc("POST /api/positions", ph.open)
		}
		if closer != nil {
			mux.HandleFunc("POST /api/positions/{id}/close", ph.close)
		}
	}

	if screener != nil {
		sh := newScreenerHandler(screener, logger)
		mux.HandleFunc("GET /api/evaluations/recent", sh.recentEvaluations)
		mux.HandleFunc("GET /api/ranks/recent", sh.recentRanks)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           requestLogging(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("listening",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// requestLogging logs each request with its status and duration.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			logger.DebugContext(r.Context(), "request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
