// Package server implements the HTTP JSON API in front of the ingestion
// pipeline, the document catalog and the question-answering agent.
// The server is started by the `docrag serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/store"
)

// New constructs a Server from the provided dependencies and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Agent == nil {
		return nil, fmt.Errorf("server: agent must not be nil")
	}
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("server: ingestion pipeline must not be nil")
	}
	if deps.Catalog == nil {
		return nil, fmt.Errorf("server: catalog must not be nil")
	}
	if deps.Session == "" {
		deps.Session = store.DefaultSession
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 2 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 15 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.ChatTimeout == 0 {
		cfg.ChatTimeout = 2 * time.Minute
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}

	s := &Server{
		deps:    deps,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst)
	rl.onReject = func(bucket string) { s.metrics.rateLimitedTotal.WithLabelValues(bucket).Inc() }
	s.stopRL = stopRL

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.routes(rl),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// routes builds the handler tree. Health, readiness and metrics stay outside
// auth so orchestrators can probe them; chat and upload are rate limited.
func (s *Server) routes(rl *rateLimiter) http.Handler {
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(s.cfg.APIKey, h)
	}
	limited := func(bucket string, h http.HandlerFunc) http.Handler {
		return authMiddleware(s.cfg.APIKey, rl.limit(bucket, h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", limited(bucketChat, s.handleChat))
	mux.Handle("POST /api/documents", limited(bucketUpload, s.handleUpload))
	mux.Handle("GET /api/documents", protected(s.handleListDocuments))
	mux.Handle("DELETE /api/documents/{hash}", protected(s.handleDeleteDocument))
	mux.Handle("GET /api/history", protected(s.handleHistory))
	mux.Handle("DELETE /api/history", protected(s.handleClearHistory))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	return requestLogger(s.log, s.metrics.instrument(mux))
}

// Handler returns the fully wrapped root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	if s.cfg.APIKey == "" {
		s.log.Warn("server: DOCRAG_API_KEY is not set, API authentication is disabled")
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.log.Info("server: stopped")
		return nil
	}
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(ctx).Error("response encode error", slog.Any("error", err))
	}
}

// writeError sends an errorResponse.
func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Error: msg})
}
