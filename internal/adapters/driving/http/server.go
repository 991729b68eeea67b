// Package http implements the thin HTTP façade over the ingestion and
// lookup services: six routes for archive/normalized/file/snippet lookup by
// hash plus file identification and project-URL import.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/pkgdex/internal/core/ports/driving"
)

// Pinger is a health-check dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP façade.
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	logger     *slog.Logger

	ingestion driving.IngestionService
	lookup    driving.LookupService

	db Pinger // can be nil
}

// Config holds server configuration.
type Config struct {
	Host string
	Port int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Host: "0.0.0.0", Port: 8080}
}

// NewServer creates a new HTTP server.
func NewServer(cfg Config, ingestion driving.IngestionService, lookup driving.LookupService, db Pinger, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router:    http.NewServeMux(),
		ingestion: ingestion,
		lookup:    lookup,
		db:        db,
		logger:    logger,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.withMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return NewRecoveryMiddleware(s.logger).Handler(NewLoggingMiddleware(s.logger).Handler(next))
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("GET /health", s.handleHealth)

	s.router.HandleFunc("GET /api/archive/hash/{hash}", s.handleGetArchive)
	s.router.HandleFunc("GET /normalized/hash/{hash}", s.handleGetNormalized)
	s.router.HandleFunc("GET /file/hash/{hash}", s.handleGetFile)
	s.router.HandleFunc("GET /snippet/hash/{hash}", s.handleGetSnippet)
	s.router.HandleFunc("POST /identify/file/", s.handleIdentifyFile)
	s.router.HandleFunc("POST /import/project-url/", s.handleImportProjectURL)
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting http server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(shutdownCtx)
}

// Stop stops the server immediately.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
