// Package api exposes the version store over a JSON HTTP interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"audittrail/internal/versions"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
	maxRequestBytes   = 2 << 20
)

type Options struct {
	Addr           string
	CORSOrigin     string
	RequestTimeout time.Duration
}

type Server struct {
	svc  *versions.Service
	opts Options
	http *http.Server
	log  *slog.Logger
}

func New(svc *versions.Service, opts Options, log *slog.Logger) *Server {
	s := &Server{
		svc:  svc,
		opts: opts,
		log:  log,
	}

	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Handler returns the routed handler wrapped in logging, CORS and timeout middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /tasks", s.handleTasks)
	mux.HandleFunc("GET /task/{id}", s.handleTask)
	mux.HandleFunc("POST /task/{id}/version", s.handleCreateVersion)
	mux.HandleFunc("GET /task/{id}/version/{n}", s.handleVersion)
	mux.HandleFunc("GET /task/{id}/version/{n}/patch", s.handlePatch)
	mux.HandleFunc("GET /task/{id}/compare", s.handleCompare)
	mux.HandleFunc("POST /task/{id}/import", s.handleImport)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("POST /api/diff", s.handleDiff)
	mux.HandleFunc("POST /api/summarize", s.handleSummarize)

	return s.withLogging(s.withCORS(s.withTimeout(mux)))
}

// Start listens in the background. The returned channel receives the terminal serve error, if any.
func (s *Server) Start(ctx context.Context) (<-chan error, error) {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	s.log.InfoContext(ctx, "HTTP server is listening",
		"addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)

		if serveErr := s.http.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("serve: %w", serveErr)
		}
	}()

	return errCh, nil
}

func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}
