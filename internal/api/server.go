package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/pipeline"
	"github.com/docuflow/docuflow/internal/status"
)

// Server is the HTTP boundary of the conversion service.
type Server struct {
	tracker   *status.Tracker
	pool      *pipeline.Pool
	results   *pipeline.ResultStore
	uploadDir string
	port      string
	httpSrv   *http.Server
}

// NewServer wires the status tracker, the conversion pool and the result
// store behind the HTTP routes.
func NewServer(tracker *status.Tracker, pool *pipeline.Pool, results *pipeline.ResultStore, uploadDir, port string) *Server {
	return &Server{
		tracker:   tracker,
		pool:      pool,
		results:   results,
		uploadDir: uploadDir,
		port:      port,
	}
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%s", s.port)
	logger.Logger.Info().Str("addr", addr).Msg("Starting API server")

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}
