package apiserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/slok/taskd/internal/app/lifecycle"
	"github.com/slok/taskd/internal/log"
)

// ServerConfig is the configuration for the API server.
type ServerConfig struct {
	ListenAddr string
	// InternalAuthToken is the shared secret required on the privileged
	// callback endpoints, compared against the X-Internal-Auth header.
	InternalAuthToken string
	Service           *lifecycle.Service
	Logger            log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.InternalAuthToken == "" {
		return fmt.Errorf("internal auth token is required")
	}
	if c.Service == nil {
		return fmt.Errorf("lifecycle service is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "apiserver.Server"})
	return nil
}

// Server exposes the task lifecycle over HTTP: public task creation and
// polling plus privileged progress callbacks for the external backend.
type Server struct {
	server    *http.Server
	service   *lifecycle.Service
	authToken string
	logger    log.Logger
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	s := &Server{
		service:   cfg.Service,
		authToken: cfg.InternalAuthToken,
		logger:    cfg.Logger,
	}

	s.server = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: s.routes(),
	}

	return s, nil
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler { return s.server.Handler }

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Public surface.
	mux.HandleFunc("POST /task", s.handleCreateTask)
	mux.HandleFunc("GET /task/{id}", s.handleGetTask)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	// Privileged surface, callbacks from the external execution backend.
	mux.Handle("POST /internal/task/start", s.internalAuth(http.HandlerFunc(s.handleStartTask)))
	mux.Handle("POST /internal/task/complete", s.internalAuth(http.HandlerFunc(s.handleCompleteTask)))
	mux.Handle("POST /internal/task/fail", s.internalAuth(http.HandlerFunc(s.handleFailTask)))

	return mux
}

// Run starts the API server and blocks until ctx is cancelled. It performs a
// graceful shutdown when the context is done.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("API server listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Infof("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("API server shutdown error: %w", err)
		}
		return nil
	}
}
