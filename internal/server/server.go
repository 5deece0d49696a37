// Package server implements the hrserve HTTP front end: a static file server
// over one root directory whose HTML responses carry a live reload script,
// and the WebSocket endpoint that script connects to.
//
// Request handling:
//   - WebSocket upgrade requests, on any path, go to the reload handler
//   - Any other non-GET request is answered 405 without touching the disk
//   - GET requests are resolved against the root and served, at most
//     MaxConcurrentRequests at a time
//
// Invariants:
//   - a file permit is held for the whole file response and always released
//   - response headers are written only after the final body length is known
//   - Stop may be called any number of times; only the first call acts
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/conneroisu/hrserve/internal/config"
	srverrors "github.com/conneroisu/hrserve/internal/errors"
	"github.com/conneroisu/hrserve/internal/files"
	"github.com/conneroisu/hrserve/internal/inject"
	"github.com/conneroisu/hrserve/internal/logging"
	"github.com/conneroisu/hrserve/internal/reload"
)

// ErrServerStopped is returned by Run on a server that was already stopped.
var ErrServerStopped = errors.New("server stopped")

const readHeaderTimeout = 10 * time.Second

// Server serves a directory with live reload.
type Server struct {
	config   config.ServerConfig
	logger   logging.Logger
	errors   *srverrors.ErrorHandler
	resolver *files.Resolver
	registry *reload.Registry
	reload   *reload.Handler
	permits  *semaphore.Weighted
	injector atomic.Pointer[inject.Injector]
	handler  http.Handler

	// openFile opens response bodies; tests replace it to observe I/O.
	openFile func(name string) (*os.File, error)

	baseCtx context.Context
	cancel  context.CancelFunc

	mu         sync.Mutex
	httpServer *http.Server
	addr       net.Addr
	ready      chan struct{}
	stopped    bool
	stopOnce   sync.Once
	stopErr    error
}

// New validates cfg and prepares a server. Nothing is bound until Run.
func New(cfg config.ServerConfig, logger logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	logger = logger.WithComponent("server")

	if cfg.MaxConcurrentRequests < 1 {
		return nil, srverrors.NewConfigError(srverrors.ErrCodeConfigInvalid,
			fmt.Sprintf("max concurrent requests must be at least 1, got %d", cfg.MaxConcurrentRequests))
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, srverrors.NewConfigError(srverrors.ErrCodeConfigInvalid,
			fmt.Sprintf("port %d is not in valid range 0-65535", cfg.Port))
	}

	resolver, err := files.NewResolver(cfg.Root)
	if err != nil {
		return nil, err
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	registry := reload.NewRegistry()

	s := &Server{
		config:   cfg,
		logger:   logger,
		errors:   srverrors.NewErrorHandler(logger),
		resolver: resolver,
		registry: registry,
		permits:  semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
		openFile: os.Open,
		baseCtx:  baseCtx,
		cancel:   cancel,
		ready:    make(chan struct{}),
	}
	s.reload = reload.NewHandler(registry, logger, reload.HandlerOptions{
		OriginPatterns: originPatterns(cfg),
	})
	s.injector.Store(inject.New(inject.Script(cfg.Host, cfg.Port)))
	s.handler = s.buildHandler()

	return s, nil
}

// Run binds the listener and serves until ctx is cancelled or Stop is
// called. A bind failure is returned as a configuration error.
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return srverrors.ErrBindFailed(addr, err)
	}

	// The script must point at the port actually bound, which differs from
	// the configured one when that is 0.
	port := ln.Addr().(*net.TCPAddr).Port
	s.injector.Store(inject.New(inject.Script(s.config.Host, port)))

	httpServer := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return s.baseCtx },
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		ln.Close()
		return ErrServerStopped
	}
	if s.httpServer != nil {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server already running")
	}
	s.httpServer = httpServer
	s.addr = ln.Addr()
	close(s.ready)
	s.mu.Unlock()

	s.logger.Info(ctx, "Serving directory",
		"root", s.resolver.Root(),
		"addr", ln.Addr().String(),
		"max_concurrent_requests", s.config.MaxConcurrentRequests)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		_ = s.Stop()
		<-serveErr
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// Stop shuts the server down, waiting up to the configured shutdown timeout
// for in-flight file responses. Reload connections are closed without a
// message.
func (s *Server) Stop() error {
	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.Shutdown(ctx)
}

// Shutdown is Stop with a caller supplied deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		httpServer := s.httpServer
		s.mu.Unlock()

		s.logger.Info(ctx, "Shutting down server")

		// Requests still queued for a permit give up; running ones finish.
		s.cancel()

		if httpServer != nil {
			if err := httpServer.Shutdown(ctx); err != nil {
				s.stopErr = fmt.Errorf("failed to shut down http server: %w", err)
				_ = httpServer.Close()
			}
		}

		s.registry.Close()
	})

	return s.stopErr
}

// TriggerRefresh tells every connected browser to reload and returns how
// many were reached. Each call broadcasts exactly once.
func (s *Server) TriggerRefresh() int {
	n := s.registry.Broadcast(reload.NewReloadMessage(time.Now()))
	s.logger.Info(context.Background(), "Refresh triggered", "clients", n)

	return n
}

// Handler returns the request handler, for use without Run.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Registry returns the reload client registry.
func (s *Server) Registry() *reload.Registry {
	return s.registry
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address, or nil before Run has bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.addr
}

// Root returns the absolute served directory.
func (s *Server) Root() string {
	return s.resolver.Root()
}

// originPatterns lists the Origin hosts allowed to open reload connections
// besides same-host requests.
func originPatterns(cfg config.ServerConfig) []string {
	patterns := []string{"localhost:*", "127.0.0.1:*"}
	switch cfg.Host {
	case "", "localhost", "127.0.0.1", "0.0.0.0", "::":
	default:
		if net.ParseIP(cfg.Host) == nil || net.ParseIP(cfg.Host).To4() != nil {
			patterns = append(patterns, cfg.Host+":*")
		}
	}

	return append(patterns, cfg.AllowedOrigins...)
}
