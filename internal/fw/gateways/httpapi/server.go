package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/haukened/rr-fwmgr/internal/fw/common/log"
)

const (
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultReadHeaderTimeout = 5 * time.Second
	defaultIdleTimeout       = 60 * time.Second
	maxHeaderBytes           = 1 << 16
)

// ServerOptions configures the listener.
type ServerOptions struct {
	Addr         string
	Handler      http.Handler
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       log.Logger
}

// Server runs the API on a TCP listener.
type Server struct {
	addr    string
	handler http.Handler
	logger  log.Logger
	read    time.Duration
	write   time.Duration

	mu       sync.RWMutex
	srv      *http.Server
	listener net.Listener
	running  bool
	done     chan struct{}
}

// NewServer returns a Server that is not yet listening.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Handler == nil {
		return nil, errors.New("handler is required")
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Server{
		addr:    opts.Addr,
		handler: opts.Handler,
		logger:  opts.Logger,
		read:    opts.ReadTimeout,
		write:   opts.WriteTimeout,
	}, nil
}

// Start binds the listener and serves in the background. Cancelling ctx shuts the
// server down.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("HTTP server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.srv = &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.read,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		WriteTimeout:      s.write,
		IdleTimeout:       defaultIdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.listener = ln
	s.running = true
	s.done = make(chan struct{})

	s.logger.Info(map[string]any{
		"transport": "http",
		"address":   ln.Addr().String(),
	}, "HTTP API started")

	go s.serve(s.srv, ln, s.done)
	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.write)
			defer cancel()
			if err := s.Stop(shutdownCtx); err != nil {
				s.logger.Warn(map[string]any{"error": err}, "HTTP API shutdown failed")
			}
		case <-done:
		}
	}(s.done)

	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener, done chan struct{}) {
	defer close(done)
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error(map[string]any{"error": err}, "HTTP API stopped unexpectedly")
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}
}

// Stop drains in-flight requests until ctx expires, then closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	srv, done := s.srv, s.done
	s.mu.Unlock()

	err := srv.Shutdown(ctx)
	if err != nil {
		_ = srv.Close()
	}
	<-done

	s.logger.Info(map[string]any{
		"transport": "http",
		"address":   s.addr,
	}, "HTTP API stopped")
	return err
}

// Address returns the bound address while running, otherwise the configured one.
func (s *Server) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.running && s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
