// Package httpapi exposes the filter hook and the rule commands over HTTP.
//
// It is the adapter an external message dispatcher talks to: POST a message
// to receive a verdict, POST a command line to manage rules.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/net/netutil"

	"github.com/haukened/keyword-filter/internal/filter/common/log"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server serves the HTTP API.
type Server struct {
	addr     string
	maxConns int
	logger   log.Logger

	checker  MessageChecker
	commands CommandRunner
	rules    RuleLister
	metrics  []MetricsWriter

	mu       sync.RWMutex
	running  bool
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// Options configures a Server.
type Options struct {
	Addr     string
	MaxConns int // concurrent connection cap; <= 0 means unlimited
	Logger   log.Logger

	Checker  MessageChecker
	Commands CommandRunner
	Rules    RuleLister
	Metrics  []MetricsWriter
}

// NewServer creates a Server. It does not listen until Start is called.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Server{
		addr:     opts.Addr,
		maxConns: opts.MaxConns,
		logger:   logger,
		checker:  opts.Checker,
		commands: opts.Commands,
		rules:    opts.Rules,
		metrics:  opts.Metrics,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// Start binds the listener and serves requests in the background until Stop
// is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("HTTP server already running")
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	if s.maxConns > 0 {
		ln = netutil.LimitListener(ln, s.maxConns)
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info(map[string]any{
		"address":   ln.Addr().String(),
		"max_conns": s.maxConns,
	}, "HTTP server started")

	go s.serve(s.srv, ln)
	go func(done <-chan struct{}) {
		select {
		case <-ctx.Done():
			s.logger.Debug(nil, "HTTP server stopping due to context cancellation")
			_ = s.Stop()
		case <-done:
		}
	}(s.done)

	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Error(map[string]any{"error": err}, "HTTP server failed")
	}
}

// Stop gracefully shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.srv.Shutdown(ctx)
	if err != nil {
		s.logger.Warn(map[string]any{"error": err}, "Error shutting down HTTP server")
	}

	close(s.done)
	s.running = false

	s.logger.Info(map[string]any{"address": s.listener.Addr().String()}, "HTTP server stopped")
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
