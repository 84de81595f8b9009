package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ostafen/sigcrawl/internal/config"
	"github.com/ostafen/sigcrawl/internal/logger"
	"github.com/ostafen/sigcrawl/internal/metrics"
)

var (
	ErrServerClosed = errors.New("server closed")
	ErrInvalidState = errors.New("invalid server state")
)

// Bounds of the pause between failed Accept calls.
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// State is a step of the server lifecycle. States only move forward.
type State int

const (
	StateCreated State = iota
	StateListening
	StateRunning
	StateShuttingDown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateListening:
		return "listening"
	case StateRunning:
		return "running"
	case StateShuttingDown:
		return "shutting_down"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Server accepts connections and hands each of them to a worker pool.
// A Server can not be restarted once shut down.
type Server struct {
	cfg     config.ServerConfig
	logger  *slog.Logger
	console *logger.Console
	metrics *metrics.Metrics
	pool    *Pool

	mu       sync.Mutex
	state    State
	listener net.Listener

	shutdown     chan struct{}
	shutdownOnce sync.Once
	acceptDone   chan struct{}
	stopped      chan struct{}
}

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConsole prints a status line for every accepted connection.
func WithConsole(c *logger.Console) Option {
	return func(s *Server) {
		s.console = c
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

func New(cfg config.ServerConfig, handler ConnHandler, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger.Discard(),
		state:      StateCreated,
		shutdown:   make(chan struct{}),
		acceptDone: make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	threads := max(cfg.Threads, 1)
	s.pool = NewPool(threads, max(cfg.QueueSize, 0), handler, s.logger, s.metrics)
	return s
}

func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkState(StateCreated); err != nil {
		return err
	}

	backlog := s.cfg.Backlog
	if backlog <= 0 {
		backlog = config.DefaultBacklog
	}

	l, err := listenTCP(s.cfg.Addr(), backlog)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}

	s.listener = l
	s.state = StateListening

	s.logger.Info("Starting server", "addr", l.Addr().String(), "threads", s.pool.size, "backlog", backlog)
	return nil
}

// Serve starts the workers and accepts connections until Shutdown is called.
// It returns nil after a clean shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	if err := s.checkState(StateListening); err != nil {
		s.mu.Unlock()
		return err
	}
	s.state = StateRunning
	s.pool.Start()
	listener := s.listener
	s.mu.Unlock()

	defer close(s.acceptDone)

	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				// The listener was closed on purpose.
				return nil
			default:
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(2*delay, maxAcceptDelay)
			}

			s.metrics.ObserveAcceptError()
			s.logger.Warn("Error accepting connection", "error", err, "retry_in", delay)

			if !s.sleep(delay) {
				return nil
			}
			continue
		}
		delay = 0

		remote := conn.RemoteAddr().String()

		s.metrics.ObserveAccept()
		s.logger.Info("Connection from", "remote", remote)
		if s.console != nil {
			s.console.Infof("Connection from %s", remote)
		}

		if err := s.pool.Submit(conn); err != nil {
			s.metrics.ObserveRejected()
			conn.Close()
		}
	}
}

// sleep waits for d and reports false if shutdown began in the meantime.
func (s *Server) sleep(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.shutdown:
		return false
	case <-timer.C:
		return true
	}
}

// Shutdown stops accepting connections, then waits until every connection
// already accepted has been served. It is safe to call more than once.
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(s.initiateShutdown)
	<-s.stopped
	return nil
}

func (s *Server) initiateShutdown() {
	s.mu.Lock()
	prev := s.state
	s.state = StateShuttingDown
	listener := s.listener
	s.mu.Unlock()

	s.logger.Info("Shutting down server")

	close(s.shutdown)
	if listener != nil {
		if err := listener.Close(); err != nil {
			s.logger.Debug("Error closing listener", "error", err)
		}
	}

	if prev == StateRunning {
		<-s.acceptDone
	}
	s.pool.Stop()

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	close(s.stopped)

	s.logger.Info("Server stopped")
}

// Run listens and serves until ctx is cancelled, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received", "reason", ctx.Err())
	case err := <-errCh:
		// Serve only returns early on a lifecycle error.
		s.Shutdown()
		return err
	}

	s.Shutdown()

	// Serve may lose the race with Shutdown and never start.
	if err := <-errCh; !errors.Is(err, ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) checkState(want State) error {
	if s.state == want {
		return nil
	}
	if s.state >= StateShuttingDown {
		return ErrServerClosed
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, s.state)
}
