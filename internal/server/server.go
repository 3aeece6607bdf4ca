package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/swap-10/rustic-server/internal/backoff"
	"github.com/swap-10/rustic-server/pkg/types"
	"github.com/swap-10/rustic-server/pkg/worker"
)

// ErrServerStarted is returned by Serve on a server that has already served
var ErrServerStarted = errors.New("server already started")

// Server accepts TCP connections and submits one job per connection to an
// executor
type Server struct {
	config   *Config
	handler  *Handler
	executor types.Executor
	logger   logrus.FieldLogger
	clock    types.Clock

	// ownsExecutor is set when New created the pool, so Serve shuts it down
	ownsExecutor      bool
	metricsRegisterer prometheus.Registerer

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// Option configures a Server
type Option func(*Server)

// WithExecutor runs connections on ex instead of a pool built from the
// config. The caller keeps ownership of ex.
func WithExecutor(ex types.Executor) Option {
	return func(s *Server) {
		s.executor = ex
	}
}

// WithLogger sets the logger
func WithLogger(logger logrus.FieldLogger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithFiles serves fsys instead of os.DirFS(StaticDir)
func WithFiles(fsys fs.FS) Option {
	return func(s *Server) {
		s.handler.Files = fsys
	}
}

// WithClock sets the clock used for accept backoff and the pool
func WithClock(clock types.Clock) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetricsRegisterer registers the pool's metrics on reg
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.metricsRegisterer = reg
	}
}

// New validates cfg and builds a server. Unless WithExecutor is given it
// starts a worker pool of cfg.Workers workers.
func New(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Server{
		config: cfg,
		handler: &Handler{
			StaticDir:   cfg.StaticDir,
			ReadTimeout: cfg.ReadTimeout,
		},
		logger: logrus.StandardLogger(),
		clock:  types.NewRealClock(),
		ready:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.handler.Logger = s.logger
	if s.handler.Files == nil {
		s.handler.Files = os.DirFS(cfg.StaticDir)
	}

	if s.executor == nil {
		pool, err := worker.NewPool(&worker.PoolConfig{
			PoolSize:          cfg.Workers,
			Clock:             s.clock,
			Logger:            s.logger,
			JoinWarnInterval:  cfg.JoinWarnInterval,
			MetricsRegisterer: s.metricsRegisterer,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create worker pool: %w", err)
		}
		s.executor = pool
		s.ownsExecutor = true
	}

	return s, nil
}

// ListenAndServe binds the configured address and calls Serve
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddr())
	if err != nil {
		if s.ownsExecutor {
			_ = s.executor.Shutdown()
		}
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddr(), err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done or accepting fails
// permanently. Each connection becomes exactly one job. A Server serves
// once; later calls close ln and return ErrServerStarted. On return the
// listener is closed and, if the server created the pool, the pool has
// been shut down with in-flight connections completed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		ln.Close()
		return ErrServerStarted
	}
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.logger.WithField("addr", ln.Addr().String()).Info("server listening")

	delay := backoff.NewExponential(5*time.Millisecond,
		backoff.WithMaxDelay(time.Second),
		backoff.WithJitter(backoff.EqualJitter),
	)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return s.finish(nil)
			}
			if isTemporary(err) {
				wait := delay.Next()
				s.logger.WithError(err).WithFields(logrus.Fields{
					"attempt": delay.Attempt(),
					"retry":   wait.String(),
				}).Warn("accept failed; retrying")

				select {
				case <-s.clock.After(wait):
				case <-ctx.Done():
				}
				continue
			}
			ln.Close()
			return s.finish(fmt.Errorf("accept failed: %w", err))
		}
		delay.Reset()

		connID := uuid.NewString()
		err = s.executor.Submit(types.JobFunc(func() {
			s.handler.ServeConn(conn, connID)
		}))
		if err != nil {
			conn.Close()
			ln.Close()
			return s.finish(fmt.Errorf("failed to dispatch connection %s: %w", connID, err))
		}
	}
}

// finish shuts down an owned executor and combines its faults with cause
func (s *Server) finish(cause error) error {
	if !s.ownsExecutor {
		return cause
	}

	s.logger.Info("server stopping; waiting for in-flight connections")
	if err := s.executor.Shutdown(); err != nil {
		s.logger.WithError(err).Error("worker pool reported faults")
		return errors.Join(cause, fmt.Errorf("worker pool shutdown: %w", err))
	}
	return cause
}

// Ready returns a channel closed once Serve has its listener
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the listener address, or nil before Serve
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Executor returns the executor running connection jobs
func (s *Server) Executor() types.Executor {
	return s.executor
}

func isTemporary(err error) bool {
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}
