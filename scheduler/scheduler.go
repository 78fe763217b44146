// Package scheduler runs the periodic sweep that vectorizes articles
// without a stored vector.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/poiesic/articlevec/core"
)

// Sweeper is the operation run on every tick.
type Sweeper interface {
	Sweep(ctx context.Context, limit int, force bool) (*core.BatchResult, error)
}

// cronLoggerAdapter adapts slog.Logger to the cron.Logger interface.
type cronLoggerAdapter struct {
	logger *slog.Logger
}

var _ cron.Logger = (*cronLoggerAdapter)(nil)

func (cl *cronLoggerAdapter) Info(msg string, keysAndValues ...any) {
	cl.logger.Debug(msg, keysAndValues...)
}

func (cl *cronLoggerAdapter) Error(err error, msg string, keysAndValues ...any) {
	cl.logger.Error(msg, append(keysAndValues, "err", err)...)
}

// Scheduler triggers Sweep on a cron schedule. A tick that arrives while the
// previous sweep is still running is skipped.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	sweeper Sweeper
	limit   int
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. A nil logger selects the default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "scheduler")
	}
}

// New creates a scheduler running sweeper.Sweep(limit, false) on spec, which
// is a standard five-field cron expression or a descriptor such as
// "@every 10m".
func New(spec string, sweeper Sweeper, limit int, opts ...Option) (*Scheduler, error) {
	if sweeper == nil {
		return nil, errors.New("sweeper must not be nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("sweep limit must be > 0, got %d", limit)
	}

	s := &Scheduler{
		sweeper: sweeper,
		limit:   limit,
		logger:  slog.Default().With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	logger := &cronLoggerAdapter{logger: s.logger}
	s.cron = cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		s.cancel()
		return nil, fmt.Errorf("add cron %q: %w", spec, err)
	}
	return s, nil
}

// Start begins cron execution.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("sweep scheduled", "limit", s.limit)
}

// Stop cancels a running sweep and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// RunOnce performs one sweep immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (*core.BatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeper.Sweep(ctx, s.limit, false)
}

func (s *Scheduler) tick() {
	result, err := s.RunOnce(s.ctx)
	switch {
	case errors.Is(err, core.ErrServiceNotReady):
		s.logger.Info("sweep skipped, models not loaded", "err", err)
	case err != nil:
		s.logger.Error("sweep failed", "err", err)
	case result.Processed > 0 || len(result.Failed) > 0:
		s.logger.Info("sweep complete", "processed", result.Processed, "failed", len(result.Failed))
	default:
		s.logger.Debug("sweep found nothing to do")
	}
}
