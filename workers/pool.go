package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// DefaultSize is the pool size used when none is configured.
const DefaultSize = 4

var (
	// ErrPoolClosed is returned by Do after Release.
	ErrPoolClosed = errors.New("worker pool is closed")

	// ErrPanic wraps a panic recovered from a task.
	ErrPanic = errors.New("task panicked")
)

// Pool runs tasks on a fixed number of goroutines.
type Pool struct {
	pool   *ants.Pool
	slots  chan struct{}
	logger *slog.Logger
}

// Option configures a Pool.
type Option func(*Pool) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPool creates a pool of size workers. Sizes below 1 use DefaultSize.
func NewPool(size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		size = DefaultSize
	}
	p := &Pool{
		logger: slog.Default().With("component", "workers"),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	p.pool = pool
	p.slots = make(chan struct{}, size)
	return p, nil
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.pool.Cap()
}

// Do runs fn on a pool worker and waits for its result. While every worker
// is busy Do waits for a free slot. If ctx ends first, either while waiting
// for a slot or while fn runs, Do returns ctx.Err(); a task already started
// finishes on its own and its result is dropped.
func (p *Pool) Do(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	done := make(chan error, 1)
	err := p.pool.Submit(func() {
		defer func() { <-p.slots }()
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("recovered panic in worker", "panic", r)
				done <- fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		done <- fn()
	})
	if err != nil {
		<-p.slots
		if errors.Is(err, ants.ErrPoolClosed) {
			return fmt.Errorf("%w: %w", ErrPoolClosed, err)
		}
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release stops the pool. Do fails with ErrPoolClosed afterwards.
func (p *Pool) Release() {
	p.pool.Release()
}
