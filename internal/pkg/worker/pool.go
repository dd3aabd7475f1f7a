// Package worker provides goroutine pool management.
//
// Concurrency outside the resolver's single event loop goes through a Pool so
// that panics are recovered, idle goroutines are purged and shutdown waits for
// in-flight work.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"shopfloor.io/mes/internal/pkg/logger"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Config contains Pool configuration.
type Config struct {
	Name     string
	Size     int
	Expiry   time.Duration
	Shutdown time.Duration
}

// DefaultConfig returns the defaults used by the intake service.
func DefaultConfig(name string) Config {
	return Config{
		Name:     name,
		Size:     16,
		Expiry:   10 * time.Second,
		Shutdown: 30 * time.Second,
	}
}

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool     *ants.Pool
	name     string
	shutdown time.Duration

	// serviceCtx is the service lifecycle context for detached tasks
	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// NewPool creates a named worker pool bound to ctx.
func NewPool(ctx context.Context, cfg Config) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("worker pool %q: size must be positive, got %d", cfg.Name, cfg.Size)
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 10 * time.Second
	}
	if cfg.Shutdown <= 0 {
		cfg.Shutdown = 30 * time.Second
	}

	serviceCtx, serviceCancel := context.WithCancel(ctx)

	name := cfg.Name
	panicHandler := func(p interface{}) {
		logger.Error("Worker panic recovered",
			zap.String("pool", name),
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	p, err := ants.NewPool(cfg.Size,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(cfg.Expiry),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	return &Pool{
		pool:          p,
		name:          name,
		shutdown:      cfg.Shutdown,
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a context-aware task.
// If ctx is already cancelled, returns ctx.Err() without submitting.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		// May have been cancelled while queued.
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// SubmitDetached submits a task bound to the pool's lifecycle context instead
// of a caller context.
func (p *Pool) SubmitDetached(task Task) error {
	return p.Submit(p.serviceCtx, task)
}

// Shutdown waits for running tasks, bounded by the configured shutdown
// timeout, then cancels the context of any detached task still running.
func (p *Pool) Shutdown() {
	defer p.serviceCancel()

	if err := p.pool.ReleaseTimeout(p.shutdown); err != nil {
		logger.Warn("Worker pool shutdown timeout",
			zap.String("pool", p.name),
			zap.Error(err),
		)
	}
}

// Metrics returns pool metrics for observability.
func (p *Pool) Metrics() map[string]int {
	return map[string]int{
		"running": p.pool.Running(),
		"free":    p.pool.Free(),
		"cap":     p.pool.Cap(),
	}
}
