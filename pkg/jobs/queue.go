package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrPanic wraps a value recovered from a panicking handler.
var ErrPanic = errors.New("job panicked")

// Job represents one unit of work handed to a pool.
type Job struct {
	ID       string
	Type     string
	Payload  interface{}
	Enqueued time.Time
}

// Handler processes a job.
type Handler func(context.Context, Job) error

// Failure pairs a job with the error its handler returned.
type Failure struct {
	Job Job
	Err error
}

// PoolConfig configures worker pool behaviour.
type PoolConfig struct {
	Workers int
	Logger  *zap.Logger
}

// Pool runs jobs on a bounded number of goroutines. Jobs are independent: a
// failing or panicking handler never cancels its siblings.
type Pool struct {
	name    string
	workers int
	logger  *zap.Logger
}

// NewPool builds a pool with the provided configuration.
func NewPool(name string, cfg PoolConfig) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pool{name: name, workers: cfg.Workers, logger: cfg.Logger}
}

// Workers returns the concurrency limit.
func (p *Pool) Workers() int {
	return p.workers
}

// Run dispatches every job to handler and waits for all of them. Submission
// stops once ctx is cancelled; jobs already running finish. The returned
// failures are in completion order.
func (p *Pool) Run(ctx context.Context, batch []Job, handler Handler) ([]Failure, error) {
	var (
		g        errgroup.Group
		mu       sync.Mutex
		failures []Failure
	)
	g.SetLimit(p.workers)

	submitted := 0
	for _, job := range batch {
		if ctx.Err() != nil {
			break
		}
		if job.Enqueued.IsZero() {
			job.Enqueued = time.Now().UTC()
		}
		job := job
		submitted++
		g.Go(func() error {
			if err := p.execute(ctx, job, handler); err != nil {
				mu.Lock()
				failures = append(failures, Failure{Job: job, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil && submitted < len(batch) {
		p.logger.Sugar().Warnw("pool stopped before submitting all jobs", "pool", p.name, "submitted", submitted, "total", len(batch))
		return failures, fmt.Errorf("pool %s stopped: %w", p.name, err)
	}
	return failures, nil
}

func (p *Pool) execute(ctx context.Context, job Job, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Sugar().Errorw("job panicked", "pool", p.name, "job_id", job.ID, "type", job.Type, "panic", r)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return handler(ctx, job)
}
