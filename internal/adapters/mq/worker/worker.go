// Package worker runs mixture fit jobs off the queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/puntscope/internal/adapters/mq/queue"
	"github.com/okian/puntscope/internal/domain/selection"
	"github.com/okian/puntscope/internal/domain/vmf"
	"github.com/okian/puntscope/pkg/logger"
	"github.com/okian/puntscope/pkg/metrics"
)

// Recorder stores fit outcomes.
type Recorder interface {
	Record(ctx context.Context, o selection.Outcome) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes fit jobs and records their outcomes.
type Worker interface {
	// Run starts the worker loop until the queue drains or ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue      Queue
	fitter     vmf.Fitter
	recorder   Recorder
	name       string
	fitTimeout time.Duration

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, fitter vmf.Fitter, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		fitter:   fitter,
		recorder: recorder,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "error recording fit outcome",
					logger.String("pair", job.Pair.String()), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process fits one job. A failed or timed out fit is recorded as a failed
// outcome; only recorder errors are returned.
func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) error {
	fitCtx := ctx
	if w.fitTimeout > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, w.fitTimeout)
		defer cancel()
	}

	start := time.Now()
	m, err := w.fitter.Fit(fitCtx, job.Dirs, job.Pair.K, job.Pair.Regime, job.Restarts, job.Seed)
	elapsed := time.Since(start)

	var outcome selection.Outcome
	status := metrics.FitStatusOK
	switch {
	case err != nil:
		if errors.Is(err, context.DeadlineExceeded) {
			status = metrics.FitStatusTimeout
		} else {
			status = metrics.FitStatusFailed
		}
		outcome = selection.Failed(job.Pair, err, elapsed)
		w.logger.Warn(ctx, "fit failed",
			logger.String("pair", job.Pair.String()),
			logger.String("status", status),
			logger.Duration("elapsed", elapsed),
			logger.Error(err),
		)
	default:
		outcome = selection.Succeeded(job.Pair, m, elapsed)
		metrics.RecordFitIterations(m.Iterations)
		w.logger.Debug(ctx, "fit finished",
			logger.String("pair", job.Pair.String()),
			logger.Float64("bic", m.BIC),
			logger.Float64("loglik", m.LogLik),
			logger.Int("iterations", m.Iterations),
			logger.Bool("converged", m.Converged),
			logger.Duration("elapsed", elapsed),
		)
		if !m.Converged {
			w.logger.Info(ctx, "fit stopped at iteration cap",
				logger.String("pair", job.Pair.String()),
				logger.Int("iterations", m.Iterations),
			)
		}
	}
	metrics.RecordFit(string(job.Pair.Regime), status, elapsed.Seconds())

	if err := w.recorder.Record(ctx, outcome); err != nil {
		return fmt.Errorf("record %s: %w", job.Pair, err)
	}
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	logger logger.Logger
}

// NewPool creates a new worker pool. Options are applied to every worker.
func NewPool(workerCount int, q Queue, fitter vmf.Fitter, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, fitter, recorder, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has exited, which happens once the queue is
// closed and drained, or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	defer metrics.UpdateWorkerCount(0)
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return fmt.Errorf("waiting for workers: %w", ctx.Err())
		}
	}
	return nil
}

// Shutdown closes the queue and stops all workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	var errs []error
	for i, w := range p.workers {
		select {
		case <-w.done:
			continue
		default:
		}
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			errs = append(errs, err)
		}
	}
	metrics.UpdateWorkerCount(0)
	return errors.Join(errs...)
}
