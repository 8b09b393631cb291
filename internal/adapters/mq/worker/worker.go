// Package worker runs background personalization jobs: it pulls jobs off
// the queue, fits the owning user's adapter on their stored history, and
// persists a weight snapshot afterwards.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/okian/aura/internal/domain/adapter"
	"github.com/okian/aura/internal/domain/model"
	"github.com/okian/aura/pkg/logger"
	"github.com/okian/aura/pkg/metrics"
)

// Job is what workers read off the queue.
type Job = model.PersonalizeJob

// Records supplies a user's ordered daily-record history.
type Records interface {
	Records(ctx context.Context, userID string) ([]model.DailyRecord, error)
}

// Adapters resolves the personal adapter owned by a user.
type Adapters interface {
	GetOrCreate(ctx context.Context, userID string) *adapter.Adapter
}

// Snapshots persists adapter parameters after a successful fit. A nil
// Snapshots disables persistence.
type Snapshots interface {
	SaveAdapter(ctx context.Context, state adapter.State) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Pool runs a fixed number of personalization workers.
type Pool struct {
	queue     Queue
	records   Records
	adapters  Adapters
	snapshots Snapshots

	count int
	wg    sync.WaitGroup
	log   logger.Logger
}

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithLogger sets a custom logger for the pool.
func WithLogger(log logger.Logger) Option {
	return func(p *Pool) {
		if log != nil {
			p.log = log
		}
	}
}

// WithSnapshots enables snapshot persistence after each fit.
func WithSnapshots(s Snapshots) Option {
	return func(p *Pool) { p.snapshots = s }
}

// NewPool creates a worker pool. Count must be positive.
func NewPool(count int, q Queue, records Records, adapters Adapters, opts ...Option) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{
		queue:    q,
		records:  records,
		adapters: adapters,
		count:    count,
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}

	if p.log == nil {
		p.log = logger.Named("worker")
	}
	return p
}

// Start launches the workers. They stop when ctx is canceled or the queue
// channel closes.
func (p *Pool) Start(ctx context.Context) {
	jobs := p.queue.Dequeue(ctx)
	metrics.UpdateWorkerCount(p.count)
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-jobs:
					if !ok {
						return
					}
					p.process(ctx, job)
				}
			}
		}()
	}
}

// Wait blocks until all workers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
	metrics.UpdateWorkerCount(0)
}

func (p *Pool) process(ctx context.Context, job Job) {
	start := time.Now()

	records, err := p.records.Records(ctx, job.UserID)
	if err != nil {
		metrics.RecordJobFailure()
		p.log.Warn(ctx, "personalization job dropped",
			logger.String("jobID", job.JobID),
			logger.String("userID", job.UserID),
			logger.Error(err),
		)
		return
	}

	a := p.adapters.GetOrCreate(ctx, job.UserID)
	result := a.FitPersonal(records, job.Epochs)

	finalLoss := 0.0
	if n := len(result.LossHistory); n > 0 {
		finalLoss = result.LossHistory[n-1]
	}
	metrics.RecordPersonalization(time.Since(start).Seconds(), finalLoss)

	if p.snapshots != nil && len(result.LossHistory) > 0 {
		if err := p.snapshots.SaveAdapter(ctx, a.State()); err != nil {
			p.log.Warn(ctx, "adapter snapshot failed",
				logger.String("userID", job.UserID),
				logger.Error(err),
			)
		}
	}

	p.log.Debug(ctx, "personalization job finished",
		logger.String("jobID", job.JobID),
		logger.String("userID", job.UserID),
		logger.Int("epochs", len(result.LossHistory)),
		logger.Float64("finalLoss", finalLoss),
		logger.Duration("took", time.Since(start)),
	)
}
