// Package worker aggregates queued timelines in parallel and hands the
// resulting snapshots to a sink.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/okian/pitwall/internal/adapters/mq/queue"
	"github.com/okian/pitwall/internal/domain/rolling"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Sink stores the snapshots of one entity.
type Sink interface {
	Put(ctx context.Context, dimension, entity string, snaps []rolling.Snapshot) error
}

// AggregateFunc computes snapshots for one job.
type AggregateFunc func(j queue.Job) ([]rolling.Snapshot, error)

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Failure records an entity whose aggregation did not produce snapshots.
type Failure struct {
	Dimension string
	Entity    string
	Err       error
}

// Worker processes jobs until its queue is drained.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	sink      Sink
	aggregate AggregateFunc
	name      string
	onFailure func(Failure)

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		sink:      sink,
		aggregate: Aggregate,
		name:      "worker",
		onFailure: func(Failure) {},
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Aggregate runs the rolling aggregator for a job.
func Aggregate(j queue.Job) ([]rolling.Snapshot, error) {
	return rolling.Aggregate(j.Timeline, j.WindowSize, j.Stats)
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
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				metrics.RecordAggregationError(j.Dimension)
				w.logger.Error(ctx, "aggregation failed",
					logger.String("dimension", j.Dimension),
					logger.String("entity", j.Timeline.Key),
					logger.Error(err),
				)
				w.onFailure(Failure{Dimension: j.Dimension, Entity: j.Timeline.Key, Err: err})
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process aggregates one timeline. A panic is confined to its entity.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s/%s: %v", ErrPanic, j.Dimension, j.Timeline.Key, r)
		}
		metrics.RecordAggregationLatency(j.Dimension, float64(time.Since(start).Microseconds())/1000)
	}()

	snaps, err := w.aggregate(j)
	if err != nil {
		return fmt.Errorf("aggregate %s/%s: %w", j.Dimension, j.Timeline.Key, err)
	}
	if len(snaps) != j.Timeline.Len() {
		return fmt.Errorf("%w: %s/%s: %d snapshots for %d points",
			ErrLengthMismatch, j.Dimension, j.Timeline.Key, len(snaps), j.Timeline.Len())
	}
	if err := w.sink.Put(ctx, j.Dimension, j.Timeline.Key, snaps); err != nil {
		return fmt.Errorf("store %s/%s: %w", j.Dimension, j.Timeline.Key, err)
	}
	return nil
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue

	mu       sync.Mutex
	failures []Failure

	logger logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker
// per CPU because aggregation is CPU bound.
func NewPool(workerCount int, q Queue, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}

	for i := 0; i < workerCount; i++ {
		wopts := append([]Option{
			WithName("worker-" + strconv.Itoa(i)),
			withFailureHook(pool.recordFailure),
		}, opts...)
		pool.workers[i] = NewInMemoryWorker(q, sink, wopts...)
	}

	metrics.UpdateWorkerCount(workerCount)

	return pool
}

func (p *Pool) recordFailure(f Failure) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, f)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Wait blocks until every worker has drained the queue or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			return fmt.Errorf("wait for workers: %w", ctx.Err())
		}
	}
	metrics.UpdateWorkerCount(0)
	return nil
}

// Failures returns the failed entities ordered by dimension and entity.
func (p *Pool) Failures() []Failure {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]Failure(nil), p.failures...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dimension != out[j].Dimension {
			return out[i].Dimension < out[j].Dimension
		}
		return out[i].Entity < out[j].Entity
	})
	return out
}

// Shutdown closes the queue and stops all workers.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)

	return nil
}
