// Package service wires the feature pipeline: event store, timeline indexer,
// parallel rolling aggregation, joiner and labeler.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/pitwall/internal/adapters/mq/queue"
	workerpool "github.com/okian/pitwall/internal/adapters/mq/worker"
	"github.com/okian/pitwall/internal/adapters/repository"
	"github.com/okian/pitwall/internal/adapters/source"
	"github.com/okian/pitwall/internal/domain/eventstore"
	"github.com/okian/pitwall/internal/domain/features"
	"github.com/okian/pitwall/internal/domain/join"
	"github.com/okian/pitwall/internal/domain/label"
	"github.com/okian/pitwall/internal/domain/model"
	"github.com/okian/pitwall/internal/domain/rolling"
	"github.com/okian/pitwall/internal/domain/timeline"
	"github.com/okian/pitwall/pkg/logger"
	"github.com/okian/pitwall/pkg/metrics"
)

// Pipeline stage names, used as metric labels.
const (
	StageLoad      = "load"
	StageNormalize = "normalize"
	StageAggregate = "aggregate"
	StageJoin      = "join"
	StageLabel     = "label"
)

const defaultQueueSize = 4096

// Request describes one feature build.
type Request struct {
	Source      source.Source
	Dimensions  []features.Dimension
	Raw         []join.RawColumn
	WindowSize  int
	Target      label.TargetRule
	Eligibility label.Eligibility
}

// Result is the outcome of a build.
type Result struct {
	RunID    string
	Matrix   *model.Matrix
	Report   eventstore.Report
	Failures []workerpool.Failure
}

// Service runs feature builds.
type Service struct {
	workerCount int
	queueSize   int
	naValues    []string
	aggregate   workerpool.AggregateFunc
	logger      logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of aggregation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithNAValues sets the strings the event store treats as MISSING.
func WithNAValues(values []string) Option {
	return func(s *Service) {
		s.naValues = values
	}
}

// WithAggregateFunc replaces the per-timeline aggregation step.
func WithAggregateFunc(fn workerpool.AggregateFunc) Option {
	return func(s *Service) {
		if fn != nil {
			s.aggregate = fn
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   defaultQueueSize,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}

	return s
}

// BuildFeatures runs a build with a default Service.
func BuildFeatures(ctx context.Context, src source.Source, dims []features.Dimension, windowSize int, rule label.TargetRule, elig label.Eligibility) (*model.Matrix, error) {
	res, err := New().BuildFeatures(ctx, Request{
		Source:      src,
		Dimensions:  dims,
		Raw:         features.Raw(),
		WindowSize:  windowSize,
		Target:      rule,
		Eligibility: elig,
	})
	if err != nil {
		return nil, err
	}
	return res.Matrix, nil
}

// BuildFeatures normalizes the source tables, aggregates every dimension in
// parallel and returns the labeled matrix. Only malformed input or an invalid
// request aborts; a failed entity leaves its joins MISSING.
func (s *Service) BuildFeatures(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString()}
	log := s.logger.With(logger.String("run_id", res.RunID))
	log.Info(ctx, "feature build started",
		logger.Int("window_size", req.WindowSize),
		logger.String("target", req.Target.Name()),
		logger.Int("dimensions", len(req.Dimensions)),
	)
	started := time.Now()

	var in eventstore.Input
	if err := stage(StageLoad, func() error {
		var err error
		in, err = s.load(ctx, log, req.Source)
		return err
	}); err != nil {
		return nil, err
	}

	var events []model.Event
	if err := stage(StageNormalize, func() error {
		var err error
		store := eventstore.New(eventstore.WithNAValues(s.naValues), eventstore.WithLogger(log))
		events, res.Report, err = store.Normalize(ctx, in)
		return err
	}); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	var snapshots repository.Store = repository.NewSnapshotStore()
	if err := stage(StageAggregate, func() error {
		var err error
		res.Failures, err = s.aggregateAll(ctx, log, events, req, snapshots)
		return err
	}); err != nil {
		return nil, err
	}

	var rows []model.Row
	var columns []string
	if err := stage(StageJoin, func() error {
		dims := make([]join.Dimension, len(req.Dimensions))
		for i := range req.Dimensions {
			d := &req.Dimensions[i]
			dims[i] = join.Dimension{Name: d.Name, Columns: d.Columns(), Key: d.Key, Snapshots: repository.View(snapshots, d.Name)}
		}
		columns = join.Columns(dims, req.Raw)
		var err error
		rows, err = join.Join(ctx, events, dims, req.Raw)
		return err
	}); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	if err := stage(StageLabel, func() error {
		var err error
		res.Matrix, err = label.New(req.Target, req.Eligibility, label.WithLogger(log)).Label(ctx, rows, columns)
		return err
	}); err != nil {
		return nil, fmt.Errorf("label: %w", err)
	}

	log.Info(ctx, "feature build finished",
		logger.Int("events", len(events)),
		logger.Int("rows", len(res.Matrix.Rows)),
		logger.Int("columns", len(res.Matrix.Columns)),
		logger.Int("failed_entities", len(res.Failures)),
		logger.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

func validate(req Request) error {
	if req.Source == nil {
		return fmt.Errorf("%w: no source", ErrInvalidRequest)
	}
	if req.Target == nil {
		return fmt.Errorf("%w: no target rule", ErrInvalidRequest)
	}
	if req.WindowSize < 1 {
		return fmt.Errorf("%w: window size %d", rolling.ErrInvalidWindow, req.WindowSize)
	}
	seen := map[string]struct{}{}
	for _, d := range req.Dimensions {
		if d.Name == "" || d.Key == nil {
			return fmt.Errorf("%w: dimension %q needs a name and a key", ErrInvalidRequest, d.Name)
		}
		if _, dup := seen[d.Name]; dup {
			return fmt.Errorf("%w: duplicate dimension %q", ErrInvalidRequest, d.Name)
		}
		seen[d.Name] = struct{}{}
		if err := rolling.Validate(d.Stats); err != nil {
			return fmt.Errorf("dimension %s: %w", d.Name, err)
		}
	}
	return nil
}

// load reads the required tables. Qualifying is optional.
func (s *Service) load(ctx context.Context, log logger.Logger, src source.Source) (eventstore.Input, error) {
	var in eventstore.Input
	var err error
	if in.Results, err = src.Table(ctx, source.TableResults); err != nil {
		return in, fmt.Errorf("load %s: %w", source.TableResults, err)
	}
	if in.Races, err = src.Table(ctx, source.TableRaces); err != nil {
		return in, fmt.Errorf("load %s: %w", source.TableRaces, err)
	}
	in.Qualifying, err = src.Table(ctx, source.TableQualifying)
	switch {
	case errors.Is(err, source.ErrTableNotFound):
		log.Warn(ctx, "qualifying table not found, qualifying positions will be missing")
		in.Qualifying = nil
	case err != nil:
		return in, fmt.Errorf("load %s: %w", source.TableQualifying, err)
	}
	return in, nil
}

// aggregateAll indexes every dimension and fans the timelines out to a worker
// pool. On failure the pool is shut down before returning.
func (s *Service) aggregateAll(ctx context.Context, log logger.Logger, events []model.Event, req Request, snapshots repository.Store) ([]workerpool.Failure, error) {
	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	opts := []workerpool.Option{workerpool.WithLogger(log.Named("worker"))}
	if s.aggregate != nil {
		opts = append(opts, workerpool.WithAggregateFunc(s.aggregate))
	}
	pool := workerpool.NewPool(s.workerCount, q, snapshots, opts...)
	pool.Start(ctx)

	indexed := make(map[string]int, len(req.Dimensions))
	var submitErr error
	for _, d := range req.Dimensions {
		timelines, keys := timeline.Index(events, d.Key, d.Collapse)
		indexed[d.Name] = len(keys)
		metrics.RecordTimelines(d.Name, len(keys))
		log.Debug(ctx, "indexed dimension",
			logger.String("dimension", d.Name),
			logger.Int("timelines", len(keys)),
		)
		for _, k := range keys {
			job := eventqueue.Job{Dimension: d.Name, Timeline: timelines[k], Stats: d.Stats, WindowSize: req.WindowSize}
			if submitErr = q.Submit(ctx, job); submitErr != nil {
				break
			}
		}
		if submitErr != nil {
			break
		}
	}
	if submitErr != nil {
		_ = pool.Shutdown(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("aggregate: %w", submitErr)
	}
	log.Debug(ctx, "all timelines submitted", logger.Int("queued", q.Len(ctx)))
	_ = q.Close()

	if err := pool.Wait(ctx); err != nil {
		_ = pool.Shutdown(context.WithoutCancel(ctx))
		return nil, err
	}

	for _, d := range req.Dimensions {
		log.Debug(ctx, "dimension aggregated",
			logger.String("dimension", d.Name),
			logger.Int("timelines", indexed[d.Name]),
			logger.Int("stored", snapshots.Count(ctx, d.Name)),
		)
	}

	failures := pool.Failures()
	if len(failures) > 0 {
		log.Warn(ctx, "some entities failed to aggregate", logger.Int("count", len(failures)))
	}
	return failures, nil
}

// stage runs fn and records its duration.
func stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStageDuration(name, float64(time.Since(start).Microseconds())/1000)
	return err
}
