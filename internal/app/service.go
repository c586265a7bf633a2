// Package service runs the punt analysis pipeline: dedupe, normalize,
// aggregate, sweep mixture fits through the worker pool, select by BIC and
// interpret the winner.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	eventqueue "github.com/okian/puntscope/internal/adapters/mq/queue"
	workerpool "github.com/okian/puntscope/internal/adapters/mq/worker"
	repository "github.com/okian/puntscope/internal/adapters/repository"
	"github.com/okian/puntscope/internal/domain/aggregate"
	"github.com/okian/puntscope/internal/domain/dedupe"
	"github.com/okian/puntscope/internal/domain/interpret"
	"github.com/okian/puntscope/internal/domain/model"
	"github.com/okian/puntscope/internal/domain/normalize"
	"github.com/okian/puntscope/internal/domain/selection"
	"github.com/okian/puntscope/internal/domain/vmf"
	"github.com/okian/puntscope/pkg/logger"
	"github.com/okian/puntscope/pkg/metrics"
)

// Pipeline stage names used in logs, metrics and Result.Durations.
const (
	StageNormalize = "normalize"
	StageAggregate = "aggregate"
	StageSweep     = "sweep"
	StageSelect    = "select"
	StageInterpret = "interpret"
)

// enqueueBackoff is the pause before retrying a job on a full queue.
const enqueueBackoff = 2 * time.Millisecond

// ErrNoUsableEvents is returned when no event survives normalization.
var ErrNoUsableEvents = errors.New("no usable events")

// Result is everything one pipeline run produces.
type Result struct {
	Loaded     int
	Duplicates int
	// Rejected holds one InvalidEventError per event dropped by normalization.
	Rejected []error

	Field model.Field
	Rows  []model.NormalizedPuntEvent
	Table aggregate.Table

	Outcomes []selection.Outcome // best first
	Ranking  []selection.Entry
	Selected selection.Outcome

	Interpretation interpret.Interpretation

	Durations map[string]time.Duration
}

// Service runs the pipeline with a fixed configuration.
type Service struct {
	// Field geometry and bucketing
	fieldLength float64
	midpoint    float64
	endZone     float64
	angleBins   int
	zoneShort   float64
	zoneMid     float64

	// Sweep
	kMin        int
	kMax        int
	restarts    int
	seed        int64
	fitter      vmf.Fitter
	fitTimeout  time.Duration
	workerCount int
	queueSize   int

	dedupeSize int

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of fit workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the fit job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the duplicate-key cache. Zero keeps it unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithField sets the field geometry.
func WithField(length, midpoint, endZone float64) Option {
	return func(s *Service) {
		s.fieldLength, s.midpoint, s.endZone = length, midpoint, endZone
	}
}

// WithAngleBins sets the number of direction buckets.
func WithAngleBins(bins int) Option {
	return func(s *Service) {
		if bins > 0 {
			s.angleBins = bins
		}
	}
}

// WithZoneBreaks sets the yard-line edges of the field zones.
func WithZoneBreaks(short, mid float64) Option {
	return func(s *Service) {
		s.zoneShort, s.zoneMid = short, mid
	}
}

// WithKRange sets the inclusive component count range of the sweep.
func WithKRange(kMin, kMax int) Option {
	return func(s *Service) {
		if kMin >= 1 && kMax >= kMin {
			s.kMin, s.kMax = kMin, kMax
		}
	}
}

// WithRestarts sets the random restarts per fit.
func WithRestarts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.restarts = n
		}
	}
}

// WithSeed sets the base seed every restart seed derives from.
func WithSeed(seed int64) Option {
	return func(s *Service) {
		s.seed = seed
	}
}

// WithFitter replaces the mixture fitter.
func WithFitter(f vmf.Fitter) Option {
	return func(s *Service) {
		if f != nil {
			s.fitter = f
		}
	}
}

// WithFitTimeout bounds each (k, regime) fit. Zero disables the bound.
func WithFitTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.fitTimeout = d
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		fieldLength: model.DefaultFieldLength,
		midpoint:    model.DefaultMidpoint,
		endZone:     model.DefaultEndZone,
		angleBins:   normalize.DefaultAngleBins,
		zoneShort:   normalize.DefaultShortZoneEdge,
		zoneMid:     normalize.DefaultMidZoneEdge,
		kMin:        1,
		kMax:        10,
		restarts:    20,
		seed:        1,
		fitTimeout:  time.Minute,
		workerCount: runtime.NumCPU(),
		queueSize:   64,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.fitter == nil {
		s.fitter = vmf.NewEMFitter()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("pipeline")
	}
	return s
}

// stage times fn, records the duration and returns fn's error.
func (s *Service) stage(ctx context.Context, res *Result, name string, fn func() error) error {
	var err error
	s.timed(ctx, res, name, func() { err = fn() })
	return err
}

// timed is stage for steps that cannot fail.
func (s *Service) timed(ctx context.Context, res *Result, name string, fn func()) {
	start := time.Now()
	fn()
	d := time.Since(start)
	res.Durations[name] = d
	metrics.UpdateStageDuration(name, d.Seconds())
	s.logger.Debug(ctx, "stage finished", logger.String("stage", name), logger.Duration("elapsed", d))
}

// Run executes the whole pipeline over events. Schema problems are the
// loader's concern; here only an empty input, a run where every event is
// rejected, or a sweep where every fit fails abort the run. Single bad
// events and single failed fits are reported in the Result.
func (s *Service) Run(ctx context.Context, events []model.PuntEvent) (*Result, error) {
	res := &Result{Loaded: len(events), Durations: make(map[string]time.Duration)}
	metrics.RecordEventsLoaded(len(events))

	maxY, err := normalize.FieldMaxY(events)
	if err != nil {
		return nil, err
	}
	res.Field = model.Field{Length: s.fieldLength, Midpoint: s.midpoint, EndZone: s.endZone, MaxY: maxY}
	norm, err := normalize.NewNormalizer(res.Field,
		normalize.WithAngleBins(s.angleBins),
		normalize.WithZoneBreaks(s.zoneShort, s.zoneMid),
	)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "field measured",
		logger.Float64("max_y", maxY),
		logger.Int("events", len(events)),
	)

	s.timed(ctx, res, StageNormalize, func() {
		deduper := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
		res.Rows = make([]model.NormalizedPuntEvent, 0, len(events))
		res.Duplicates, res.Rejected = dedupe.Filter(ctx, deduper, events, func(e model.PuntEvent) error {
			n, err := norm.Normalize(e)
			if err != nil {
				return err
			}
			res.Rows = append(res.Rows, n)
			return nil
		})
	})
	metrics.RecordEventDuplicates(res.Duplicates)
	for _, rerr := range res.Rejected {
		metrics.RecordEventRejected(StageNormalize)
		s.logger.Warn(ctx, "event rejected", logger.Error(rerr))
	}
	if len(res.Rows) == 0 {
		return nil, fmt.Errorf("%w: %d loaded, %d duplicate, %d rejected",
			ErrNoUsableEvents, res.Loaded, res.Duplicates, len(res.Rejected))
	}

	if err := s.stage(ctx, res, StageAggregate, func() error {
		var err error
		res.Table, err = aggregate.Aggregate(res.Rows, norm.AngleBins())
		return err
	}); err != nil {
		return nil, err
	}
	degenerate := 0
	for _, w := range res.Table.Warnings {
		degenerate++
		s.logger.Debug(ctx, "degenerate bucket", logger.Error(w))
	}
	metrics.UpdateBuckets(len(res.Table.Rows), degenerate)

	dirs := make([]vmf.Direction, len(res.Rows))
	for i, r := range res.Rows {
		dirs[i] = vmf.FromAngle(r.AngleRad)
	}

	if err := s.stage(ctx, res, StageSweep, func() error {
		var err error
		res.Outcomes, err = s.Sweep(ctx, dirs)
		return err
	}); err != nil {
		return nil, err
	}

	if err := s.stage(ctx, res, StageSelect, func() error {
		res.Ranking = selection.Ranking(res.Outcomes)
		var err error
		res.Selected, err = selection.Select(res.Outcomes)
		return err
	}); err != nil {
		return nil, err
	}
	metrics.UpdateSelection(res.Selected.K, res.Selected.BIC)
	s.logger.Info(ctx, "model selected",
		logger.String("pair", res.Selected.Pair.String()),
		logger.Float64("bic", res.Selected.BIC),
		logger.Float64("loglik", res.Selected.Model.LogLik),
	)

	if err := s.stage(ctx, res, StageInterpret, func() error {
		var err error
		res.Interpretation, err = interpret.Interpret(res.Selected.Model, res.Rows)
		return err
	}); err != nil {
		return nil, err
	}
	for _, c := range res.Interpretation.Clusters {
		s.logger.Info(ctx, "cluster",
			logger.Int("label", c.Label),
			logger.String("bearing", c.Bearing),
			logger.Float64("kappa", c.Kappa),
			logger.Float64("weight", c.Weight),
			logger.Int("members", c.Members),
		)
	}
	return res, nil
}

// Sweep fits every (k, regime) pair of the configured grid through the
// worker pool and returns the outcomes best first. Failed fits are kept as
// failed outcomes. Sweep fails only when ctx ends before the pool drains.
func (s *Service) Sweep(ctx context.Context, dirs []vmf.Direction) ([]selection.Outcome, error) {
	grid := selection.Grid(s.kMin, s.kMax)
	store := repository.NewTreapStore()
	q := eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	pool := workerpool.NewPool(s.workerCount, q, s.fitter, store,
		workerpool.WithFitTimeout(s.fitTimeout),
		workerpool.WithLogger(s.logger.Named("sweep")),
	)

	s.logger.Info(ctx, "starting sweep",
		logger.Int("pairs", len(grid)),
		logger.Int("workers", pool.Size()),
		logger.Int("restarts", s.restarts),
		logger.Int("n", len(dirs)),
	)

	pool.Start(ctx)
	for _, p := range grid {
		job := eventqueue.Job{Pair: p, Dirs: dirs, Restarts: s.restarts, Seed: selection.SeedFor(s.seed, p)}
		if err := s.enqueue(ctx, q, job); err != nil {
			_ = pool.Shutdown(context.Background())
			return nil, fmt.Errorf("enqueue %s: %w", p, err)
		}
	}
	if err := q.Close(); err != nil {
		return nil, err
	}
	if err := pool.Wait(ctx); err != nil {
		return nil, err
	}

	outcomes := store.All(ctx)
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	s.logger.Info(ctx, "sweep finished",
		logger.Int("fits", len(outcomes)),
		logger.Int("failed", failed),
	)
	return outcomes, nil
}

// enqueue retries on a full queue until the workers make room or ctx ends.
func (s *Service) enqueue(ctx context.Context, q *eventqueue.InMemoryQueue, job eventqueue.Job) error {
	for {
		err := q.Enqueue(ctx, job)
		if !errors.Is(err, eventqueue.ErrFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(enqueueBackoff):
		}
	}
}
