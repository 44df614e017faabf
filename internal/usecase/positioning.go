package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"CrowdedCOT/internal/domain/models"
	domrepo "CrowdedCOT/internal/domain/repository"
	"CrowdedCOT/internal/services/positioning"
	"CrowdedCOT/pkg/logger"
)

var (
	// ErrNoPublisher is returned by Publish when no publisher is configured.
	ErrNoPublisher = errors.New("no publisher configured")
	// ErrInvalidParams wraps engine parameter validation failures.
	ErrInvalidParams = errors.New("invalid engine params")
)

// PositioningUseCase loads a dataset, runs the engine and reports the result.
type PositioningUseCase struct {
	source    domrepo.DataSource
	engine    *positioning.Engine
	workers   int
	publisher domrepo.Publisher
	metrics   domrepo.Metrics
	log       *logger.Logger
	timeout   time.Duration
	newRunID  func() string
}

// Option configures PositioningUseCase.
type Option func(*PositioningUseCase)

func WithPublisher(p domrepo.Publisher) Option {
	return func(uc *PositioningUseCase) { uc.publisher = p }
}

func WithMetrics(m domrepo.Metrics) Option {
	return func(uc *PositioningUseCase) { uc.metrics = m }
}

func WithLogger(l *logger.Logger) Option {
	return func(uc *PositioningUseCase) { uc.log = l }
}

// WithTimeout bounds a whole run, loading included.
func WithTimeout(d time.Duration) Option {
	return func(uc *PositioningUseCase) { uc.timeout = d }
}

// WithWorkers is applied to engines built for per-request parameters.
func WithWorkers(n int) Option {
	return func(uc *PositioningUseCase) { uc.workers = n }
}

func NewPositioningUseCase(source domrepo.DataSource, engine *positioning.Engine, opts ...Option) *PositioningUseCase {
	uc := &PositioningUseCase{
		source:   source,
		engine:   engine,
		workers:  1,
		log:      logger.Nop(),
		timeout:  2 * time.Minute,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// RunParams narrows or overrides a run.
type RunParams struct {
	// Params replaces the engine parameters when non-nil.
	Params *positioning.Params
	// Contract keeps only one contract's rows in the result.
	Contract string
}

// RunResult is the outcome of one run.
type RunResult struct {
	RunID     string
	Source    domrepo.SourceKind
	Params    positioning.Params
	Table     *models.DerivedTable
	Summaries []models.Summary
	Duration  time.Duration
}

// Run loads the source and computes the derived table and latest summaries.
func (uc *PositioningUseCase) Run(ctx context.Context, p RunParams) (*RunResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	engine := uc.engine
	if p.Params != nil {
		e, err := positioning.New(*p.Params, positioning.WithWorkers(uc.workers))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
		engine = e
	}

	runID := uc.newRunID()
	log := uc.log.With(logger.String("run_id", runID), logger.String("source", string(uc.source.Kind())))

	in, err := uc.source.Load(ctx)
	if err != nil {
		uc.recordError("load")
		log.Error("load failed", logger.Error(err))
		return nil, fmt.Errorf("load %s: %w", uc.source.Kind(), err)
	}

	out, err := engine.Compute(in)
	if err != nil {
		uc.recordError("compute")
		log.Error("compute failed", logger.Error(err))
		return nil, fmt.Errorf("compute: %w", err)
	}

	res := &RunResult{
		RunID:    runID,
		Source:   uc.source.Kind(),
		Params:   engine.Params(),
		Table:    out,
		Duration: time.Since(start),
	}
	res.Summaries = positioning.Latest(out)

	if uc.metrics != nil {
		rowsIn := 0
		if in != nil {
			rowsIn = len(in.Rows)
		}
		uc.metrics.RecordRun(string(res.Source), rowsIn, len(out.Rows), res.Duration)
		for _, s := range res.Summaries {
			uc.metrics.RecordSummary(s)
		}
	}

	if p.Contract != "" {
		res.Table = positioning.FilterContract(out, p.Contract)
		res.Summaries = positioning.Latest(res.Table)
	}

	log.Info("run complete",
		logger.Int("rows", len(res.Table.Rows)),
		logger.Int("contracts", len(res.Summaries)),
		logger.Duration("duration_ms", res.Duration))
	for _, s := range res.Summaries {
		if s.AMCrowdedLongConfirmed || s.LFCrowdedShortConfirmed {
			log.Warn("confirmed crowding",
				logger.String("contract", s.Contract),
				logger.Date("report_date", s.ReportDate),
				logger.Bool("am_crowded_long", s.AMCrowdedLongConfirmed),
				logger.Bool("lf_crowded_short", s.LFCrowdedShortConfirmed))
		}
	}
	return res, nil
}

// Publish ships a run's latest summaries.
func (uc *PositioningUseCase) Publish(ctx context.Context, res *RunResult) error {
	if uc.publisher == nil {
		return ErrNoPublisher
	}
	if err := uc.publisher.PublishSummaries(ctx, res.RunID, res.Summaries); err != nil {
		uc.recordError("publish")
		return err
	}
	return nil
}

// Source returns the configured data source kind.
func (uc *PositioningUseCase) Source() domrepo.SourceKind { return uc.source.Kind() }

func (uc *PositioningUseCase) recordError(kind string) {
	if uc.metrics != nil {
		uc.metrics.RecordError(kind)
	}
}
