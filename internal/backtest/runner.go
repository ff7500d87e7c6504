package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"investment-x/internal/domain"
	"investment-x/internal/idhash"
	"investment-x/internal/metrics"
	"investment-x/internal/risk"
	"investment-x/internal/storage"
	"investment-x/internal/timeseries"
)

// Run status labels passed to RunRecorder.RecordRun.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

// RunRecorder extends Recorder with per-run outcomes.
type RunRecorder interface {
	Recorder
	RecordRun(strategy, status string, durationSeconds float64)
}

type nopRunRecorder struct{ nopRecorder }

func (nopRunRecorder) RecordRun(string, string, float64) {}

// Runner loads prices, runs the engine, computes analytics and optionally
// persists the run.
type Runner struct {
	prices   storage.PriceStore
	runs     storage.RunStore
	logger   zerolog.Logger
	recorder RunRecorder
	now      func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunStore persists every completed run to rs.
func WithRunStore(rs storage.RunStore) RunnerOption {
	return func(r *Runner) {
		r.runs = rs
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger zerolog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRunRecorder records simulation and run metrics to rec.
func WithRunRecorder(rec RunRecorder) RunnerOption {
	return func(r *Runner) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithClock overrides the clock used for run creation times.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a new backtest runner reading from prices.
func NewRunner(prices storage.PriceStore, opts ...RunnerOption) *Runner {
	r := &Runner{
		prices:   prices,
		logger:   zerolog.Nop(),
		recorder: nopRunRecorder{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunReport is the outcome of one Runner.Run.
type RunReport struct {
	Run    *domain.Run
	Result *Result
	Report metrics.Report
}

// Run executes one backtest. Configuration errors and strategy errors are
// returned; unavailable price history is logged and yields an empty book.
func (r *Runner) Run(ctx context.Context, cfg domain.RunConfig, strategy Strategy, rm *risk.Manager) (*RunReport, error) {
	started := r.now()

	strategyID := cfg.StrategyID
	if strategyID == "" && strategy != nil {
		strategyID = strategy.Name()
	}
	log := r.logger.With().Str("strategy", strategyID).Logger()

	rep, err := r.run(ctx, log, strategyID, started, cfg, strategy, rm)
	status := RunStatusSuccess
	if err != nil {
		status = RunStatusFailed
	}
	r.recorder.RecordRun(strategyID, status, r.now().Sub(started).Seconds())
	return rep, err
}

func (r *Runner) run(
	ctx context.Context,
	log zerolog.Logger,
	strategyID string,
	started time.Time,
	cfg domain.RunConfig,
	strategy Strategy,
	rm *risk.Manager,
) (*RunReport, error) {
	engine, err := NewEngine(cfg, strategy, rm, WithLogger(log), WithRecorder(r.recorder))
	if err != nil {
		return nil, err
	}

	frame, err := r.loadFrame(ctx, log, cfg)
	if err != nil {
		return nil, err
	}

	res, err := engine.Run(ctx, frame)
	if err != nil {
		return nil, err
	}

	report := metrics.FromBook(res.Book, timeseries.PeriodsPerYear(frame.Dates()))

	// Microseconds survive every run store, so replays reproduce the ID
	created := started.UTC().Truncate(time.Microsecond)

	run := &domain.Run{
		RunID:                idhash.ComputeRunID(strategyID, cfg.ScenarioID, cfg.Start, cfg.End, created),
		StrategyID:           strategyID,
		ScenarioID:           cfg.ScenarioID,
		Start:                cfg.Start,
		End:                  cfg.End,
		Principal:            cfg.Principal,
		CreatedAt:            created,
		Book:                 res.Book,
		Performance:          report.Strategy,
		BenchmarkPerformance: report.Benchmark,
		Relative:             report.Relative,
	}
	log = log.With().Str("run_id", run.RunID).Logger()

	if r.runs != nil {
		if err := r.runs.Insert(ctx, run); err != nil {
			return nil, fmt.Errorf("persist run %s: %w", run.RunID, err)
		}
	}

	log.Info().
		Int("bars", len(res.Book)).
		Int("rebalances", report.Strategy.RebalanceCount).
		Float64("total_return", report.Strategy.TotalReturn).
		Float64("cagr", report.Strategy.CAGR).
		Float64("max_drawdown", report.Strategy.MaxDrawdown).
		Msg("backtest completed")

	return &RunReport{Run: run, Result: res, Report: report}, nil
}

// loadFrame reads the universe's prices and aligns them. Store failures other
// than cancellation degrade to an empty frame.
func (r *Runner) loadFrame(ctx context.Context, log zerolog.Logger, cfg domain.RunConfig) (*timeseries.Frame, error) {
	codes := cfg.Universe.Codes()

	points, err := r.prices.GetByTimeRange(ctx, codes, cfg.Start, cfg.End)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Warn().Err(err).Strs("codes", codes).Msg("price history unavailable")
		points = nil
	}

	seen := make(map[string]struct{}, len(codes))
	flat := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		seen[p.AssetCode] = struct{}{}
		flat = append(flat, *p)
	}
	for _, code := range codes {
		if _, ok := seen[code]; !ok {
			log.Warn().Str("asset", code).Msg("no price history for asset")
		}
	}

	return timeseries.Align(codes, flat, cfg.Start, cfg.End), nil
}
