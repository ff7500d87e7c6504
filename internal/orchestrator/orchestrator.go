// Package orchestrator runs a batch of backtests concurrently.
// Each run builds its own strategy and risk manager; a failing run is
// reported in its outcome and never stops the others.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"investment-x/internal/backtest"
	"investment-x/internal/domain"
	"investment-x/internal/risk"
	"investment-x/internal/storage"
	"investment-x/internal/strategy"
)

const defaultWorkers = 4

// Gauge tracks runs in flight.
type Gauge interface {
	Inc()
	Dec()
}

// Orchestrator coordinates batch execution.
type Orchestrator struct {
	runner   *backtest.Runner
	workers  int
	logger   zerolog.Logger
	inFlight Gauge
}

// Options for creating Orchestrator.
type Options struct {
	// Required
	PriceStore storage.PriceStore

	// Optional
	RunStore storage.RunStore    // persist completed runs
	Recorder backtest.RunRecorder
	InFlight Gauge
	Logger   *zerolog.Logger
	Clock    func() time.Time
	Workers  int // max concurrent runs, default 4
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	runnerOpts := []backtest.RunnerOption{backtest.WithRunnerLogger(logger)}
	if opts.RunStore != nil {
		runnerOpts = append(runnerOpts, backtest.WithRunStore(opts.RunStore))
	}
	if opts.Recorder != nil {
		runnerOpts = append(runnerOpts, backtest.WithRunRecorder(opts.Recorder))
	}
	if opts.Clock != nil {
		runnerOpts = append(runnerOpts, backtest.WithClock(opts.Clock))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}

	return &Orchestrator{
		runner:   backtest.NewRunner(opts.PriceStore, runnerOpts...),
		workers:  workers,
		logger:   logger,
		inFlight: opts.InFlight,
	}
}

// RunOutcome is the result of one configured run.
type RunOutcome struct {
	Index  int // position in the input batch
	Config domain.RunConfig
	Report *backtest.RunReport
	Err    error
}

// BatchResult contains outcomes in input order.
type BatchResult struct {
	Outcomes  []RunOutcome
	Succeeded int
	Failed    int
}

// Errors returns the failed outcomes formatted for display.
func (r *BatchResult) Errors() []string {
	var errs []string
	for _, o := range r.Outcomes {
		if o.Err != nil {
			errs = append(errs, fmt.Sprintf("run %d (%s): %v", o.Index, o.Config.StrategyID, o.Err))
		}
	}
	return errs
}

// Run executes every config with at most Workers runs in flight.
// Cancelling ctx stops scheduling; unscheduled runs carry ctx.Err() and the
// partial result is returned together with the context error.
func (o *Orchestrator) Run(ctx context.Context, configs []domain.RunConfig) (*BatchResult, error) {
	result := &BatchResult{Outcomes: make([]RunOutcome, len(configs))}
	for i, cfg := range configs {
		result.Outcomes[i] = RunOutcome{Index: i, Config: cfg}
	}

	o.logger.Info().Int("runs", len(configs)).Int("workers", o.workers).Msg("starting batch")

	var g errgroup.Group
	g.SetLimit(o.workers)

	for i := range configs {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(configs); j++ {
				result.Outcomes[j].Err = err
			}
			break
		}
		out := &result.Outcomes[i]
		g.Go(func() error {
			out.Report, out.Err = o.runOne(ctx, out.Config)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range result.Outcomes {
		if out.Err != nil {
			result.Failed++
			o.logger.Warn().Err(out.Err).Int("index", out.Index).Str("strategy", out.Config.StrategyID).Msg("run failed")
		} else {
			result.Succeeded++
		}
	}

	o.logger.Info().Int("succeeded", result.Succeeded).Int("failed", result.Failed).Msg("batch completed")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) runOne(ctx context.Context, cfg domain.RunConfig) (*backtest.RunReport, error) {
	if o.inFlight != nil {
		o.inFlight.Inc()
		defer o.inFlight.Dec()
	}

	strat, err := strategy.FromConfig(cfg.Strategy)
	if err != nil {
		return nil, fmt.Errorf("build strategy: %w", err)
	}
	rm, err := risk.NewManager(cfg.Risk)
	if err != nil {
		return nil, fmt.Errorf("build risk manager: %w", err)
	}
	return o.runner.Run(ctx, cfg, strat, rm)
}
