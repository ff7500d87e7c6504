package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investment-x/internal/backtest"
	"investment-x/internal/domain"
	"investment-x/internal/risk"
	"investment-x/internal/storage"
	"investment-x/internal/strategy"
)

var (
	// ErrRunNotFound is returned when run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrConfigNotFound is returned when no configuration produced the run.
	ErrConfigNotFound = errors.New("no configuration matches run")
)

// ReplayVerifier re-runs persisted backtests from their configurations.
type ReplayVerifier struct {
	priceStore storage.PriceStore
	runStore   storage.RunStore
	configs    []domain.RunConfig
}

// NewReplayVerifier creates a new ReplayVerifier. configs are the run
// configurations the persisted runs may have been produced from.
func NewReplayVerifier(prices storage.PriceStore, runs storage.RunStore, configs []domain.RunConfig) *ReplayVerifier {
	return &ReplayVerifier{priceStore: prices, runStore: runs, configs: configs}
}

// VerifyRun verifies a single run by replaying it.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	stored, err := v.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	cfg, ok, err := v.configFor(stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, runID)
	}
	return v.verify(ctx, stored, cfg)
}

// VerifyAll verifies every persisted run of the configured strategies.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	report := &VerificationReport{}

	seen := make(map[string]struct{})
	for _, cfg := range v.configs {
		id, err := strategyID(cfg)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		runs, err := v.runStore.GetByStrategy(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load runs of %s: %w", id, err)
		}

		for _, stored := range runs {
			report.TotalRuns++
			match, ok, err := v.configFor(stored)
			if err != nil {
				return nil, err
			}
			if !ok {
				report.SkippedRuns++
				continue
			}

			res, err := v.verify(ctx, stored, match)
			if err != nil {
				return nil, fmt.Errorf("verify %s: %w", stored.RunID, err)
			}
			if res.Match {
				report.MatchedRuns++
			} else {
				report.DivergentRuns++
			}
			report.Results = append(report.Results, *res)
		}
	}

	return report, nil
}

func (v *ReplayVerifier) verify(ctx context.Context, stored *domain.Run, cfg domain.RunConfig) (*VerificationResult, error) {
	rep, err := v.replay(ctx, cfg, stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	divergences := CompareRuns(stored, rep.Run)
	return &VerificationResult{
		RunID:            stored.RunID,
		Match:            len(divergences) == 0,
		Divergences:      divergences,
		StoredEndValue:   stored.Performance.EndValue,
		ReplayedEndValue: rep.Run.Performance.EndValue,
	}, nil
}

// replay runs cfg without persisting. Running at the stored creation time
// reproduces the run ID.
func (v *ReplayVerifier) replay(ctx context.Context, cfg domain.RunConfig, created time.Time) (*backtest.RunReport, error) {
	strat, err := strategy.FromConfig(cfg.Strategy)
	if err != nil {
		return nil, err
	}
	rm, err := risk.NewManager(cfg.Risk)
	if err != nil {
		return nil, err
	}

	runner := backtest.NewRunner(v.priceStore, backtest.WithClock(func() time.Time { return created }))
	return runner.Run(ctx, cfg, strat, rm)
}

// configFor finds the configuration matching the run's strategy, scenario
// and date bounds.
func (v *ReplayVerifier) configFor(run *domain.Run) (domain.RunConfig, bool, error) {
	for _, cfg := range v.configs {
		id, err := strategyID(cfg)
		if err != nil {
			return domain.RunConfig{}, false, err
		}
		if id == run.StrategyID &&
			cfg.ScenarioID == run.ScenarioID &&
			domain.DateOnly(cfg.Start).Equal(domain.DateOnly(run.Start)) &&
			domain.DateOnly(cfg.End).Equal(domain.DateOnly(run.End)) {
			return cfg, true, nil
		}
	}
	return domain.RunConfig{}, false, nil
}

// strategyID resolves the identifier the runner records for cfg.
func strategyID(cfg domain.RunConfig) (string, error) {
	if cfg.StrategyID != "" {
		return cfg.StrategyID, nil
	}
	strat, err := strategy.FromConfig(cfg.Strategy)
	if err != nil {
		return "", err
	}
	return strat.Name(), nil
}
