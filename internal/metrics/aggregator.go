package metrics

import (
	"context"
	"errors"
	"sort"

	"investment-x/internal/domain"
	"investment-x/internal/storage"
)

// ErrNoRuns is returned when a strategy has no persisted runs.
var ErrNoRuns = errors.New("no runs available for aggregation")

// ScenarioResult is the latest run of a strategy under one cost scenario.
type ScenarioResult struct {
	ScenarioID            string
	RunID                 string
	TotalReturn           float64
	CAGR                  float64
	Sharpe                float64
	MaxDrawdown           float64
	TotalTransactionCosts float64
	ActiveReturn          float64
}

// StrategySummary compares a strategy's persisted runs across scenarios.
type StrategySummary struct {
	StrategyID string
	RunCount   int
	Scenarios  []ScenarioResult // optimistic, realistic, pessimistic, degraded, then others by ID

	// CAGR lost between the optimistic and pessimistic scenarios.
	// nil unless both were run.
	CostDrag *float64
}

// Aggregator summarizes persisted runs.
type Aggregator struct {
	runStore storage.RunStore
}

// NewAggregator creates a new run aggregator.
func NewAggregator(runStore storage.RunStore) *Aggregator {
	return &Aggregator{runStore: runStore}
}

// Summarize loads every run of strategyID and keeps the latest run per
// scenario. Returns ErrNoRuns if the strategy has none.
func (a *Aggregator) Summarize(ctx context.Context, strategyID string) (*StrategySummary, error) {
	runs, err := a.runStore.GetByStrategy(ctx, strategyID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	// Runs are ordered by created_at, so later runs overwrite earlier ones
	latest := make(map[string]*domain.Run)
	for _, run := range runs {
		latest[run.ScenarioID] = run
	}

	summary := &StrategySummary{StrategyID: strategyID, RunCount: len(runs)}
	for _, run := range latest {
		summary.Scenarios = append(summary.Scenarios, ScenarioResult{
			ScenarioID:            run.ScenarioID,
			RunID:                 run.RunID,
			TotalReturn:           run.Performance.TotalReturn,
			CAGR:                  run.Performance.CAGR,
			Sharpe:                run.Performance.Sharpe,
			MaxDrawdown:           run.Performance.MaxDrawdown,
			TotalTransactionCosts: run.Performance.TotalTransactionCosts,
			ActiveReturn:          run.Relative.ActiveReturn,
		})
	}
	sort.Slice(summary.Scenarios, func(i, j int) bool {
		ri, rj := scenarioRank(summary.Scenarios[i].ScenarioID), scenarioRank(summary.Scenarios[j].ScenarioID)
		if ri != rj {
			return ri < rj
		}
		return summary.Scenarios[i].ScenarioID < summary.Scenarios[j].ScenarioID
	})

	setCostDrag(summary, latest)
	return summary, nil
}

// scenarioRank orders the preset scenarios from cheapest to most expensive.
func scenarioRank(id string) int {
	switch id {
	case domain.ScenarioOptimistic:
		return 0
	case domain.ScenarioRealistic:
		return 1
	case domain.ScenarioPessimistic:
		return 2
	case domain.ScenarioDegraded:
		return 3
	default:
		return 4
	}
}

func setCostDrag(summary *StrategySummary, latest map[string]*domain.Run) {
	opt, ok1 := latest[domain.ScenarioOptimistic]
	pess, ok2 := latest[domain.ScenarioPessimistic]
	if !ok1 || !ok2 {
		return
	}
	drag := opt.Performance.CAGR - pess.Performance.CAGR
	summary.CostDrag = &drag
}
