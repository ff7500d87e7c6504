package domain

import (
	"time"

	"investment-x/internal/weights"
)

// RunConfig is the immutable configuration of one backtest run.
type RunConfig struct {
	StrategyID string // display identifier, defaults to the strategy name
	ScenarioID string // cost scenario the costs were taken from, may be empty
	Strategy   StrategyConfig

	Principal float64
	Universe  Universe
	Start     time.Time // inclusive, zero means unbounded
	End       time.Time // inclusive, zero means unbounded
	Frequency Frequency

	CommissionBps float64
	SlippageBps   float64
	Lag           int // bars between signal and execution

	Benchmark weights.Vector    // static benchmark weights by asset name, nil = universe weights
	Sectors   map[string]string // asset name -> sector label, nil = no sector caps
	Risk      RiskConfig
}

// BookRecord is the state of the simulated portfolio after one date.
// Per-asset maps are keyed by asset code.
type BookRecord struct {
	Date            time.Time
	PortfolioValue  float64
	Cash            float64
	Shares          map[string]float64
	Values          map[string]float64
	Weights         map[string]float64
	TargetWeights   map[string]float64 // latest post-constraint target
	BenchmarkValue  float64
	Turnover        float64
	TransactionCost float64
	Rebalanced      bool // a target was computed on this date
}

// Performance holds return/risk statistics for one value path.
type Performance struct {
	StartValue  float64
	EndValue    float64
	Periods     int // number of returns used
	TotalReturn float64
	CAGR        float64
	Volatility  float64
	Sharpe      float64
	Sortino     float64
	MaxDrawdown float64 // negative fraction, 0 when never below peak
	WinRate     float64

	// Book aggregates, zero for benchmark paths
	TotalTurnover         float64
	AverageTurnover       float64 // per rebalance that traded
	TotalTransactionCosts float64
	RebalanceCount        int
}

// RelativePerformance compares a strategy path to its benchmark.
type RelativePerformance struct {
	ActiveReturn     float64 // strategy CAGR - benchmark CAGR
	TrackingError    float64 // annualized stddev of return differences
	InformationRatio float64 // ActiveReturn / TrackingError, 0 if no tracking error
}

// Run is a completed backtest as persisted by a RunStore.
type Run struct {
	RunID      string
	StrategyID string
	ScenarioID string
	Start      time.Time
	End        time.Time
	Principal  float64
	CreatedAt  time.Time

	Book                 []BookRecord
	Performance          Performance
	BenchmarkPerformance Performance
	Relative             RelativePerformance
}
