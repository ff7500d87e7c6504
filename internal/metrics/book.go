package metrics

import (
	"investment-x/internal/domain"
)

// Report is the analytics output of one backtest book.
type Report struct {
	PeriodsPerYear float64
	Strategy       domain.Performance
	Benchmark      domain.Performance
	Relative       domain.RelativePerformance
}

// FromBook computes strategy and benchmark performance with identical
// formulas, plus turnover and cost aggregates taken from the book.
func FromBook(book []domain.BookRecord, periodsPerYear float64) Report {
	nav := make([]float64, len(book))
	bench := make([]float64, len(book))
	for i, rec := range book {
		nav[i] = rec.PortfolioValue
		bench[i] = rec.BenchmarkValue
	}

	strat := Compute(nav, periodsPerYear, 0)
	for _, rec := range book {
		strat.TotalTurnover += rec.Turnover
		strat.TotalTransactionCosts += rec.TransactionCost
		if rec.Turnover > 0 {
			strat.RebalanceCount++
		}
	}
	if strat.RebalanceCount > 0 {
		strat.AverageTurnover = strat.TotalTurnover / float64(strat.RebalanceCount)
	}

	benchPerf := Compute(bench, periodsPerYear, 0)

	return Report{
		PeriodsPerYear: periodsPerYear,
		Strategy:       strat,
		Benchmark:      benchPerf,
		Relative:       Relative(nav, bench, periodsPerYear),
	}
}

// Relative compares a strategy value path with its benchmark.
// Information ratio is 0 when tracking error is 0.
func Relative(strategy, benchmark []float64, periodsPerYear float64) domain.RelativePerformance {
	s := Compute(strategy, periodsPerYear, 0)
	b := Compute(benchmark, periodsPerYear, 0)

	rel := domain.RelativePerformance{ActiveReturn: s.CAGR - b.CAGR}
	rel.TrackingError = computeTrackingError(strategy, benchmark, periodsPerYear)
	if rel.TrackingError > 0 {
		rel.InformationRatio = rel.ActiveReturn / rel.TrackingError
	}
	return rel
}
