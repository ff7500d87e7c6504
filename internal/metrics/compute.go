// Package metrics derives return and risk statistics from value paths.
package metrics

import (
	"math"

	"investment-x/internal/domain"
)

// Compute calculates return/risk statistics for a value path.
// nav must be in chronological order. periodsPerYear annualizes CAGR and
// volatility; mar is the per-period minimum acceptable return for Sortino.
// Returns that are not finite (missing or non-positive values) are skipped.
func Compute(nav []float64, periodsPerYear, mar float64) domain.Performance {
	n := len(nav)
	if n == 0 {
		return domain.Performance{}
	}

	perf := domain.Performance{
		StartValue:  nav[0],
		EndValue:    nav[n-1],
		MaxDrawdown: computeMaxDrawdown(nav),
	}
	if nav[0] > 0 {
		perf.TotalReturn = nav[n-1]/nav[0] - 1
	}

	simple, logs := periodReturns(nav)
	perf.Periods = len(simple)
	if len(simple) == 0 {
		return perf
	}

	logMean := computeMean(logs)
	perf.CAGR = math.Exp(logMean*periodsPerYear) - 1
	perf.Volatility = computeStddev(logs, logMean) * math.Sqrt(periodsPerYear)
	if perf.Volatility > 0 {
		perf.Sharpe = perf.CAGR / perf.Volatility
	}
	perf.Sortino = computeSortino(simple, periodsPerYear, mar)
	perf.WinRate = computeWinRate(simple)

	return perf
}

// periodReturns returns simple and log returns between consecutive values,
// skipping pairs that do not give a finite return.
func periodReturns(nav []float64) (simple, logs []float64) {
	for i := 1; i < len(nav); i++ {
		prev, cur := nav[i-1], nav[i]
		if !(prev > 0) || !(cur > 0) || math.IsInf(prev, 0) || math.IsInf(cur, 0) {
			continue
		}
		simple = append(simple, cur/prev-1)
		logs = append(logs, math.Log(cur/prev))
	}
	return simple, logs
}

// computeSortino divides the mean excess return over mar by the annualized
// standard deviation of the negative excess returns.
// Returns 0 when there is no downside deviation: no negative excess returns,
// a single one (no sample deviation), or several identical ones.
func computeSortino(returns []float64, periodsPerYear, mar float64) float64 {
	excess := make([]float64, len(returns))
	var downside []float64
	for i, r := range returns {
		excess[i] = r - mar
		if excess[i] < 0 {
			downside = append(downside, excess[i])
		}
	}
	if len(downside) == 0 {
		return 0
	}

	dd := computeStddev(downside, computeMean(downside)) * math.Sqrt(periodsPerYear)
	if dd == 0 {
		return 0
	}
	return computeMean(excess) / dd
}

// computeWinRate returns the fraction of strictly positive returns.
func computeWinRate(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	wins := 0
	for _, r := range returns {
		if r > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(returns))
}

// computeMean calculates arithmetic mean.
func computeMean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(xs []float64, mean float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0 // Need at least 2 samples for sample stddev
	}
	sumSq := 0.0
	for _, x := range xs {
		diff := x - mean
		sumSq += diff * diff
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// computeMaxDrawdown returns min(value/running_max - 1) over the path.
// The result is 0 or negative. Non-positive values are ignored.
func computeMaxDrawdown(nav []float64) float64 {
	peak := 0.0
	maxDrawdown := 0.0

	for _, v := range nav {
		if !(v > 0) || math.IsInf(v, 0) {
			continue
		}
		if v > peak {
			peak = v
		}
		if dd := v/peak - 1; dd < maxDrawdown {
			maxDrawdown = dd
		}
	}
	return maxDrawdown
}

// computeTrackingError returns the annualized sample standard deviation of
// per-period return differences.
func computeTrackingError(strategy, benchmark []float64, periodsPerYear float64) float64 {
	var diffs []float64
	n := len(strategy)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	for i := 1; i < n; i++ {
		s0, s1 := strategy[i-1], strategy[i]
		b0, b1 := benchmark[i-1], benchmark[i]
		if !(s0 > 0) || !(b0 > 0) || math.IsNaN(s1) || math.IsNaN(b1) {
			continue
		}
		diffs = append(diffs, (s1/s0-1)-(b1/b0-1))
	}
	return computeStddev(diffs, computeMean(diffs)) * math.Sqrt(periodsPerYear)
}
