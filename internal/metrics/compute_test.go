package metrics

import (
	"math"
	"testing"
	"time"

	"investment-x/internal/domain"
)

func TestCompute_MonotonicPath(t *testing.T) {
	nav := []float64{100, 101, 103, 106, 110}

	perf := Compute(nav, 252, 0)

	if perf.MaxDrawdown != 0 {
		t.Errorf("expected MaxDrawdown 0, got %f", perf.MaxDrawdown)
	}
	if perf.WinRate != 1.0 {
		t.Errorf("expected WinRate 1.0, got %f", perf.WinRate)
	}
	if math.Abs(perf.TotalReturn-0.10) > 1e-12 {
		t.Errorf("expected TotalReturn 0.10, got %f", perf.TotalReturn)
	}
	if perf.Sortino != 0 {
		t.Errorf("expected Sortino 0 without negative returns, got %f", perf.Sortino)
	}
	if perf.Periods != 4 {
		t.Errorf("expected 4 periods, got %d", perf.Periods)
	}
}

func TestCompute_CAGRFromLogReturns(t *testing.T) {
	// 1% per month for 12 months compounds to 1.01^12 - 1
	nav := make([]float64, 13)
	nav[0] = 100
	for i := 1; i < len(nav); i++ {
		nav[i] = nav[i-1] * 1.01
	}

	perf := Compute(nav, 12, 0)

	want := math.Pow(1.01, 12) - 1
	if math.Abs(perf.CAGR-want) > 1e-9 {
		t.Errorf("expected CAGR %f, got %f", want, perf.CAGR)
	}
	if perf.Volatility > 1e-12 {
		t.Errorf("expected ~0 volatility for constant returns, got %g", perf.Volatility)
	}
	if perf.Sharpe != 0 && perf.Volatility == 0 {
		t.Errorf("expected Sharpe 0 when volatility is 0, got %f", perf.Sharpe)
	}
}

func TestCompute_VolatilityAndSharpe(t *testing.T) {
	nav := []float64{100, 110, 99, 108.9}

	perf := Compute(nav, 4, 0)

	logs := []float64{math.Log(1.1), math.Log(0.9), math.Log(1.1)}
	mean := (logs[0] + logs[1] + logs[2]) / 3
	ss := 0.0
	for _, l := range logs {
		ss += (l - mean) * (l - mean)
	}
	wantVol := math.Sqrt(ss/2) * 2
	wantCAGR := math.Exp(mean*4) - 1

	if math.Abs(perf.Volatility-wantVol) > 1e-12 {
		t.Errorf("expected volatility %f, got %f", wantVol, perf.Volatility)
	}
	if math.Abs(perf.CAGR-wantCAGR) > 1e-12 {
		t.Errorf("expected CAGR %f, got %f", wantCAGR, perf.CAGR)
	}
	if math.Abs(perf.Sharpe-wantCAGR/wantVol) > 1e-12 {
		t.Errorf("expected Sharpe %f, got %f", wantCAGR/wantVol, perf.Sharpe)
	}
	if math.Abs(perf.WinRate-2.0/3.0) > 1e-12 {
		t.Errorf("expected WinRate 2/3, got %f", perf.WinRate)
	}
}

func TestCompute_MaxDrawdown(t *testing.T) {
	nav := []float64{100, 120, 90, 130, 104}

	perf := Compute(nav, 252, 0)

	// Worst is 90/120 - 1 = -0.25; 104/130 - 1 = -0.2
	if math.Abs(perf.MaxDrawdown-(-0.25)) > 1e-12 {
		t.Errorf("expected MaxDrawdown -0.25, got %f", perf.MaxDrawdown)
	}
}

func TestComputeSortino(t *testing.T) {
	returns := []float64{0.02, -0.01, 0.03, -0.03}

	got := computeSortino(returns, 1, 0)

	mean := (0.02 - 0.01 + 0.03 - 0.03) / 4
	dmean := (-0.01 - 0.03) / 2
	dstd := math.Sqrt(((-0.01-dmean)*(-0.01-dmean) + (-0.03-dmean)*(-0.03-dmean)) / 1)
	want := mean / dstd
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected Sortino %f, got %f", want, got)
	}

	// A single negative return has no sample deviation
	if s := computeSortino([]float64{0.1, -0.05}, 1, 0); s != 0 {
		t.Errorf("expected 0 with one downside observation, got %f", s)
	}
}

func TestCompute_SortinoSingleDownsideIsZero(t *testing.T) {
	// Returns 0.10, -0.045, 0.143: one loss, so the downside deviation is undefined
	perf := Compute([]float64{100, 110, 105, 120}, 252, 0)

	if perf.Sortino != 0 {
		t.Errorf("expected Sortino 0 with one downside return, got %f", perf.Sortino)
	}
	if perf.Sharpe <= 0 {
		t.Errorf("expected positive Sharpe, got %f", perf.Sharpe)
	}
}

func TestCompute_DegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		nav  []float64
	}{
		{"empty", nil},
		{"single value", []float64{100}},
		{"zero start", []float64{0, 0, 0}},
		{"NaN values", []float64{math.NaN(), 100, math.NaN()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perf := Compute(tt.nav, 252, 0)
			for name, v := range map[string]float64{
				"CAGR":        perf.CAGR,
				"Volatility":  perf.Volatility,
				"Sharpe":      perf.Sharpe,
				"Sortino":     perf.Sortino,
				"MaxDrawdown": perf.MaxDrawdown,
				"WinRate":     perf.WinRate,
			} {
				if math.IsNaN(v) || math.IsInf(v, 0) {
					t.Errorf("%s is not finite: %v", name, v)
				}
			}
		})
	}
}

func TestFromBook_AggregatesTurnoverAndCosts(t *testing.T) {
	base := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	book := []domain.BookRecord{
		{Date: base, PortfolioValue: 10000, BenchmarkValue: 10000, Turnover: 1.0, TransactionCost: 10, Rebalanced: true},
		{Date: base.AddDate(0, 1, 0), PortfolioValue: 10100, BenchmarkValue: 10050},
		{Date: base.AddDate(0, 2, 0), PortfolioValue: 10200, BenchmarkValue: 10100, Turnover: 0.2, TransactionCost: 2, Rebalanced: true},
		{Date: base.AddDate(0, 3, 0), PortfolioValue: 10300, BenchmarkValue: 10150, Rebalanced: true},
	}

	report := FromBook(book, 12)

	if math.Abs(report.Strategy.TotalTurnover-1.2) > 1e-12 {
		t.Errorf("expected TotalTurnover 1.2, got %f", report.Strategy.TotalTurnover)
	}
	if report.Strategy.RebalanceCount != 2 {
		t.Errorf("expected 2 trading rebalances, got %d", report.Strategy.RebalanceCount)
	}
	if math.Abs(report.Strategy.AverageTurnover-0.6) > 1e-12 {
		t.Errorf("expected AverageTurnover 0.6, got %f", report.Strategy.AverageTurnover)
	}
	if report.Strategy.TotalTransactionCosts != 12 {
		t.Errorf("expected costs 12, got %f", report.Strategy.TotalTransactionCosts)
	}
	if report.Benchmark.TotalTurnover != 0 {
		t.Errorf("benchmark must not carry book aggregates, got %f", report.Benchmark.TotalTurnover)
	}
	if math.Abs(report.Benchmark.TotalReturn-0.015) > 1e-12 {
		t.Errorf("expected benchmark TotalReturn 0.015, got %f", report.Benchmark.TotalReturn)
	}
	if report.Relative.ActiveReturn <= 0 {
		t.Errorf("expected positive active return, got %f", report.Relative.ActiveReturn)
	}
}

func TestRelative_IdenticalPaths(t *testing.T) {
	nav := []float64{100, 105, 103, 108}

	rel := Relative(nav, nav, 252)

	if rel.ActiveReturn != 0 || rel.TrackingError != 0 || rel.InformationRatio != 0 {
		t.Errorf("expected zero relative stats, got %+v", rel)
	}
}
