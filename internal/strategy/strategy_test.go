package strategy

import (
	"context"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"investment-x/internal/backtest"
	"investment-x/internal/domain"
	"investment-x/internal/timeseries"
)

// testEnv builds an environment at bar i where each column name is both
// asset name and code.
func testEnv(t *testing.T, columns map[string][]float64, i int) *backtest.Environment {
	t.Helper()

	var n int
	names := make([]string, 0, len(columns))
	for name, col := range columns {
		names = append(names, name)
		n = len(col)
	}
	sort.Strings(names)

	dates := make([]time.Time, n)
	for k := range dates {
		dates[k] = time.Date(2024, 1, 1+k, 0, 0, 0, 0, time.UTC)
	}
	frame, err := timeseries.NewFrame(dates, columns)
	require.NoError(t, err)

	assets := make([]domain.Asset, len(names))
	for k, name := range names {
		assets[k] = domain.Asset{Name: name, Code: name}
	}
	u, err := domain.NewUniverse(assets)
	require.NoError(t, err)

	return &backtest.Environment{Date: dates[i], Index: i, Universe: u, Frame: frame}
}

func TestStaticWeightStrategy(t *testing.T) {
	env := testEnv(t, map[string][]float64{"A": {1, 2}, "B": {1, 2}}, 1)
	s := NewStaticWeightStrategy()
	require.NoError(t, s.Initialize(context.Background(), env))

	signals, err := s.GenerateSignals(env)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, signals["A"], 1e-12)
	assert.InDelta(t, 0.5, signals["B"], 1e-12)

	// Callers cannot mutate the held target
	signals["A"] = 9
	again, _ := s.GenerateSignals(env)
	assert.InDelta(t, 0.5, again["A"], 1e-12)
}

func TestMomentumStrategy_Signals(t *testing.T) {
	env := testEnv(t, map[string][]float64{
		"A": {100, 105, 110},
		"B": {100, 95, 90},
		"C": {math.NaN(), math.NaN(), 50},
	}, 2)

	s := NewMomentumStrategy(2, 2)
	signals, err := s.GenerateSignals(env)
	require.NoError(t, err)

	assert.InDelta(t, 0.10, signals["A"], 1e-12)
	assert.InDelta(t, -0.10, signals["B"], 1e-12)
	_, ok := signals["C"]
	assert.False(t, ok, "asset without a full window has no signal")
}

func TestMomentumStrategy_AllocateTopN(t *testing.T) {
	env := testEnv(t, map[string][]float64{
		"A": {100, 130},
		"B": {100, 120},
		"C": {100, 110},
		"D": {100, 90},
	}, 1)

	s := NewMomentumStrategy(1, 2)
	target, err := s.Allocate(env)
	require.NoError(t, err)

	require.Len(t, target, 2)
	assert.InDelta(t, 0.5, target["A"], 1e-12)
	assert.InDelta(t, 0.5, target["B"], 1e-12)
}

func TestMomentumStrategy_AllocateNoPositiveMomentum(t *testing.T) {
	env := testEnv(t, map[string][]float64{"A": {100, 90}, "B": {100, 100}}, 1)

	target, err := NewMomentumStrategy(1, 3).Allocate(env)
	require.NoError(t, err)
	assert.Empty(t, target)
}

func TestMomentumStrategy_TiesBrokenByName(t *testing.T) {
	env := testEnv(t, map[string][]float64{"B": {100, 110}, "A": {100, 110}}, 1)

	target, err := NewMomentumStrategy(1, 1).Allocate(env)
	require.NoError(t, err)
	assert.Equal(t, 1.0, target["A"])
}

func TestTrendStrategy(t *testing.T) {
	env := testEnv(t, map[string][]float64{
		"A": {10, 20, 30, 40},
		"B": {40, 30, 20, 10},
	}, 0)

	s := NewTrendStrategy(2)
	require.NoError(t, s.Initialize(context.Background(), env))

	// Bar 0: no full window yet
	signals, err := s.GenerateSignals(env)
	require.NoError(t, err)
	assert.Empty(t, signals)

	env.Index, env.Date = 3, env.Frame.Date(3)
	signals, err = s.GenerateSignals(env)
	require.NoError(t, err)
	assert.InDelta(t, 40.0/35-1, signals["A"], 1e-12)
	assert.InDelta(t, 10.0/15-1, signals["B"], 1e-12)

	// Default allocation keeps only the asset above its average
	target := backtest.DefaultAllocation(signals)
	assert.Equal(t, 1.0, target["A"])
	assert.Zero(t, target["B"])
}

func TestTrendStrategy_NoLookahead(t *testing.T) {
	short := testEnv(t, map[string][]float64{"A": {10, 20, 30}}, 2)
	long := testEnv(t, map[string][]float64{"A": {10, 20, 30, 1000, 5}}, 2)

	s1, s2 := NewTrendStrategy(2), NewTrendStrategy(2)
	require.NoError(t, s1.Initialize(context.Background(), short))
	require.NoError(t, s2.Initialize(context.Background(), long))

	a, _ := s1.GenerateSignals(short)
	b, _ := s2.GenerateSignals(long)
	assert.Equal(t, a, b)
}

func TestInverseVolatilityStrategy(t *testing.T) {
	env := testEnv(t, map[string][]float64{
		"A": {100, 101, 100, 101, 100},
		"B": {100, 110, 100, 110, 100},
		"C": {100, 100, 100, 100, 100},
	}, 4)

	s := NewInverseVolatilityStrategy(4)
	signals, err := s.GenerateSignals(env)
	require.NoError(t, err)

	require.Contains(t, signals, "A")
	require.Contains(t, signals, "B")
	assert.Greater(t, signals["A"], signals["B"], "calmer asset gets the larger score")
	_, ok := signals["C"]
	assert.False(t, ok, "zero volatility has no signal")

	target := backtest.DefaultAllocation(signals)
	assert.InDelta(t, 1.0, target["A"]+target["B"], 1e-12)
}

func TestRollingMean(t *testing.T) {
	got := rollingMean([]float64{1, 2, math.NaN(), 4, 5, 6}, 2)

	assert.True(t, math.IsNaN(got[0]))
	assert.InDelta(t, 1.5, got[1], 1e-12)
	assert.True(t, math.IsNaN(got[2]))
	assert.True(t, math.IsNaN(got[3]))
	assert.InDelta(t, 4.5, got[4], 1e-12)
	assert.InDelta(t, 5.5, got[5], 1e-12)
}

func TestWindowReturns(t *testing.T) {
	got := windowReturns([]float64{math.NaN(), 100, 110, math.NaN(), 99})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, -0.1, got[1], 1e-12)
}
