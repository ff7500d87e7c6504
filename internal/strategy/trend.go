package strategy

import (
	"context"
	"fmt"
	"math"

	"investment-x/internal/backtest"
	"investment-x/internal/weights"
)

// TrendStrategy scores each asset by its distance above a simple moving
// average. Assets trading below their average get a negative score and are
// dropped by the default allocation.
type TrendStrategy struct {
	Lookback int // SMA window in bars

	sma map[string][]float64 // by asset name, aligned to the frame
}

// NewTrendStrategy creates a new TrendStrategy.
func NewTrendStrategy(lookback int) *TrendStrategy {
	return &TrendStrategy{Lookback: lookback}
}

// Name returns the strategy identifier including parameters.
func (s *TrendStrategy) Name() string {
	return fmt.Sprintf("TREND_%d", s.Lookback)
}

// Initialize precomputes the rolling average of every asset over the frame.
// Each value only uses bars up to its own index.
func (s *TrendStrategy) Initialize(ctx context.Context, env *backtest.Environment) error {
	s.sma = make(map[string][]float64, env.Universe.Len())
	n := env.Frame.Len()
	for _, name := range env.Universe.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		code, _ := env.Universe.CodeOf(name)
		if n == 0 || !env.Frame.Has(code) {
			continue
		}
		col, err := env.Frame.Window(code, n-1, n)
		if err != nil {
			return err
		}
		s.sma[name] = rollingMean(col, s.Lookback)
	}
	return nil
}

// GenerateSignals returns price/SMA - 1 per asset with a defined average.
func (s *TrendStrategy) GenerateSignals(env *backtest.Environment) (weights.Vector, error) {
	signals := make(weights.Vector)
	for _, name := range env.Universe.Names() {
		avg, ok := s.sma[name]
		if !ok || env.Index >= len(avg) || math.IsNaN(avg[env.Index]) {
			continue
		}
		price := env.Price(name)
		if !validPrice(price) {
			continue
		}
		signals[name] = price/avg[env.Index] - 1
	}
	return signals, nil
}
