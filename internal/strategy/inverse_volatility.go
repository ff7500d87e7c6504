package strategy

import (
	"context"
	"errors"
	"fmt"

	"investment-x/internal/backtest"
	"investment-x/internal/timeseries"
	"investment-x/internal/weights"
)

// InverseVolatilityStrategy weights assets by 1/σ of their trailing returns.
type InverseVolatilityStrategy struct {
	Lookback int // returns in the volatility window
}

// NewInverseVolatilityStrategy creates a new InverseVolatilityStrategy.
func NewInverseVolatilityStrategy(lookback int) *InverseVolatilityStrategy {
	return &InverseVolatilityStrategy{Lookback: lookback}
}

// Name returns the strategy identifier including parameters.
func (s *InverseVolatilityStrategy) Name() string {
	return fmt.Sprintf("INVERSE_VOLATILITY_%d", s.Lookback)
}

// Initialize is a no-op.
func (s *InverseVolatilityStrategy) Initialize(_ context.Context, _ *backtest.Environment) error {
	return nil
}

// GenerateSignals returns 1/σ per asset. Assets with fewer than two returns
// or zero volatility get no signal.
func (s *InverseVolatilityStrategy) GenerateSignals(env *backtest.Environment) (weights.Vector, error) {
	signals := make(weights.Vector)
	for _, name := range env.Universe.Names() {
		window, err := env.History(name, s.Lookback+1)
		if errors.Is(err, timeseries.ErrUnknownCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sigma := sampleStddev(windowReturns(window))
		if !(sigma > 0) {
			continue
		}
		signals[name] = 1 / sigma
	}
	return signals, nil
}
