package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"investment-x/internal/backtest"
	"investment-x/internal/timeseries"
	"investment-x/internal/weights"
)

// MomentumStrategy ranks assets by trailing return and holds the top N
// with positive momentum in equal weight.
type MomentumStrategy struct {
	Lookback int // bars
	TopN     int
}

// NewMomentumStrategy creates a new MomentumStrategy.
func NewMomentumStrategy(lookback, topN int) *MomentumStrategy {
	return &MomentumStrategy{Lookback: lookback, TopN: topN}
}

// Name returns the strategy identifier including parameters.
func (s *MomentumStrategy) Name() string {
	return fmt.Sprintf("MOMENTUM_%d_%d", s.Lookback, s.TopN)
}

// Initialize is a no-op; momentum is computed from the window on each bar.
func (s *MomentumStrategy) Initialize(_ context.Context, _ *backtest.Environment) error {
	return nil
}

// GenerateSignals returns price[i]/price[i-Lookback] - 1 per asset.
// Assets without a full valid window get no signal.
func (s *MomentumStrategy) GenerateSignals(env *backtest.Environment) (weights.Vector, error) {
	signals := make(weights.Vector)
	for _, name := range env.Universe.Names() {
		window, err := env.History(name, s.Lookback+1)
		if errors.Is(err, timeseries.ErrUnknownCode) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if len(window) < s.Lookback+1 {
			continue
		}
		first, last := window[0], window[len(window)-1]
		if !validPrice(first) || !validPrice(last) {
			continue
		}
		signals[name] = last/first - 1
	}
	return signals, nil
}

// Allocate picks the TopN assets with strictly positive momentum, ties broken
// by name, and weights them equally. No positive momentum means all cash.
func (s *MomentumStrategy) Allocate(env *backtest.Environment) (weights.Vector, error) {
	signals, err := s.GenerateSignals(env)
	if err != nil {
		return nil, err
	}

	ranked := signals.Positive().Keys()
	sort.SliceStable(ranked, func(i, j int) bool {
		return signals[ranked[i]] > signals[ranked[j]]
	})
	if len(ranked) > s.TopN {
		ranked = ranked[:s.TopN]
	}

	target := make(weights.Vector, len(ranked))
	for _, name := range ranked {
		target[name] = 1.0 / float64(len(ranked))
	}
	return target, nil
}
