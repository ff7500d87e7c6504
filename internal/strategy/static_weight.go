package strategy

import (
	"context"

	"investment-x/internal/backtest"
	"investment-x/internal/weights"
)

// StaticWeightStrategy holds the universe's static weights on every rebalance.
type StaticWeightStrategy struct {
	target weights.Vector
}

// NewStaticWeightStrategy creates a new StaticWeightStrategy.
func NewStaticWeightStrategy() *StaticWeightStrategy {
	return &StaticWeightStrategy{}
}

// Name returns the strategy identifier.
func (s *StaticWeightStrategy) Name() string {
	return "STATIC_WEIGHT"
}

// Initialize captures the universe's static weights.
func (s *StaticWeightStrategy) Initialize(_ context.Context, env *backtest.Environment) error {
	s.target = env.Universe.StaticWeights()
	return nil
}

// GenerateSignals returns the static weights unchanged.
func (s *StaticWeightStrategy) GenerateSignals(_ *backtest.Environment) (weights.Vector, error) {
	return s.target.Clone(), nil
}
