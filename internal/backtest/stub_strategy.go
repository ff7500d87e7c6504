package backtest

import (
	"context"
	"time"

	"investment-x/internal/weights"
)

// StubStrategy emits the same signals on every rebalance.
// It records the dates it was asked for signals, for test verification.
type StubStrategy struct {
	signals     weights.Vector
	initialized bool
	calls       []time.Time
}

// NewStubStrategy creates a stub that always returns signals.
func NewStubStrategy(signals weights.Vector) *StubStrategy {
	return &StubStrategy{signals: signals.Clone()}
}

// Initialize marks the stub as initialized.
func (s *StubStrategy) Initialize(_ context.Context, _ *Environment) error {
	s.initialized = true
	return nil
}

// GenerateSignals returns the fixed signals.
func (s *StubStrategy) GenerateSignals(env *Environment) (weights.Vector, error) {
	s.calls = append(s.calls, env.Date)
	return s.signals.Clone(), nil
}

// Name returns the strategy identifier.
func (s *StubStrategy) Name() string {
	return "stub"
}

// Initialized reports whether Initialize was called.
func (s *StubStrategy) Initialized() bool {
	return s.initialized
}

// Calls returns the dates signals were generated on.
func (s *StubStrategy) Calls() []time.Time {
	return s.calls
}

// Ensure StubStrategy implements Strategy
var _ Strategy = (*StubStrategy)(nil)
