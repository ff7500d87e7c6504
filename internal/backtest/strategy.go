package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"investment-x/internal/domain"
	"investment-x/internal/timeseries"
	"investment-x/internal/weights"
)

// Strategy produces raw per-asset scores on rebalance dates.
type Strategy interface {
	// Name returns the strategy identifier.
	Name() string

	// Initialize is called once before the first bar, after prices are loaded.
	// Use it to precompute indicators over the frame.
	Initialize(ctx context.Context, env *Environment) error

	// GenerateSignals returns unbounded scores keyed by asset name.
	// Scores may be negative.
	GenerateSignals(env *Environment) (weights.Vector, error)
}

// Allocator is implemented by strategies that turn their own signals into
// target weights instead of using DefaultAllocation.
type Allocator interface {
	Allocate(env *Environment) (weights.Vector, error)
}

// DefaultAllocation keeps strictly positive signals and normalizes them to
// sum to 1. All-non-positive signals give an empty (all cash) allocation.
func DefaultAllocation(signals weights.Vector) weights.Vector {
	return signals.Positive().Normalize()
}

// allocate dispatches to the strategy's Allocator or the default.
func allocate(s Strategy, env *Environment) (weights.Vector, error) {
	if a, ok := s.(Allocator); ok {
		return a.Allocate(env)
	}
	signals, err := s.GenerateSignals(env)
	if err != nil {
		return nil, err
	}
	return DefaultAllocation(signals), nil
}

// Environment is the view of the market a strategy sees on one bar.
// It exposes no data after Index.
type Environment struct {
	Date     time.Time
	Index    int
	Universe domain.Universe
	Frame    *timeseries.Frame
}

// Price returns the price of the named asset on the current bar, NaN if
// unknown.
func (e *Environment) Price(name string) float64 {
	code, ok := e.Universe.CodeOf(name)
	if !ok {
		return math.NaN()
	}
	return e.Frame.Price(code, e.Index)
}

// History returns up to n prices of the named asset ending at the current bar.
func (e *Environment) History(name string, n int) ([]float64, error) {
	code, ok := e.Universe.CodeOf(name)
	if !ok {
		return nil, fmt.Errorf("asset %q: %w", name, timeseries.ErrUnknownCode)
	}
	return e.Frame.Window(code, e.Index, n)
}
