// Package strategy holds the built-in allocation strategies run by the
// backtest engine.
package strategy

import (
	"investment-x/internal/backtest"
)

// Compile-time interface checks.
var (
	_ backtest.Strategy  = (*StaticWeightStrategy)(nil)
	_ backtest.Strategy  = (*MomentumStrategy)(nil)
	_ backtest.Allocator = (*MomentumStrategy)(nil)
	_ backtest.Strategy  = (*TrendStrategy)(nil)
	_ backtest.Strategy  = (*InverseVolatilityStrategy)(nil)
)
