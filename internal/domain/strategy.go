package domain

// StrategyConfig represents strategy configuration parameters.
type StrategyConfig struct {
	StrategyType string // "STATIC_WEIGHT" | "MOMENTUM" | "TREND" | "INVERSE_VOLATILITY"

	// MOMENTUM, TREND, INVERSE_VOLATILITY parameters
	Lookback *int // bars

	// MOMENTUM parameters
	TopN *int
}

// Strategy type constants
const (
	StrategyTypeStaticWeight      = "STATIC_WEIGHT"
	StrategyTypeMomentum          = "MOMENTUM"
	StrategyTypeTrend             = "TREND"
	StrategyTypeInverseVolatility = "INVERSE_VOLATILITY"
)

// RiskConfig holds the risk constraints applied to every target allocation.
// All values are fractions in [0,1]; nil means unconstrained.
type RiskConfig struct {
	MaxPosition       *float64
	MaxSectorExposure *float64
	MinPosition       *float64
	MaxTurnover       *float64
}
