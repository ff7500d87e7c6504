package strategy

import (
	"errors"
	"fmt"

	"investment-x/internal/backtest"
	"investment-x/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType = errors.New("unknown strategy type")
	ErrMissingLookback     = errors.New("MOMENTUM/TREND/INVERSE_VOLATILITY requires Lookback")
	ErrMissingTopN         = errors.New("MOMENTUM requires TopN")
	ErrInvalidLookback     = errors.New("lookback must be at least 1")
	ErrInvalidTopN         = errors.New("top_n must be at least 1")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates required parameters per strategy type.
func FromConfig(cfg domain.StrategyConfig) (backtest.Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeStaticWeight:
		return NewStaticWeightStrategy(), nil
	case domain.StrategyTypeMomentum:
		return fromMomentumConfig(cfg)
	case domain.StrategyTypeTrend:
		lookback, err := lookbackFrom(cfg)
		if err != nil {
			return nil, err
		}
		return NewTrendStrategy(lookback), nil
	case domain.StrategyTypeInverseVolatility:
		lookback, err := lookbackFrom(cfg)
		if err != nil {
			return nil, err
		}
		return NewInverseVolatilityStrategy(lookback), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategyType, cfg.StrategyType)
	}
}

// fromMomentumConfig creates MomentumStrategy from config.
func fromMomentumConfig(cfg domain.StrategyConfig) (*MomentumStrategy, error) {
	lookback, err := lookbackFrom(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.TopN == nil {
		return nil, ErrMissingTopN
	}
	if *cfg.TopN < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTopN, *cfg.TopN)
	}
	return NewMomentumStrategy(lookback, *cfg.TopN), nil
}

func lookbackFrom(cfg domain.StrategyConfig) (int, error) {
	if cfg.Lookback == nil {
		return 0, ErrMissingLookback
	}
	if *cfg.Lookback < 1 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLookback, *cfg.Lookback)
	}
	return *cfg.Lookback, nil
}
