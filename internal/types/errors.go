package types

import "errors"

// Sentinel errors for the backtesting engine.
var (
	// Simulator errors (malformed input, not business rejections)
	ErrInvalidOrder      = errors.New("invalid order: quantity must be positive")
	ErrMissingMarketData = errors.New("missing market data")
	ErrMissingLimitPrice = errors.New("limit order requires a limit price")

	// Configuration errors
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrStrategyRequired = errors.New("strategy is required")

	// Data provider errors
	ErrDataUnavailable = errors.New("market data unavailable")
	ErrInvalidRange    = errors.New("invalid date range")
)
