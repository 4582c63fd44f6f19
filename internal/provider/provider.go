// Package provider adapts historical market data sources into the bar
// sequences the backtest engine consumes.
package provider

import (
	"context"
	"time"

	"github.com/marketsim/backtester/internal/types"
)

// DateRange bounds a historical data request. Zero values leave the
// corresponding side unbounded.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the range.
func (r DateRange) Contains(ts time.Time) bool {
	if !r.Start.IsZero() && ts.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && ts.After(r.End) {
		return false
	}
	return true
}

// Valid reports whether the range is well-formed.
func (r DateRange) Valid() bool {
	return r.Start.IsZero() || r.End.IsZero() || !r.End.Before(r.Start)
}

// HistoricalDataProvider supplies OHLCV bars for a symbol and date range,
// ordered ascending by timestamp. Provider failures are returned as
// errors and propagated by the engine; an empty slice is a valid result.
type HistoricalDataProvider interface {
	LoadHistoricalData(ctx context.Context, symbol string, r DateRange) ([]types.Bar, error)
}
