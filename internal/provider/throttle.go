package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/marketsim/backtester/internal/types"
)

// Throttled wraps a provider with a token-bucket rate limit. Remote data
// sources meter requests per minute; the limiter blocks until a token is
// available or the context is cancelled.
type Throttled struct {
	inner   HistoricalDataProvider
	limiter *rate.Limiter
}

// NewThrottled wraps inner, allowing perMinute loads per minute with a
// burst of one.
func NewThrottled(inner HistoricalDataProvider, perMinute int) *Throttled {
	if perMinute < 1 {
		perMinute = 1
	}
	return &Throttled{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1),
	}
}

// LoadHistoricalData implements HistoricalDataProvider.
func (t *Throttled) LoadHistoricalData(ctx context.Context, symbol string, r DateRange) ([]types.Bar, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.inner.LoadHistoricalData(ctx, symbol, r)
}
