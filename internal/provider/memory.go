package provider

import (
	"context"
	"sort"

	"github.com/marketsim/backtester/internal/types"
)

// MemoryProvider serves pre-loaded bars. Useful for tests and for
// embedding the engine in other programs.
type MemoryProvider struct {
	bars map[string][]types.Bar
	err  error
}

// NewMemoryProvider creates a provider over bars grouped by symbol.
func NewMemoryProvider(bars map[string][]types.Bar) *MemoryProvider {
	return &MemoryProvider{bars: bars}
}

// NewFailingProvider creates a provider whose loads always fail with err.
func NewFailingProvider(err error) *MemoryProvider {
	return &MemoryProvider{err: err}
}

// LoadHistoricalData implements HistoricalDataProvider.
func (p *MemoryProvider) LoadHistoricalData(ctx context.Context, symbol string, r DateRange) ([]types.Bar, error) {
	if p.err != nil {
		return nil, p.err
	}
	if !r.Valid() {
		return nil, types.ErrInvalidRange
	}

	var out []types.Bar
	for _, bar := range p.bars[symbol] {
		if r.Contains(bar.Timestamp) {
			out = append(out, bar)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out, nil
}

// Add appends bars for a symbol.
func (p *MemoryProvider) Add(symbol string, bars ...types.Bar) {
	if p.bars == nil {
		p.bars = make(map[string][]types.Bar)
	}
	p.bars[symbol] = append(p.bars[symbol], bars...)
}
