// Package persistence stores completed backtest runs for later audit.
package persistence

import (
	"context"
	"time"

	"github.com/marketsim/backtester/internal/engine"
	"github.com/marketsim/backtester/internal/types"
)

// RunRecord identifies a stored backtest run.
type RunRecord struct {
	ID        string
	Strategy  string
	Symbols   []string
	CreatedAt time.Time
	NumTrades int
	NumErrors int
	NumWarns  int
}

// Repository stores and retrieves backtest results.
type Repository interface {
	// SaveResult stores a completed run and returns its ID.
	SaveResult(ctx context.Context, strategyName string, symbols []string, result *engine.Result) (string, error)

	// ListRuns returns stored run records, newest first.
	ListRuns(ctx context.Context) ([]RunRecord, error)

	// LoadTrades returns the trades of a stored run, in execution order.
	LoadTrades(ctx context.Context, runID string) ([]types.ExecutedTrade, error)

	// LoadEquityCurve returns the equity curve of a stored run.
	LoadEquityCurve(ctx context.Context, runID string) ([]types.EquityPoint, error)

	// Close releases the underlying store.
	Close() error
}
