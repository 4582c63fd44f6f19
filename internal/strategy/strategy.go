// Package strategy defines the trading strategy contract consumed by the
// backtest engine, plus builtin implementations.
package strategy

import (
	"context"

	"github.com/marketsim/backtester/internal/types"
)

// Strategy turns one bar of market data into a trading signal. Any
// implementation of these two operations is accepted by the engine;
// conformance is checked once at run start, not per bar.
type Strategy interface {
	// GenerateSignal produces a signal for the given bar. Returning an
	// error marks the bar as failed without aborting the run.
	GenerateSignal(ctx context.Context, bar types.Bar) (types.Signal, error)

	// ValidateSignal reports whether a generated signal should be acted
	// on. The engine only builds orders for signals that pass.
	ValidateSignal(signal types.Signal) bool
}

// Namer is an optional capability for strategies that identify
// themselves; the engine uses it for logging only.
type Namer interface {
	Name() string
}

// Forker is an optional capability for stateful strategies. Fork returns
// a fresh instance with the same configuration and no accumulated
// indicator state. The engine forks once per symbol so parallel replays
// never share mutable state and no window sees bars from two symbols.
type Forker interface {
	Fork() Strategy
}

// ForkOf returns a fresh instance for strategies that support it, or s
// itself. Strategies that do not implement Forker must be stateless.
func ForkOf(s Strategy) Strategy {
	if f, ok := s.(Forker); ok {
		return f.Fork()
	}
	return s
}

// NameOf returns the strategy's name, or a fallback for anonymous ones.
func NameOf(s Strategy) string {
	if n, ok := s.(Namer); ok {
		return n.Name()
	}
	return "anonymous"
}
