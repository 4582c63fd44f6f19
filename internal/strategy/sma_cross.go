package strategy

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/types"
	"github.com/marketsim/backtester/pkg/indicator"
)

// SMACrossConfig holds configuration for the SMA crossover strategy.
type SMACrossConfig struct {
	FastPeriod int
	SlowPeriod int
}

// DefaultSMACrossConfig returns sensible defaults.
func DefaultSMACrossConfig() SMACrossConfig {
	return SMACrossConfig{
		FastPeriod: 10,
		SlowPeriod: 30,
	}
}

// SMACross signals BUY when the fast average crosses above the slow one
// and SELL on the cross back down. Bars before both windows fill produce
// HOLD.
type SMACross struct {
	cfg  SMACrossConfig
	fast *indicator.SMA
	slow *indicator.SMA

	wasAbove bool
	primed   bool
}

// NewSMACross creates a new SMA crossover strategy.
func NewSMACross(cfg SMACrossConfig) *SMACross {
	if cfg.FastPeriod >= cfg.SlowPeriod {
		cfg = DefaultSMACrossConfig()
	}
	return &SMACross{
		cfg:  cfg,
		fast: indicator.NewSMA(cfg.FastPeriod),
		slow: indicator.NewSMA(cfg.SlowPeriod),
	}
}

// Name identifies the strategy in logs.
func (s *SMACross) Name() string {
	return "sma-cross"
}

// Fork implements strategy.Forker: a fresh instance with the same
// periods and empty windows.
func (s *SMACross) Fork() Strategy {
	return NewSMACross(s.cfg)
}

// GenerateSignal implements Strategy.
func (s *SMACross) GenerateSignal(ctx context.Context, bar types.Bar) (types.Signal, error) {
	fast := s.fast.Update(bar.Close)
	slow := s.slow.Update(bar.Close)

	signal := types.Signal{
		Type:      types.SignalHold,
		Timestamp: bar.Timestamp,
		Symbol:    bar.Symbol,
		Price:     bar.Close,
	}

	if !s.fast.Ready() || !s.slow.Ready() {
		return signal, nil
	}

	above := fast.GreaterThan(slow)
	if !s.primed {
		// First full window establishes the baseline; no cross yet.
		s.primed = true
		s.wasAbove = above
		return signal, nil
	}

	switch {
	case above && !s.wasAbove:
		signal.Type = types.SignalBuy
		signal.Strength = crossStrength(fast, slow)
		signal.Confidence = signal.Strength
		signal.Reasoning = "fast SMA crossed above slow SMA"
	case !above && s.wasAbove:
		signal.Type = types.SignalSell
		signal.Strength = crossStrength(slow, fast)
		signal.Confidence = signal.Strength
		signal.Reasoning = "fast SMA crossed below slow SMA"
	}

	s.wasAbove = above

	return signal, nil
}

// ValidateSignal implements Strategy. HOLD signals and signals without a
// positive reference price are not actionable.
func (s *SMACross) ValidateSignal(signal types.Signal) bool {
	if signal.Type == types.SignalHold {
		return false
	}
	return signal.Price.IsPositive()
}

// Reset clears indicator state between runs.
func (s *SMACross) Reset() {
	s.fast.Reset()
	s.slow.Reset()
	s.primed = false
	s.wasAbove = false
}

// crossStrength maps the relative gap between the averages into a 0-1
// strength, saturating at 1.
func crossStrength(lead, lag decimal.Decimal) decimal.Decimal {
	if !lag.IsPositive() {
		return decimal.Zero
	}
	gap := lead.Sub(lag).Div(lag).Mul(decimal.NewFromInt(100))
	one := decimal.NewFromInt(1)
	if gap.GreaterThan(one) {
		return one
	}
	if gap.IsNegative() {
		return decimal.Zero
	}
	return gap
}
