package engine

import (
	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/simulator"
	"github.com/marketsim/backtester/internal/types"
)

// costHeadroom leaves room for slippage, impact, and commission so a
// maximum-size buy cannot overdraw cash.
var costHeadroom = decimal.RequireFromString("1.02")

// sizer converts validated signals into orders. Buys commit a fixed
// fraction of available cash; sells close the whole position. Orders
// queued while the market is closed reserve their cash or shares until
// the queue drains, so consecutive closed-bar signals cannot commit the
// same position twice.
type sizer struct {
	positionPct  decimal.Decimal
	reservedCash decimal.Decimal
	reservedQty  decimal.Decimal
}

func newSizer(positionPct decimal.Decimal) *sizer {
	return &sizer{positionPct: positionPct}
}

// orderFor builds an order from a signal, or reports false when nothing
// tradeable results (no uncommitted cash or shares, HOLD).
func (s *sizer) orderFor(signal types.Signal, portfolio *types.Portfolio, bar types.Bar) (types.Order, bool) {
	switch signal.Type {
	case types.SignalBuy:
		if !bar.Close.IsPositive() {
			return types.Order{}, false
		}
		available := portfolio.Cash.Sub(s.reservedCash)
		if !available.IsPositive() {
			return types.Order{}, false
		}
		budget := available.Mul(s.positionPct)
		qty := budget.Div(bar.Close.Mul(costHeadroom)).Floor()
		if !qty.IsPositive() {
			return types.Order{}, false
		}
		return simulator.NewOrder(bar.Symbol, types.SideBuy, types.OrderTypeMarket,
			qty, decimal.Zero, bar.Timestamp), true

	case types.SignalSell:
		pos := portfolio.Position(bar.Symbol)
		available := pos.Quantity.Sub(s.reservedQty)
		if !available.IsPositive() {
			return types.Order{}, false
		}
		return simulator.NewOrder(bar.Symbol, types.SideSell, types.OrderTypeMarket,
			available, decimal.Zero, bar.Timestamp), true

	default:
		return types.Order{}, false
	}
}

// reserve marks an order's cash or shares as committed while it waits in
// the closed-market queue.
func (s *sizer) reserve(order types.Order, bar types.Bar) {
	if order.Side == types.SideBuy {
		s.reservedCash = s.reservedCash.Add(order.Quantity.Mul(bar.Close).Mul(costHeadroom))
		return
	}
	s.reservedQty = s.reservedQty.Add(order.Quantity)
}

// release clears all reservations once the queue has drained.
func (s *sizer) release() {
	s.reservedCash = decimal.Zero
	s.reservedQty = decimal.Zero
}
