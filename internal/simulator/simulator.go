// Package simulator implements fill simulation for single orders against
// single bars of market data: slippage, market impact, commission, and
// market-hours queueing.
package simulator

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/types"
)

// Reject reasons recorded on REJECTED trades.
const (
	RejectNoLiquidity  = "no liquidity: zero volume bar"
	RejectLimitNotMet  = "limit price not met"
	RejectMarketClosed = "market did not reopen"
)

// impactCoefficient scales participation rate (quantity / bar volume) into
// a price fraction. impactCap bounds the fraction so oversized orders do
// not produce runaway prices.
var (
	impactCoefficient = decimal.RequireFromString("0.1")
	impactCap         = decimal.RequireFromString("0.01")
)

// Config holds simulation parameters. It is immutable per run and passed
// by value into every SimulateTrade call.
type Config struct {
	Commission    decimal.Decimal // Rate applied to quantity * executed price
	MinCommission decimal.Decimal // Floor; zero disables the floor
	Slippage      decimal.Decimal // Base slippage rate
	MarketImpact  bool            // Apply size-dependent impact
	MarketHours   Hours
}

// DefaultConfig returns sensible defaults for US equities.
func DefaultConfig() Config {
	return Config{
		Commission:    decimal.RequireFromString("0.001"),
		MinCommission: decimal.Zero,
		Slippage:      decimal.RequireFromString("0.0005"),
		MarketImpact:  true,
		MarketHours:   DefaultHours(),
	}
}

// Simulator executes orders against bars. SimulateTrade is stateless and
// safe for concurrent use; the order queue is the only mutable state and
// is guarded by a mutex.
type Simulator struct {
	mu    sync.Mutex
	queue []types.Order
}

// New creates a simulator with an empty order queue.
func New() *Simulator {
	return &Simulator{}
}

// SimulateTrade simulates a single order against a single bar and returns
// exactly one terminal ExecutedTrade. Business-rule failures (no
// liquidity, limit not met) come back as REJECTED trades; malformed input
// (non-positive quantity, nil bar) is an error.
func (s *Simulator) SimulateTrade(order types.Order, bar *types.Bar, cfg Config) (types.ExecutedTrade, error) {
	if !order.Quantity.IsPositive() {
		return types.ExecutedTrade{}, types.ErrInvalidOrder
	}
	if bar == nil {
		return types.ExecutedTrade{}, types.ErrMissingMarketData
	}
	if order.Type == types.OrderTypeLimit && !order.LimitPrice.IsPositive() {
		return types.ExecutedTrade{}, types.ErrMissingLimitPrice
	}

	trade := types.ExecutedTrade{
		ID:        uuid.New().String(),
		OrderID:   order.ID,
		Symbol:    order.Symbol,
		Side:      order.Side,
		Quantity:  order.Quantity,
		Price:     bar.Close,
		Timestamp: bar.Timestamp,
	}

	if bar.Volume == 0 {
		trade.Status = types.OrderStatusRejected
		trade.RejectReason = RejectNoLiquidity
		return trade, nil
	}

	slippage := slippageAmount(bar.Close, order.Quantity, bar.Volume, cfg.Slippage)

	impact := decimal.Zero
	if cfg.MarketImpact {
		impact = impactAmount(bar.Close, order.Quantity, bar.Volume)
	}

	executed := bar.Close
	if order.Side == types.SideBuy {
		executed = executed.Add(slippage).Add(impact)
	} else {
		executed = executed.Sub(slippage).Sub(impact)
	}

	if order.Type == types.OrderTypeLimit && !limitSatisfied(order, executed) {
		trade.Status = types.OrderStatusRejected
		trade.RejectReason = RejectLimitNotMet
		return trade, nil
	}

	trade.ExecutedPrice = executed
	trade.Slippage = slippage
	trade.MarketImpact = impact
	trade.Commission = commission(order.Quantity, executed, cfg.Commission, cfg.MinCommission)
	trade.Status = types.OrderStatusFilled

	return trade, nil
}

// QueueOrder appends an order to the FIFO queue for later execution on an
// open bar. Malformed orders are refused up front so draining the queue
// always yields terminal trades.
func (s *Simulator) QueueOrder(order types.Order) error {
	if !order.Quantity.IsPositive() {
		return types.ErrInvalidOrder
	}
	if order.Type == types.OrderTypeLimit && !order.LimitPrice.IsPositive() {
		return types.ErrMissingLimitPrice
	}

	order.Status = types.OrderStatusQueued

	s.mu.Lock()
	s.queue = append(s.queue, order)
	s.mu.Unlock()

	return nil
}

// ProcessQueuedOrders drains the queue in arrival order against the given
// bar, returning one terminal ExecutedTrade per queued order. The queue is
// empty afterward regardless of outcomes.
func (s *Simulator) ProcessQueuedOrders(bar *types.Bar, cfg Config) ([]types.ExecutedTrade, error) {
	if bar == nil {
		return nil, types.ErrMissingMarketData
	}

	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	trades := make([]types.ExecutedTrade, 0, len(pending))
	for _, order := range pending {
		trade, err := s.SimulateTrade(order, bar, cfg)
		if err != nil {
			// Queued orders were validated on entry; an error here means
			// the bar itself is unusable, which the nil check rules out.
			return trades, err
		}
		trades = append(trades, trade)
	}

	return trades, nil
}

// RejectQueued drains the queue without simulating, producing one
// terminal REJECTED trade per order. Used when the replay ends before
// the market reopens.
func (s *Simulator) RejectQueued() []types.ExecutedTrade {
	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	trades := make([]types.ExecutedTrade, 0, len(pending))
	for _, order := range pending {
		trades = append(trades, types.ExecutedTrade{
			ID:           uuid.New().String(),
			OrderID:      order.ID,
			Symbol:       order.Symbol,
			Side:         order.Side,
			Quantity:     order.Quantity,
			Timestamp:    order.Timestamp,
			Status:       types.OrderStatusRejected,
			RejectReason: RejectMarketClosed,
		})
	}

	return trades
}

// QueueLen returns the number of orders waiting in the queue.
func (s *Simulator) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Reset clears the order queue.
func (s *Simulator) Reset() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

// slippageAmount returns the absolute price concession for an order of the
// given size: base rate scaled up by participation, so larger orders
// against the same bar always pay strictly more.
func slippageAmount(price, quantity decimal.Decimal, volume int64, baseRate decimal.Decimal) decimal.Decimal {
	participation := quantity.Div(decimal.NewFromInt(volume))
	return price.Mul(baseRate).Mul(decimal.NewFromInt(1).Add(participation))
}

// impactAmount returns size-dependent price movement caused by the order
// itself. Linear in participation rate, capped at 1% of the reference
// price.
func impactAmount(price, quantity decimal.Decimal, volume int64) decimal.Decimal {
	participation := quantity.Div(decimal.NewFromInt(volume))
	fraction := impactCoefficient.Mul(participation)
	if fraction.GreaterThan(impactCap) {
		fraction = impactCap
	}
	return price.Mul(fraction)
}

// commission returns quantity * price * rate, floored at min when min is
// positive.
func commission(quantity, price, rate, min decimal.Decimal) decimal.Decimal {
	c := quantity.Mul(price).Mul(rate)
	if min.IsPositive() && c.LessThan(min) {
		return min
	}
	return c
}

// limitSatisfied reports whether the cost-adjusted execution price honors
// the order's limit: buys fill at or below the limit, sells at or above.
func limitSatisfied(order types.Order, executed decimal.Decimal) bool {
	if order.Side == types.SideBuy {
		return executed.LessThanOrEqual(order.LimitPrice)
	}
	return executed.GreaterThanOrEqual(order.LimitPrice)
}

// NewOrder builds a pending order with a fresh ID.
func NewOrder(symbol string, side types.Side, orderType types.OrderType, quantity, limitPrice decimal.Decimal, ts time.Time) types.Order {
	return types.Order{
		ID:         uuid.New().String(),
		Symbol:     symbol,
		Side:       side,
		Type:       orderType,
		Quantity:   quantity,
		LimitPrice: limitPrice,
		Timestamp:  ts,
		Status:     types.OrderStatusPending,
	}
}
