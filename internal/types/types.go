// Package types defines shared types used across the backtesting engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents the direction of an order.
type Side int

const (
	SideBuy Side = iota
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the opposite side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType represents how an order is priced.
type OrderType int

const (
	OrderTypeMarket OrderType = iota
	OrderTypeLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeMarket:
		return "MARKET"
	case OrderTypeLimit:
		return "LIMIT"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus represents the state of an order.
type OrderStatus int

const (
	OrderStatusPending OrderStatus = iota
	OrderStatusQueued
	OrderStatusFilled
	OrderStatusRejected
)

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusQueued:
		return "QUEUED"
	case OrderStatusFilled:
		return "FILLED"
	case OrderStatusRejected:
		return "REJECTED"
	default:
		return "UNKNOWN"
	}
}

// IsFinal returns true if the order is in a terminal state.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusFilled || s == OrderStatusRejected
}

// Bar represents one OHLCV bar of market data for a symbol.
// Bars are immutable once produced by a data provider. A zero Volume
// is valid but degenerate: no trade can execute against it.
type Bar struct {
	Symbol    string
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	AdjClose  decimal.Decimal
	Volume    int64
}

// Order represents a request to trade a quantity of a symbol.
type Order struct {
	ID         string
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal // Required for limit orders
	Timestamp  time.Time
	Status     OrderStatus
}

// ExecutedTrade is the terminal record produced for every processed order.
// Status is FILLED or REJECTED; a rejection carries a reason, never an error.
type ExecutedTrade struct {
	ID            string
	OrderID       string
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	Price         decimal.Decimal // Reference price (bar close)
	ExecutedPrice decimal.Decimal // Fill price after slippage and impact
	Timestamp     time.Time
	Commission    decimal.Decimal
	Slippage      decimal.Decimal
	MarketImpact  decimal.Decimal
	Status        OrderStatus
	RejectReason  string
	RealizedPnL   decimal.Decimal // Set on fills that reduce an open position
}

// Filled returns true if the trade executed.
func (t ExecutedTrade) Filled() bool {
	return t.Status == OrderStatusFilled
}

// Position represents holdings in a single symbol.
type Position struct {
	Symbol      string
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
}

// MarketValue returns the position value at the given price.
func (p Position) MarketValue(price decimal.Decimal) decimal.Decimal {
	return p.Quantity.Mul(price)
}

// Portfolio holds cash and open positions for one backtest replay.
// It is exclusively owned by a single replay and mutated only on fills.
type Portfolio struct {
	Cash      decimal.Decimal
	Positions map[string]Position
}

// NewPortfolio creates a portfolio with the given starting cash.
func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:      cash,
		Positions: make(map[string]Position),
	}
}

// Position returns the position for a symbol, zero-valued if flat.
func (p *Portfolio) Position(symbol string) Position {
	if pos, ok := p.Positions[symbol]; ok {
		return pos
	}
	return Position{Symbol: symbol}
}

// Equity returns cash plus mark-to-market value of open positions.
func (p *Portfolio) Equity(prices map[string]decimal.Decimal) decimal.Decimal {
	equity := p.Cash
	for symbol, pos := range p.Positions {
		if price, ok := prices[symbol]; ok {
			equity = equity.Add(pos.MarketValue(price))
		}
	}
	return equity
}

// SignalType classifies a strategy signal.
type SignalType int

const (
	SignalHold SignalType = iota
	SignalBuy
	SignalSell
)

func (t SignalType) String() string {
	switch t {
	case SignalBuy:
		return "BUY"
	case SignalSell:
		return "SELL"
	default:
		return "HOLD"
	}
}

// Signal represents a trading signal produced by a strategy for one bar.
type Signal struct {
	Type       SignalType
	Strength   decimal.Decimal // 0-1
	Confidence decimal.Decimal // 0-1
	Timestamp  time.Time
	Symbol     string
	Price      decimal.Decimal
	Reasoning  string
	Metadata   map[string]string
}

// EquityPoint represents total portfolio value at a point in time.
type EquityPoint struct {
	Timestamp time.Time
	Equity    decimal.Decimal
}

// PerformanceMetrics holds return and risk statistics for a completed run.
type PerformanceMetrics struct {
	TotalReturn      decimal.Decimal // As ratio (0.15 = 15%)
	AnnualizedReturn decimal.Decimal
	Volatility       decimal.Decimal // Annualized stddev of period returns
	SharpeRatio      decimal.Decimal
	MaxDrawdown      decimal.Decimal // As ratio
	WinRate          decimal.Decimal // As ratio, from closed-position P&L
	ProfitFactor     decimal.Decimal // Gross profit / gross loss
}
