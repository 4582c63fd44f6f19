package engine

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/types"
)

// tradingDaysPerYear is the annualization basis for volatility and Sharpe.
const tradingDaysPerYear = 252

// Calculator derives performance statistics from executed trades and an
// equity curve. Degenerate inputs yield zero-valued metrics, never an
// error.
type Calculator struct {
	riskFreeRate decimal.Decimal // Annual, e.g. 0.05
}

// NewCalculator creates a calculator with the given annual risk-free rate.
func NewCalculator(riskFreeRate decimal.Decimal) *Calculator {
	return &Calculator{riskFreeRate: riskFreeRate}
}

// Calculate computes the full metrics set. Ratio statistics come from the
// equity curve's period returns; win rate and profit factor come from
// realized P&L on position-closing trades.
func (c *Calculator) Calculate(trades []types.ExecutedTrade, equity []types.EquityPoint) types.PerformanceMetrics {
	m := types.PerformanceMetrics{}

	returns := periodReturns(equity)

	m.TotalReturn = totalReturn(equity)
	m.AnnualizedReturn = annualizedReturn(equity, m.TotalReturn)
	m.Volatility = annualizedVolatility(returns)
	m.SharpeRatio = c.sharpe(returns)
	m.MaxDrawdown = maxDrawdown(equity)
	m.WinRate, m.ProfitFactor = tradeStats(trades)

	return m
}

func totalReturn(equity []types.EquityPoint) decimal.Decimal {
	if len(equity) < 2 {
		return decimal.Zero
	}
	first := equity[0].Equity
	last := equity[len(equity)-1].Equity
	if !first.IsPositive() {
		return decimal.Zero
	}
	return last.Sub(first).Div(first)
}

// annualizedReturn compounds the total return over the elapsed calendar
// time: (1 + total)^(365/days) - 1. Runs shorter than a few days are
// reported unannualized.
func annualizedReturn(equity []types.EquityPoint, total decimal.Decimal) decimal.Decimal {
	if len(equity) < 2 {
		return decimal.Zero
	}

	days := equity[len(equity)-1].Timestamp.Sub(equity[0].Timestamp).Hours() / 24
	years := days / 365
	if years < 0.01 {
		return total
	}

	annualized := math.Pow(1+total.InexactFloat64(), 1/years) - 1
	if math.IsNaN(annualized) || math.IsInf(annualized, 0) {
		return decimal.Zero
	}

	return decimal.NewFromFloat(annualized)
}

func annualizedVolatility(returns []decimal.Decimal) decimal.Decimal {
	sd := stddev(returns)
	if sd.IsZero() {
		return decimal.Zero
	}
	return sd.Mul(decimal.NewFromFloat(math.Sqrt(tradingDaysPerYear)))
}

// sharpe = (mean excess return / stddev) * sqrt(252).
func (c *Calculator) sharpe(returns []decimal.Decimal) decimal.Decimal {
	if len(returns) < 2 {
		return decimal.Zero
	}

	sd := stddev(returns)
	if sd.IsZero() {
		return decimal.Zero
	}

	dailyRf := c.riskFreeRate.Div(decimal.NewFromInt(tradingDaysPerYear))
	excess := mean(returns).Sub(dailyRf)

	return excess.Div(sd).Mul(decimal.NewFromFloat(math.Sqrt(tradingDaysPerYear)))
}

func maxDrawdown(equity []types.EquityPoint) decimal.Decimal {
	if len(equity) == 0 {
		return decimal.Zero
	}

	hwm := equity[0].Equity
	maxDD := decimal.Zero

	for _, point := range equity {
		if point.Equity.GreaterThan(hwm) {
			hwm = point.Equity
		}
		if hwm.IsPositive() {
			dd := hwm.Sub(point.Equity).Div(hwm)
			if dd.GreaterThan(maxDD) {
				maxDD = dd
			}
		}
	}

	return maxDD
}

// tradeStats classifies position-closing fills by realized P&L.
func tradeStats(trades []types.ExecutedTrade) (winRate, profitFactor decimal.Decimal) {
	var (
		closes      int
		wins        int
		grossProfit = decimal.Zero
		grossLoss   = decimal.Zero
	)

	for _, t := range trades {
		if !t.Filled() || t.Side != types.SideSell {
			continue
		}
		closes++
		if t.RealizedPnL.IsPositive() {
			wins++
			grossProfit = grossProfit.Add(t.RealizedPnL)
		} else if t.RealizedPnL.IsNegative() {
			grossLoss = grossLoss.Add(t.RealizedPnL.Abs())
		}
	}

	if closes > 0 {
		winRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(closes)))
	}
	if grossLoss.IsPositive() {
		profitFactor = grossProfit.Div(grossLoss)
	}

	return winRate, profitFactor
}

func periodReturns(equity []types.EquityPoint) []decimal.Decimal {
	if len(equity) < 2 {
		return nil
	}

	returns := make([]decimal.Decimal, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1].Equity
		if !prev.IsPositive() {
			continue
		}
		returns = append(returns, equity[i].Equity.Sub(prev).Div(prev))
	}

	return returns
}

func mean(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// stddev is the sample standard deviation, via float conversion for the
// square root.
func stddev(values []decimal.Decimal) decimal.Decimal {
	if len(values) < 2 {
		return decimal.Zero
	}

	m := mean(values)
	sumSquares := decimal.Zero
	for _, v := range values {
		diff := v.Sub(m)
		sumSquares = sumSquares.Add(diff.Mul(diff))
	}

	variance := sumSquares.Div(decimal.NewFromInt(int64(len(values) - 1))).InexactFloat64()
	if variance <= 0 {
		return decimal.Zero
	}

	return decimal.NewFromFloat(math.Sqrt(variance))
}
