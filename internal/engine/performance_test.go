package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/types"
)

func equityCurve(start time.Time, step time.Duration, values ...string) []types.EquityPoint {
	points := make([]types.EquityPoint, len(values))
	for i, v := range values {
		points[i] = types.EquityPoint{
			Timestamp: start.Add(time.Duration(i) * step),
			Equity:    decimal.RequireFromString(v),
		}
	}
	return points
}

func sellFill(pnl string) types.ExecutedTrade {
	return types.ExecutedTrade{
		Side:        types.SideSell,
		Status:      types.OrderStatusFilled,
		RealizedPnL: decimal.RequireFromString(pnl),
	}
}

func TestCalculate_EmptyInputs(t *testing.T) {
	m := NewCalculator(decimal.Zero).Calculate(nil, nil)

	for name, v := range map[string]decimal.Decimal{
		"TotalReturn":      m.TotalReturn,
		"AnnualizedReturn": m.AnnualizedReturn,
		"Volatility":       m.Volatility,
		"SharpeRatio":      m.SharpeRatio,
		"MaxDrawdown":      m.MaxDrawdown,
		"WinRate":          m.WinRate,
		"ProfitFactor":     m.ProfitFactor,
	} {
		if !v.IsZero() {
			t.Errorf("%s = %s, want 0", name, v)
		}
	}
}

func TestTotalReturn(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := equityCurve(start, 24*time.Hour, "100000", "105000", "110000")

	m := NewCalculator(decimal.Zero).Calculate(nil, curve)

	if !m.TotalReturn.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("TotalReturn = %s, want 0.1", m.TotalReturn)
	}
}

func TestAnnualizedReturn_ShortRunUnannualized(t *testing.T) {
	// Under a few days of history, compounding to a year is noise.
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := equityCurve(start, time.Hour, "100000", "101000")

	m := NewCalculator(decimal.Zero).Calculate(nil, curve)

	if !m.AnnualizedReturn.Equal(m.TotalReturn) {
		t.Errorf("AnnualizedReturn = %s, want TotalReturn %s", m.AnnualizedReturn, m.TotalReturn)
	}
}

func TestAnnualizedReturn_Compounds(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	// 10% over ~half a year annualizes above 10%.
	curve := []types.EquityPoint{
		{Timestamp: start, Equity: decimal.NewFromInt(100000)},
		{Timestamp: start.AddDate(0, 6, 0), Equity: decimal.NewFromInt(110000)},
	}

	m := NewCalculator(decimal.Zero).Calculate(nil, curve)

	if !m.AnnualizedReturn.GreaterThan(m.TotalReturn) {
		t.Errorf("AnnualizedReturn = %s should exceed TotalReturn %s", m.AnnualizedReturn, m.TotalReturn)
	}
}

func TestMaxDrawdown(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := equityCurve(start, 24*time.Hour, "100000", "120000", "90000", "110000")

	m := NewCalculator(decimal.Zero).Calculate(nil, curve)

	if !m.MaxDrawdown.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("MaxDrawdown = %s, want 0.25", m.MaxDrawdown)
	}
}

func TestMaxDrawdown_MonotonicCurveIsZero(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := equityCurve(start, 24*time.Hour, "100000", "101000", "102000")

	m := NewCalculator(decimal.Zero).Calculate(nil, curve)

	if !m.MaxDrawdown.IsZero() {
		t.Errorf("MaxDrawdown = %s, want 0", m.MaxDrawdown)
	}
}

func TestTradeStats(t *testing.T) {
	trades := []types.ExecutedTrade{
		sellFill("10"),
		sellFill("30"),
		sellFill("-20"),
		// Buys and rejections never count as closed positions.
		{Side: types.SideBuy, Status: types.OrderStatusFilled},
		{Side: types.SideSell, Status: types.OrderStatusRejected, RejectReason: "limit price not met"},
	}

	m := NewCalculator(decimal.Zero).Calculate(trades, nil)

	twoThirds := decimal.NewFromInt(2).Div(decimal.NewFromInt(3))
	if !m.WinRate.Equal(twoThirds) {
		t.Errorf("WinRate = %s, want %s", m.WinRate, twoThirds)
	}
	if !m.ProfitFactor.Equal(decimal.NewFromInt(2)) {
		t.Errorf("ProfitFactor = %s, want 2", m.ProfitFactor)
	}
}

func TestTradeStats_NoLosses(t *testing.T) {
	trades := []types.ExecutedTrade{sellFill("10"), sellFill("5")}

	m := NewCalculator(decimal.Zero).Calculate(trades, nil)

	if !m.WinRate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("WinRate = %s, want 1", m.WinRate)
	}
	// Profit factor is undefined without losses.
	if !m.ProfitFactor.IsZero() {
		t.Errorf("ProfitFactor = %s, want 0", m.ProfitFactor)
	}
}

func TestVolatilityAndSharpe(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := equityCurve(start, 24*time.Hour,
		"100000", "101000", "100500", "102000", "101500", "103000")

	m := NewCalculator(decimal.Zero).Calculate(nil, curve)

	if !m.Volatility.IsPositive() {
		t.Errorf("Volatility = %s, want > 0", m.Volatility)
	}
	// The curve trends up, so the zero-rate Sharpe is positive.
	if !m.SharpeRatio.IsPositive() {
		t.Errorf("SharpeRatio = %s, want > 0", m.SharpeRatio)
	}
}

func TestSharpe_FlatCurveIsZero(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := equityCurve(start, 24*time.Hour, "100000", "100000", "100000")

	m := NewCalculator(decimal.Zero).Calculate(nil, curve)

	if !m.SharpeRatio.IsZero() {
		t.Errorf("SharpeRatio = %s, want 0", m.SharpeRatio)
	}
	if !m.Volatility.IsZero() {
		t.Errorf("Volatility = %s, want 0", m.Volatility)
	}
}

func TestSharpe_RiskFreeRateReducesRatio(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	curve := equityCurve(start, 24*time.Hour,
		"100000", "101000", "100500", "102000", "101500", "103000")

	zeroRate := NewCalculator(decimal.Zero).Calculate(nil, curve)
	highRate := NewCalculator(decimal.RequireFromString("0.05")).Calculate(nil, curve)

	if !highRate.SharpeRatio.LessThan(zeroRate.SharpeRatio) {
		t.Errorf("Sharpe at 5%% rate (%s) should be below zero-rate Sharpe (%s)",
			highRate.SharpeRatio, zeroRate.SharpeRatio)
	}
}
