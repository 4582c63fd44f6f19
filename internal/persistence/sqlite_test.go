package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/engine"
	"github.com/marketsim/backtester/internal/types"
)

func openTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func sampleResult() *engine.Result {
	ts := time.Date(2024, 1, 2, 15, 30, 0, 0, time.UTC)

	return &engine.Result{
		Trades: []types.ExecutedTrade{
			{
				ID:            "trade-1",
				OrderID:       "order-1",
				Symbol:        "AAPL",
				Side:          types.SideBuy,
				Quantity:      decimal.NewFromInt(10),
				Price:         decimal.RequireFromString("150.25"),
				ExecutedPrice: decimal.RequireFromString("150.33"),
				Timestamp:     ts,
				Commission:    decimal.RequireFromString("1.5"),
				Slippage:      decimal.RequireFromString("0.08"),
				MarketImpact:  decimal.Zero,
				Status:        types.OrderStatusFilled,
				RealizedPnL:   decimal.Zero,
			},
			{
				ID:           "trade-2",
				OrderID:      "order-2",
				Symbol:       "AAPL",
				Side:         types.SideSell,
				Quantity:     decimal.NewFromInt(10),
				Price:        decimal.RequireFromString("155"),
				Timestamp:    ts.Add(24 * time.Hour),
				Status:       types.OrderStatusRejected,
				RejectReason: "no liquidity: zero volume bar",
				RealizedPnL:  decimal.Zero,
			},
		},
		EquityCurve: []types.EquityPoint{
			{Timestamp: ts, Equity: decimal.NewFromInt(100000)},
			{Timestamp: ts.Add(24 * time.Hour), Equity: decimal.RequireFromString("100047.5")},
		},
		Performance: types.PerformanceMetrics{
			TotalReturn: decimal.RequireFromString("0.000475"),
			MaxDrawdown: decimal.Zero,
		},
		Warnings: []string{"No market data available for backtesting"},
	}
}

func TestSaveResult_RoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	runID, err := repo.SaveResult(ctx, "sma-cross", []string{"AAPL"}, sampleResult())
	if err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	if runID == "" {
		t.Fatal("SaveResult returned empty run ID")
	}

	trades, err := repo.LoadTrades(ctx, runID)
	if err != nil {
		t.Fatalf("LoadTrades failed: %v", err)
	}
	if len(trades) != 2 {
		t.Fatalf("len(trades) = %d, want 2", len(trades))
	}

	first := trades[0]
	if first.ID != "trade-1" || first.Side != types.SideBuy {
		t.Errorf("first trade = %+v, want trade-1 BUY", first)
	}
	if !first.ExecutedPrice.Equal(decimal.RequireFromString("150.33")) {
		t.Errorf("ExecutedPrice = %s, want 150.33", first.ExecutedPrice)
	}
	if !first.Commission.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("Commission = %s, want 1.5", first.Commission)
	}

	second := trades[1]
	if second.Status != types.OrderStatusRejected {
		t.Errorf("second trade status = %v, want REJECTED", second.Status)
	}
	if second.RejectReason != "no liquidity: zero volume bar" {
		t.Errorf("RejectReason = %q", second.RejectReason)
	}

	equity, err := repo.LoadEquityCurve(ctx, runID)
	if err != nil {
		t.Fatalf("LoadEquityCurve failed: %v", err)
	}
	if len(equity) != 2 {
		t.Fatalf("len(equity) = %d, want 2", len(equity))
	}
	if !equity[1].Equity.Equal(decimal.RequireFromString("100047.5")) {
		t.Errorf("equity[1] = %s, want 100047.5", equity[1].Equity)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	if _, err := repo.SaveResult(ctx, "sma-cross", []string{"AAPL"}, sampleResult()); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	if _, err := repo.SaveResult(ctx, "sma-cross", []string{"AAPL", "MSFT"}, sampleResult()); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}

	runs, err := repo.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}

	for _, run := range runs {
		if run.Strategy != "sma-cross" {
			t.Errorf("Strategy = %q, want sma-cross", run.Strategy)
		}
		if run.NumTrades != 2 {
			t.Errorf("NumTrades = %d, want 2", run.NumTrades)
		}
		if run.NumWarns != 1 {
			t.Errorf("NumWarns = %d, want 1", run.NumWarns)
		}
	}
}

func TestLoadTrades_UnknownRun(t *testing.T) {
	repo := openTestRepo(t)

	trades, err := repo.LoadTrades(context.Background(), "no-such-run")
	if err != nil {
		t.Fatalf("LoadTrades failed: %v", err)
	}
	if len(trades) != 0 {
		t.Errorf("len(trades) = %d, want 0", len(trades))
	}
}
