package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marketsim/backtester/internal/provider"
	"github.com/marketsim/backtester/internal/types"
)

// faultyStrategy fails on every bar.
type faultyStrategy struct{}

func (faultyStrategy) GenerateSignal(context.Context, types.Bar) (types.Signal, error) {
	return types.Signal{}, errors.New("indicator not primed")
}

func (faultyStrategy) ValidateSignal(types.Signal) bool { return false }

// flakyProvider fails for one symbol and delegates the rest.
type flakyProvider struct {
	failSymbol string
	inner      provider.HistoricalDataProvider
}

func (p flakyProvider) LoadHistoricalData(ctx context.Context, symbol string, r provider.DateRange) ([]types.Bar, error) {
	if symbol == p.failSymbol {
		return nil, errors.New("upstream timeout")
	}
	return p.inner.LoadHistoricalData(ctx, symbol, r)
}

func TestRun_StrategyFailureIsRecordedAndRunContinues(t *testing.T) {
	bars := openBars("AAPL", "150", "152", "155")
	p := provider.NewMemoryProvider(map[string][]types.Bar{"AAPL": bars})
	e := New(p, nil, nil)

	cfg := testConfig(faultyStrategy{}, "AAPL")
	result, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Errors) != len(bars) {
		t.Fatalf("len(Errors) = %d, want %d (one per bar)", len(result.Errors), len(bars))
	}
	for _, msg := range result.Errors {
		if !strings.HasPrefix(msg, "Strategy execution failed:") {
			t.Errorf("error %q should carry the strategy-failure prefix", msg)
		}
	}

	// Every bar still marks the portfolio to market.
	if len(result.EquityCurve) != len(bars) {
		t.Errorf("len(EquityCurve) = %d, want %d", len(result.EquityCurve), len(bars))
	}
	if len(result.Trades) != 0 {
		t.Errorf("len(Trades) = %d, want 0", len(result.Trades))
	}
}

func TestRun_ProviderFailureIsRecorded(t *testing.T) {
	p := provider.NewFailingProvider(errors.New("connection refused"))
	e := New(p, nil, nil)

	cfg := testConfig(holdStrategy{}, "AAPL")
	result, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Errors) != 1 {
		t.Fatalf("len(Errors) = %d, want 1", len(result.Errors))
	}
	if !strings.Contains(result.Errors[0], "load historical data for AAPL") {
		t.Errorf("error %q should name the symbol and phase", result.Errors[0])
	}
	if len(result.Trades) != 0 || len(result.EquityCurve) != 0 {
		t.Error("a failed load should contribute no trades or equity points")
	}
}

func TestRun_ProviderFailureDoesNotAbortSiblings(t *testing.T) {
	good := provider.NewMemoryProvider(map[string][]types.Bar{
		"MSFT": openBars("MSFT", "300", "305"),
	})
	p := flakyProvider{failSymbol: "AAPL", inner: good}
	e := New(p, nil, nil)

	cfg := testConfig(holdStrategy{}, "AAPL", "MSFT")
	result, err := e.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "AAPL") {
		t.Errorf("Errors = %v, want one AAPL load failure", result.Errors)
	}
	// MSFT replays to completion despite the sibling failure.
	if len(result.EquityCurve) != 2 {
		t.Errorf("len(EquityCurve) = %d, want 2", len(result.EquityCurve))
	}
}

func TestRun_CancelledContextStopsReplay(t *testing.T) {
	bars := openBars("AAPL", "150", "152", "155")
	p := provider.NewMemoryProvider(map[string][]types.Bar{"AAPL": bars})
	e := New(p, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := e.Run(ctx, testConfig(holdStrategy{}, "AAPL"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	found := false
	for _, msg := range result.Errors {
		if strings.Contains(msg, "replay cancelled") {
			found = true
		}
	}
	if !found {
		t.Errorf("Errors = %v, want a cancellation entry", result.Errors)
	}
}
