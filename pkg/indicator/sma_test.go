package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSMA_Update(t *testing.T) {
	sma := NewSMA(3)

	if !sma.Update(decimal.NewFromInt(10)).IsZero() {
		t.Error("expected zero before window fills")
	}
	if sma.Ready() {
		t.Error("Ready = true before window fills")
	}

	sma.Update(decimal.NewFromInt(20))
	got := sma.Update(decimal.NewFromInt(30))
	if !got.Equal(decimal.NewFromInt(20)) {
		t.Errorf("SMA = %s, want 20", got)
	}

	// Window slides: (20+30+40)/3 = 30
	got = sma.Update(decimal.NewFromInt(40))
	if !got.Equal(decimal.NewFromInt(30)) {
		t.Errorf("SMA = %s, want 30", got)
	}
}

func TestSMA_Reset(t *testing.T) {
	sma := NewSMA(2)
	sma.Update(decimal.NewFromInt(5))
	sma.Update(decimal.NewFromInt(15))
	sma.Reset()

	if sma.Ready() {
		t.Error("Ready = true after reset")
	}
	if !sma.Value().IsZero() {
		t.Errorf("Value = %s after reset, want 0", sma.Value())
	}
}

func TestSMA_MinimumPeriod(t *testing.T) {
	sma := NewSMA(0)
	got := sma.Update(decimal.NewFromInt(7))
	if !got.Equal(decimal.NewFromInt(7)) {
		t.Errorf("SMA = %s, want 7 for period clamped to 1", got)
	}
}
