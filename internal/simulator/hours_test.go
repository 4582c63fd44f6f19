package simulator

import (
	"testing"
	"time"
)

func TestCalendar_IsMarketOpen(t *testing.T) {
	cal, err := NewCalendar(DefaultHours())
	if err != nil {
		t.Fatalf("NewCalendar failed: %v", err)
	}

	ny, _ := time.LoadLocation("America/New_York")

	tests := []struct {
		name string
		t    time.Time
		open bool
	}{
		{"weekday mid-session", time.Date(2024, 1, 2, 10, 30, 0, 0, ny), true},
		{"weekday at open", time.Date(2024, 1, 2, 9, 30, 0, 0, ny), true},
		{"weekday before open", time.Date(2024, 1, 2, 9, 29, 0, 0, ny), false},
		{"weekday at close", time.Date(2024, 1, 2, 16, 0, 0, 0, ny), false},
		{"weekday after close", time.Date(2024, 1, 2, 18, 0, 0, 0, ny), false},
		{"saturday afternoon", time.Date(2024, 1, 6, 14, 30, 0, 0, ny), false},
		{"sunday morning", time.Date(2024, 1, 7, 10, 0, 0, 0, ny), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cal.IsMarketOpen(tt.t); got != tt.open {
				t.Errorf("IsMarketOpen(%s) = %v, want %v", tt.t, got, tt.open)
			}
		})
	}
}

func TestCalendar_TimezoneConversion(t *testing.T) {
	cal, err := NewCalendar(DefaultHours())
	if err != nil {
		t.Fatalf("NewCalendar failed: %v", err)
	}

	// 15:00 UTC on a winter Tuesday is 10:00 in New York: open.
	utc := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	if !cal.IsMarketOpen(utc) {
		t.Error("expected 15:00 UTC (10:00 ET) to be open")
	}

	// 22:00 UTC is 17:00 in New York: closed.
	late := time.Date(2024, 1, 2, 22, 0, 0, 0, time.UTC)
	if cal.IsMarketOpen(late) {
		t.Error("expected 22:00 UTC (17:00 ET) to be closed")
	}
}

func TestNewCalendar_InvalidInput(t *testing.T) {
	if _, err := NewCalendar(Hours{Start: "09:30", End: "16:00", Timezone: "Mars/Olympus"}); err == nil {
		t.Error("expected error for unknown timezone")
	}
	if _, err := NewCalendar(Hours{Start: "930", End: "16:00", Timezone: "UTC"}); err == nil {
		t.Error("expected error for malformed start time")
	}
}
