// Package indicator provides rolling technical indicator calculations.
package indicator

import "github.com/shopspring/decimal"

// SMA maintains a simple moving average over a fixed window.
type SMA struct {
	period int
	window []decimal.Decimal
	sum    decimal.Decimal
}

// NewSMA creates an SMA over the given period (minimum 1).
func NewSMA(period int) *SMA {
	if period < 1 {
		period = 1
	}
	return &SMA{
		period: period,
		window: make([]decimal.Decimal, 0, period),
	}
}

// Update pushes a value into the window and returns the current average,
// or zero while the window is still filling.
func (s *SMA) Update(value decimal.Decimal) decimal.Decimal {
	s.window = append(s.window, value)
	s.sum = s.sum.Add(value)

	if len(s.window) > s.period {
		s.sum = s.sum.Sub(s.window[0])
		s.window = s.window[1:]
	}

	return s.Value()
}

// Value returns the current average without consuming new data.
func (s *SMA) Value() decimal.Decimal {
	if len(s.window) < s.period {
		return decimal.Zero
	}
	return s.sum.Div(decimal.NewFromInt(int64(s.period)))
}

// Ready reports whether the window is full.
func (s *SMA) Ready() bool {
	return len(s.window) >= s.period
}

// Reset clears the window.
func (s *SMA) Reset() {
	s.window = s.window[:0]
	s.sum = decimal.Zero
}
