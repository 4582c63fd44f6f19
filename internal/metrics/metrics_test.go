package metrics

import (
	"testing"
	"time"
)

func TestRecorder_RecordTrade(t *testing.T) {
	r := NewRecorder()

	r.RecordTrade("AAPL", "BUY", "FILLED", "")
	r.RecordTrade("AAPL", "SELL", "REJECTED", "no liquidity: zero volume bar")
	r.RecordTrade("MSFT", "BUY", "FILLED", "")
}

func TestRecorder_RecordBar(t *testing.T) {
	r := NewRecorder()

	r.RecordBar("AAPL")
	r.RecordBar("AAPL")
	r.RecordBar("MSFT")
}

func TestRecorder_RecordRun(t *testing.T) {
	r := NewRecorder()

	r.RecordRun(250 * time.Millisecond)
}
