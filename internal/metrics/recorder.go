package metrics

import "time"

// Recorder provides methods for recording run metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordTrade records a terminal simulated trade.
func (r *Recorder) RecordTrade(symbol, side, status, rejectReason string) {
	TradesSimulated.WithLabelValues(symbol, side, status).Inc()
	if rejectReason != "" {
		TradesRejected.WithLabelValues(rejectReason).Inc()
	}
}

// RecordBar records a replayed bar.
func (r *Recorder) RecordBar(symbol string) {
	BarsProcessed.WithLabelValues(symbol).Inc()
}

// RecordRun records a completed run and its duration.
func (r *Recorder) RecordRun(elapsed time.Duration) {
	RunsTotal.Inc()
	RunDuration.Observe(elapsed.Seconds())
}
