// Package metrics exposes prometheus instrumentation for backtest runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesSimulated counts terminal trades by symbol, side, and status.
	TradesSimulated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtester_trades_simulated_total",
		Help: "Terminal simulated trades by symbol, side, and status",
	}, []string{"symbol", "side", "status"})

	// TradesRejected counts rejections by reason.
	TradesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtester_trades_rejected_total",
		Help: "Rejected trades by reason",
	}, []string{"reason"})

	// BarsProcessed counts bars replayed by symbol.
	BarsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backtester_bars_processed_total",
		Help: "Market data bars replayed by symbol",
	}, []string{"symbol"})

	// RunsTotal counts completed backtest runs.
	RunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backtester_runs_total",
		Help: "Completed backtest runs",
	})

	// RunDuration observes wall-clock run duration in seconds.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "backtester_run_duration_seconds",
		Help:    "Backtest run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)
