// Package engine orchestrates backtest runs: it replays historical bars
// through a strategy, drives the trade simulator, tracks portfolio state,
// and derives performance statistics.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/metrics"
	"github.com/marketsim/backtester/internal/provider"
	"github.com/marketsim/backtester/internal/simulator"
	"github.com/marketsim/backtester/internal/strategy"
	"github.com/marketsim/backtester/internal/types"
)

// WarnNoMarketData is recorded when a symbol's history is empty.
const WarnNoMarketData = "No market data available for backtesting"

// Config holds the full parameters of one backtest run.
type Config struct {
	// Strategy drives signal generation. Stateful strategies should
	// implement strategy.Forker; each symbol then replays against its
	// own fork instead of sharing one instance across goroutines.
	Strategy       strategy.Strategy
	Symbols        []string
	Start          time.Time
	End            time.Time
	InitialCapital decimal.Decimal
	Commission     decimal.Decimal // Rate, e.g. 0.001
	MinCommission  decimal.Decimal
	Slippage       decimal.Decimal // Base rate, e.g. 0.0005
	MarketImpact   bool
	MarketHours    simulator.Hours
	PositionPct    decimal.Decimal // Fraction of cash committed per buy
}

// Validate checks the run parameters. Violations are hard errors; the run
// never starts.
func (c *Config) Validate() error {
	if !c.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: initial capital must be positive", types.ErrInvalidConfig)
	}
	if c.Strategy == nil {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, types.ErrStrategyRequired)
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: at least one symbol is required", types.ErrInvalidConfig)
	}
	if !c.Start.IsZero() && !c.End.IsZero() && c.End.Before(c.Start) {
		return fmt.Errorf("%w: end date before start date", types.ErrInvalidConfig)
	}
	if c.PositionPct.IsNegative() || c.PositionPct.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: position pct must be in (0, 1]", types.ErrInvalidConfig)
	}
	return nil
}

// simulationConfig derives the per-trade simulation parameters.
func (c *Config) simulationConfig() simulator.Config {
	hours := c.MarketHours
	if hours.Timezone == "" {
		hours = simulator.DefaultHours()
	}
	return simulator.Config{
		Commission:    c.Commission,
		MinCommission: c.MinCommission,
		Slippage:      c.Slippage,
		MarketImpact:  c.MarketImpact,
		MarketHours:   hours,
	}
}

// positionPct returns the configured sizing fraction or the default.
func (c *Config) positionPct() decimal.Decimal {
	if c.PositionPct.IsPositive() {
		return c.PositionPct
	}
	return decimal.RequireFromString("0.1")
}

// Result is the sole output surface of a run. It is always fully
// constructed once the run starts; Errors and Warnings distinguish a
// degraded run from total success.
type Result struct {
	Trades      []types.ExecutedTrade
	Performance types.PerformanceMetrics
	EquityCurve []types.EquityPoint
	Warnings    []string
	Errors      []string
}

// ValidationResult reports strategy conformance.
type ValidationResult struct {
	IsValid bool
	Errors  []string
}

// Engine runs backtests against a historical data provider.
type Engine struct {
	provider provider.HistoricalDataProvider
	logger   *slog.Logger
	recorder *metrics.Recorder
}

// New creates an engine. Logger may be nil; recorder may be nil to
// disable instrumentation.
func New(p provider.HistoricalDataProvider, logger *slog.Logger, recorder *metrics.Recorder) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: p,
		logger:   logger,
		recorder: recorder,
	}
}

// ValidateStrategy checks that a strategy satisfies the signal-generation
// and signal-validation capabilities before a run starts. A typed-nil
// concrete value is as unusable as a nil interface and fails the same
// way instead of panicking on the first bar.
func (e *Engine) ValidateStrategy(s strategy.Strategy) ValidationResult {
	var errs []string
	if isNilStrategy(s) {
		errs = append(errs, "strategy does not implement GenerateSignal and ValidateSignal")
	}
	return ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func isNilStrategy(s strategy.Strategy) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Func, reflect.Chan, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// LoadHistoricalData fetches bars for one symbol, ordered ascending by
// timestamp. Provider failures are propagated, not swallowed.
func (e *Engine) LoadHistoricalData(ctx context.Context, symbol string, r provider.DateRange) ([]types.Bar, error) {
	bars, err := e.provider.LoadHistoricalData(ctx, symbol, r)
	if err != nil {
		return nil, fmt.Errorf("load historical data for %s: %w", symbol, err)
	}
	return bars, nil
}

// Run executes a full backtest and always returns a Result once the
// configuration and strategy pass validation.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if vr := e.ValidateStrategy(cfg.Strategy); !vr.IsValid {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidConfig, vr.Errors[0])
	}

	calendar, err := simulator.NewCalendar(cfg.simulationConfig().MarketHours)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidConfig, err)
	}

	e.logger.Info("starting backtest",
		"strategy", strategy.NameOf(cfg.Strategy),
		"symbols", cfg.Symbols,
		"initial_capital", cfg.InitialCapital,
	)
	started := time.Now()

	// Each symbol replays over its own slice of the capital so parallel
	// replays never share portfolio state.
	perSymbolCapital := cfg.InitialCapital.Div(decimal.NewFromInt(int64(len(cfg.Symbols))))
	dateRange := provider.DateRange{Start: cfg.Start, End: cfg.End}

	replays := make([]*replayResult, len(cfg.Symbols))

	var wg sync.WaitGroup
	for i, symbol := range cfg.Symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			replays[i] = e.runSymbol(ctx, cfg, calendar, symbol, dateRange, perSymbolCapital)
		}(i, symbol)
	}
	wg.Wait()

	result := &Result{}
	for _, r := range replays {
		result.Trades = append(result.Trades, r.trades...)
		result.EquityCurve = append(result.EquityCurve, r.equity...)
		result.Warnings = append(result.Warnings, r.warnings...)
		result.Errors = append(result.Errors, r.errors...)
	}

	sort.SliceStable(result.Trades, func(i, j int) bool {
		return result.Trades[i].Timestamp.Before(result.Trades[j].Timestamp)
	})
	sort.SliceStable(result.EquityCurve, func(i, j int) bool {
		return result.EquityCurve[i].Timestamp.Before(result.EquityCurve[j].Timestamp)
	})

	// The concatenated curve juxtaposes per-symbol capital slices, so
	// ratio statistics come from the total-portfolio curve instead.
	result.Performance = NewCalculator(decimal.Zero).Calculate(result.Trades, aggregateEquity(replays, perSymbolCapital))

	if e.recorder != nil {
		e.recorder.RecordRun(time.Since(started))
	}
	e.logger.Info("backtest complete",
		"trades", len(result.Trades),
		"errors", len(result.Errors),
		"warnings", len(result.Warnings),
		"elapsed", time.Since(started),
	)

	return result, nil
}

// aggregateEquity merges per-symbol equity curves into one total
// portfolio curve. At each observed timestamp every symbol contributes
// its most recent value, starting from its capital slice, so diverging
// slices never register as portfolio-level moves.
func aggregateEquity(replays []*replayResult, sliceCapital decimal.Decimal) []types.EquityPoint {
	curves := make([][]types.EquityPoint, 0, len(replays))
	var stamps []time.Time
	for _, r := range replays {
		curves = append(curves, r.equity)
		for _, p := range r.equity {
			stamps = append(stamps, p.Timestamp)
		}
	}
	if len(stamps) == 0 {
		return nil
	}

	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	unique := stamps[:1]
	for _, ts := range stamps[1:] {
		if !ts.Equal(unique[len(unique)-1]) {
			unique = append(unique, ts)
		}
	}

	idx := make([]int, len(curves))
	last := make([]decimal.Decimal, len(curves))
	for i := range last {
		last[i] = sliceCapital
	}

	total := make([]types.EquityPoint, 0, len(unique))
	for _, ts := range unique {
		sum := decimal.Zero
		for i, curve := range curves {
			for idx[i] < len(curve) && !curve[idx[i]].Timestamp.After(ts) {
				last[i] = curve[idx[i]].Equity
				idx[i]++
			}
			sum = sum.Add(last[i])
		}
		total = append(total, types.EquityPoint{Timestamp: ts, Equity: sum})
	}

	return total
}

// ExecuteStrategy replays a prepared bar sequence for one symbol with a
// fresh portfolio and returns the executed trades. The bars must belong
// to a single symbol.
func (e *Engine) ExecuteStrategy(ctx context.Context, strat strategy.Strategy, bars []types.Bar, cfg Config) ([]types.ExecutedTrade, error) {
	if vr := e.ValidateStrategy(strat); !vr.IsValid {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidConfig, vr.Errors[0])
	}
	calendar, err := simulator.NewCalendar(cfg.simulationConfig().MarketHours)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrInvalidConfig, err)
	}

	capital := cfg.InitialCapital
	if !capital.IsPositive() {
		capital = decimal.NewFromInt(100_000)
	}

	r := e.replay(ctx, cfg, strat, calendar, bars, capital)

	return r.trades, nil
}

// replayResult accumulates one symbol's contribution to the run.
type replayResult struct {
	trades   []types.ExecutedTrade
	equity   []types.EquityPoint
	warnings []string
	errors   []string
}

// runSymbol loads one symbol's history and replays it. Provider failure
// aborts only this symbol's contribution.
func (e *Engine) runSymbol(ctx context.Context, cfg Config, calendar *simulator.Calendar, symbol string, r provider.DateRange, capital decimal.Decimal) *replayResult {
	bars, err := e.LoadHistoricalData(ctx, symbol, r)
	if err != nil {
		e.logger.Error("data load failed", "symbol", symbol, "err", err)
		return &replayResult{errors: []string{err.Error()}}
	}

	if len(bars) == 0 {
		e.logger.Warn("no bars for symbol", "symbol", symbol)
		return &replayResult{warnings: []string{WarnNoMarketData}}
	}

	return e.replay(ctx, cfg, strategy.ForkOf(cfg.Strategy), calendar, bars, capital)
}

// replay walks bars strictly in timestamp order, querying the strategy,
// simulating orders, and maintaining portfolio and equity state. One bad
// bar never aborts the replay.
func (e *Engine) replay(ctx context.Context, cfg Config, strat strategy.Strategy, calendar *simulator.Calendar, bars []types.Bar, capital decimal.Decimal) *replayResult {
	// Bars arrive ordered from providers, but replay order is a hard
	// invariant, so enforce it here.
	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	sim := simulator.New()
	simCfg := cfg.simulationConfig()
	portfolio := types.NewPortfolio(capital)
	sizer := newSizer(cfg.positionPct())
	out := &replayResult{}

	for i := range bars {
		bar := bars[i]

		if err := ctx.Err(); err != nil {
			out.errors = append(out.errors, fmt.Sprintf("replay cancelled: %s", err))
			break
		}

		marketOpen := calendar.IsMarketOpen(bar.Timestamp)

		// Orders queued while the market was closed execute FIFO against
		// the first open bar.
		if marketOpen && sim.QueueLen() > 0 {
			queued, err := sim.ProcessQueuedOrders(&bar, simCfg)
			if err != nil {
				out.errors = append(out.errors, fmt.Sprintf("process queued orders: %s", err))
			}
			for _, trade := range queued {
				e.settle(portfolio, &trade, out)
			}
			sizer.release()
		}

		signal, err := strat.GenerateSignal(ctx, bar)
		if err != nil {
			out.errors = append(out.errors, fmt.Sprintf("Strategy execution failed: %s", err))
			out.equity = append(out.equity, equityPoint(portfolio, bar))
			continue
		}

		if e.recorder != nil {
			e.recorder.RecordBar(bar.Symbol)
		}

		if strat.ValidateSignal(signal) {
			if order, ok := sizer.orderFor(signal, portfolio, bar); ok {
				e.execute(sim, simCfg, sizer, marketOpen, order, &bar, out, portfolio)
			}
		}

		out.equity = append(out.equity, equityPoint(portfolio, bar))
	}

	// Orders still queued at the end of the history terminate as
	// rejections so every order yields exactly one terminal trade.
	if abandoned := sim.RejectQueued(); len(abandoned) > 0 {
		for _, trade := range abandoned {
			e.settle(portfolio, &trade, out)
		}
		out.warnings = append(out.warnings,
			fmt.Sprintf("%d queued order(s) for %s never executed: market did not reopen", len(abandoned), bars[0].Symbol))
	}

	return out
}

// execute routes an order through the simulator, queueing it first when
// the market is closed. Queued orders reserve their cash or shares with
// the sizer until the queue drains.
func (e *Engine) execute(sim *simulator.Simulator, simCfg simulator.Config, sizer *sizer, marketOpen bool, order types.Order, bar *types.Bar, out *replayResult, portfolio *types.Portfolio) {
	if !marketOpen {
		if err := sim.QueueOrder(order); err != nil {
			out.errors = append(out.errors, fmt.Sprintf("queue order: %s", err))
			return
		}
		sizer.reserve(order, *bar)
		return
	}

	trade, err := sim.SimulateTrade(order, bar, simCfg)
	if err != nil {
		// The sizer never emits malformed orders; surface it rather than
		// crash the replay.
		out.errors = append(out.errors, fmt.Sprintf("simulate trade: %s", err))
		return
	}

	e.settle(portfolio, &trade, out)
}

// settle applies a terminal trade to the portfolio and records it. Cash
// and positions move only on fills.
func (e *Engine) settle(portfolio *types.Portfolio, trade *types.ExecutedTrade, out *replayResult) {
	if trade.Filled() {
		applyFill(portfolio, trade)
	}

	if e.recorder != nil {
		e.recorder.RecordTrade(trade.Symbol, trade.Side.String(), trade.Status.String(), trade.RejectReason)
	}

	out.trades = append(out.trades, *trade)
}

// applyFill mutates cash and position state for a filled trade, setting
// RealizedPnL on position-reducing sells.
func applyFill(portfolio *types.Portfolio, trade *types.ExecutedTrade) {
	pos := portfolio.Position(trade.Symbol)
	notional := trade.Quantity.Mul(trade.ExecutedPrice)

	if trade.Side == types.SideBuy {
		portfolio.Cash = portfolio.Cash.Sub(notional).Sub(trade.Commission)

		newQty := pos.Quantity.Add(trade.Quantity)
		pos.AverageCost = pos.Quantity.Mul(pos.AverageCost).Add(notional).Div(newQty)
		pos.Quantity = newQty
		portfolio.Positions[trade.Symbol] = pos
		return
	}

	portfolio.Cash = portfolio.Cash.Add(notional).Sub(trade.Commission)
	trade.RealizedPnL = trade.ExecutedPrice.Sub(pos.AverageCost).Mul(trade.Quantity).Sub(trade.Commission)

	pos.Quantity = pos.Quantity.Sub(trade.Quantity)
	if pos.Quantity.IsPositive() {
		portfolio.Positions[trade.Symbol] = pos
	} else {
		delete(portfolio.Positions, trade.Symbol)
	}
}

// equityPoint marks the portfolio to market at the bar's close.
func equityPoint(portfolio *types.Portfolio, bar types.Bar) types.EquityPoint {
	prices := map[string]decimal.Decimal{bar.Symbol: bar.Close}
	return types.EquityPoint{
		Timestamp: bar.Timestamp,
		Equity:    portfolio.Equity(prices),
	}
}
