// Package main is the entry point for the backtester CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marketsim/backtester/internal/config"
	"github.com/marketsim/backtester/internal/engine"
	"github.com/marketsim/backtester/internal/metrics"
	"github.com/marketsim/backtester/internal/persistence"
	"github.com/marketsim/backtester/internal/provider"
	"github.com/marketsim/backtester/internal/strategy"
)

// Version information (set by build flags).
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		cmdVersion()
	case "help", "-h", "--help":
		printUsage()
	case "backtest":
		cmdBacktest(os.Args[2:])
	case "validate":
		cmdValidate(os.Args[2:])
	case "runs":
		cmdRuns(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Backtester - Historical Trade Execution Simulator

Usage:
  backtester <command> [options]

Commands:
  backtest   Run a backtest over historical data
  validate   Validate configuration file
  runs       List stored backtest runs
  version    Show version information
  help       Show this help message

Examples:
  backtester backtest --config config.yaml
  backtester validate --config config.yaml
  backtester runs --db backtests.db

Use "backtester <command> --help" for more information about a command.`)
}

func cmdVersion() {
	fmt.Printf("backtester version %s\n", Version)
	fmt.Printf("  Build time: %s\n", BuildTime)
	fmt.Printf("  Git commit: %s\n", GitCommit)
}

func cmdValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
	fmt.Printf("  Symbols:          %v\n", cfg.Backtest.Symbols)
	fmt.Printf("  Initial capital:  $%.2f\n", cfg.Backtest.InitialCapital)
	fmt.Printf("  Commission rate:  %.4f\n", cfg.Backtest.Commission)
	fmt.Printf("  Slippage rate:    %.4f\n", cfg.Backtest.Slippage)
	fmt.Printf("  Market impact:    %t\n", cfg.Backtest.MarketImpact)
}

func cmdBacktest(args []string) {
	fs := flag.NewFlagSet("backtest", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	verbose := fs.Bool("verbose", false, "Verbose output")
	fs.Parse(args)

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	strat, err := cfg.BuildStrategy()
	if err != nil {
		slog.Error("failed to build strategy", "err", err)
		os.Exit(1)
	}

	engineCfg, err := cfg.ToEngineConfig(strat)
	if err != nil {
		slog.Error("invalid run parameters", "err", err)
		os.Exit(1)
	}

	var dataProvider provider.HistoricalDataProvider = provider.NewCSVProvider(cfg.Data.Files)
	if cfg.Data.RateLimitPerMinute > 0 {
		dataProvider = provider.NewThrottled(dataProvider, cfg.Data.RateLimitPerMinute)
	}

	recorder := metrics.NewRecorder()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		serverCfg := metrics.DefaultServerConfig()
		if cfg.Metrics.Port > 0 {
			serverCfg.Port = cfg.Metrics.Port
		}
		metricsServer = metrics.NewServer(serverCfg, logger)
		metricsServer.Start()
	}

	e := engine.New(dataProvider, logger, recorder)

	ctx := context.Background()
	result, err := e.Run(ctx, engineCfg)
	if err != nil {
		slog.Error("backtest failed", "err", err)
		os.Exit(1)
	}

	printResult(result, cfg.Backtest.InitialCapital)

	if cfg.Persistence.Enabled {
		repo, err := persistence.NewSQLiteRepository(cfg.Persistence.Path)
		if err != nil {
			slog.Error("failed to open run store", "err", err)
			os.Exit(1)
		}
		defer repo.Close()

		runID, err := repo.SaveResult(ctx, strategy.NameOf(strat), cfg.Backtest.Symbols, result)
		if err != nil {
			slog.Error("failed to save run", "err", err)
			os.Exit(1)
		}
		fmt.Printf("\nRun saved: %s\n", runID)
	}

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics server shutdown failed", "err", err)
		}
	}
}

func cmdRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", "backtests.db", "Path to run store")
	fs.Parse(args)

	repo, err := persistence.NewSQLiteRepository(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	runs, err := repo.ListRuns(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(runs) == 0 {
		fmt.Println("No stored runs.")
		return
	}

	for _, run := range runs {
		fmt.Printf("%s  %s  strategy=%s  symbols=%v  trades=%d  errors=%d  warnings=%d\n",
			run.CreatedAt.Format(time.RFC3339), run.ID, run.Strategy, run.Symbols,
			run.NumTrades, run.NumErrors, run.NumWarns)
	}
}

func printResult(result *engine.Result, initialCapital float64) {
	pct := decimal.NewFromInt(100)

	fmt.Println("\n=== BACKTEST RESULTS ===")
	fmt.Printf("Initial Capital:   $%.2f\n", initialCapital)
	if n := len(result.EquityCurve); n > 0 {
		fmt.Printf("Final Equity:      $%.2f\n", result.EquityCurve[n-1].Equity.InexactFloat64())
	}
	fmt.Printf("Total Trades:      %d\n", len(result.Trades))

	fmt.Println("\n=== PERFORMANCE METRICS ===")
	m := result.Performance
	fmt.Printf("Total Return:      %.2f%%\n", m.TotalReturn.Mul(pct).InexactFloat64())
	fmt.Printf("Annualized Return: %.2f%%\n", m.AnnualizedReturn.Mul(pct).InexactFloat64())
	fmt.Printf("Volatility:        %.2f%%\n", m.Volatility.Mul(pct).InexactFloat64())
	fmt.Printf("Sharpe Ratio:      %.2f\n", m.SharpeRatio.InexactFloat64())
	fmt.Printf("Max Drawdown:      %.2f%%\n", m.MaxDrawdown.Mul(pct).InexactFloat64())
	fmt.Printf("Win Rate:          %.2f%%\n", m.WinRate.Mul(pct).InexactFloat64())
	fmt.Printf("Profit Factor:     %.2f\n", m.ProfitFactor.InexactFloat64())

	if len(result.Warnings) > 0 {
		fmt.Println("\nWarnings:")
		for _, w := range result.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
	if len(result.Errors) > 0 {
		fmt.Println("\nErrors:")
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
}
