// Package config handles run configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/marketsim/backtester/internal/engine"
	"github.com/marketsim/backtester/internal/simulator"
	"github.com/marketsim/backtester/internal/strategy"
	"github.com/marketsim/backtester/internal/types"
)

// Config represents the full application configuration.
type Config struct {
	Backtest    BacktestConfig    `yaml:"backtest"`
	MarketHours simulator.Hours   `yaml:"market_hours"`
	Data        DataConfig        `yaml:"data"`
	Strategy    StrategyConfig    `yaml:"strategy"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// BacktestConfig holds run parameters.
type BacktestConfig struct {
	Symbols        []string `yaml:"symbols"`
	Start          string   `yaml:"start"` // YYYY-MM-DD, optional
	End            string   `yaml:"end"`   // YYYY-MM-DD, optional
	InitialCapital float64  `yaml:"initial_capital"`
	Commission     float64  `yaml:"commission"`
	MinCommission  float64  `yaml:"min_commission"`
	Slippage       float64  `yaml:"slippage"`
	MarketImpact   bool     `yaml:"market_impact"`
	PositionPct    float64  `yaml:"position_pct"`
}

// DataConfig maps symbols to data files.
type DataConfig struct {
	Files              map[string]string `yaml:"files"`
	RateLimitPerMinute int               `yaml:"rate_limit_per_minute"`
}

// StrategyConfig selects and parameterizes the strategy.
type StrategyConfig struct {
	Name       string `yaml:"name"`
	FastPeriod int    `yaml:"fast_period"`
	SlowPeriod int    `yaml:"slow_period"`
}

// PersistenceConfig holds result storage settings.
type PersistenceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig holds metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load loads configuration from a YAML file, expanding environment
// variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes loads configuration from YAML bytes.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration, collecting every violation.
func (c *Config) Validate() error {
	var errs []string

	if c.Backtest.InitialCapital <= 0 {
		errs = append(errs, "backtest.initial_capital must be positive")
	}
	if len(c.Backtest.Symbols) == 0 {
		errs = append(errs, "backtest.symbols is required")
	}
	if c.Backtest.Commission < 0 {
		errs = append(errs, "backtest.commission must not be negative")
	}
	if c.Backtest.Slippage < 0 {
		errs = append(errs, "backtest.slippage must not be negative")
	}
	if c.Backtest.PositionPct < 0 || c.Backtest.PositionPct > 1 {
		errs = append(errs, "backtest.position_pct must be between 0 and 1")
	}

	if _, err := c.StartTime(); err != nil {
		errs = append(errs, "backtest.start must be YYYY-MM-DD")
	}
	if _, err := c.EndTime(); err != nil {
		errs = append(errs, "backtest.end must be YYYY-MM-DD")
	}

	for _, symbol := range c.Backtest.Symbols {
		if _, ok := c.Data.Files[symbol]; !ok {
			errs = append(errs, fmt.Sprintf("data.files is missing an entry for %s", symbol))
		}
	}

	switch c.Strategy.Name {
	case "", "sma-cross":
	default:
		errs = append(errs, fmt.Sprintf("strategy.name %q is not supported", c.Strategy.Name))
	}

	if c.Persistence.Enabled && c.Persistence.Path == "" {
		errs = append(errs, "persistence.path is required when persistence is enabled")
	}
	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		errs = append(errs, "metrics.port must be a valid port")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", types.ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// StartTime parses the optional start date.
func (c *Config) StartTime() (time.Time, error) {
	return parseDate(c.Backtest.Start)
}

// EndTime parses the optional end date.
func (c *Config) EndTime() (time.Time, error) {
	return parseDate(c.Backtest.End)
}

// BuildStrategy constructs the configured strategy.
func (c *Config) BuildStrategy() (strategy.Strategy, error) {
	switch c.Strategy.Name {
	case "", "sma-cross":
		sc := strategy.DefaultSMACrossConfig()
		if c.Strategy.FastPeriod > 0 {
			sc.FastPeriod = c.Strategy.FastPeriod
		}
		if c.Strategy.SlowPeriod > 0 {
			sc.SlowPeriod = c.Strategy.SlowPeriod
		}
		return strategy.NewSMACross(sc), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", types.ErrInvalidConfig, c.Strategy.Name)
	}
}

// ToEngineConfig converts to the engine's run parameters.
func (c *Config) ToEngineConfig(strat strategy.Strategy) (engine.Config, error) {
	start, err := c.StartTime()
	if err != nil {
		return engine.Config{}, err
	}
	end, err := c.EndTime()
	if err != nil {
		return engine.Config{}, err
	}

	hours := c.MarketHours
	if hours.Timezone == "" {
		hours = simulator.DefaultHours()
	}

	return engine.Config{
		Strategy:       strat,
		Symbols:        c.Backtest.Symbols,
		Start:          start,
		End:            end,
		InitialCapital: decimal.NewFromFloat(c.Backtest.InitialCapital),
		Commission:     decimal.NewFromFloat(c.Backtest.Commission),
		MinCommission:  decimal.NewFromFloat(c.Backtest.MinCommission),
		Slippage:       decimal.NewFromFloat(c.Backtest.Slippage),
		MarketImpact:   c.Backtest.MarketImpact,
		MarketHours:    hours,
		PositionPct:    decimal.NewFromFloat(c.Backtest.PositionPct),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse("2006-01-02", s)
}
