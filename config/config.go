package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/noahterminal/trader/risk"
	"github.com/noahterminal/trader/strategies"
	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for backtests and live sessions.
type Config struct {
	Account  AccountConfig  `json:"account" yaml:"account"`
	Risk     risk.Limits    `json:"risk" yaml:"risk"`
	Strategy StrategyConfig `json:"strategy" yaml:"strategy"`
	Backtest BacktestConfig `json:"backtest" yaml:"backtest"`
	Live     LiveConfig     `json:"live" yaml:"live"`
	Journal  JournalConfig  `json:"journal" yaml:"journal"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

type AccountConfig struct {
	InitialCash float64 `json:"initial_cash" yaml:"initial_cash"`
}

// StrategyConfig selects a built-in strategy and its parameters.
type StrategyConfig struct {
	Name        string  `json:"name" yaml:"name"`
	Symbol      string  `json:"symbol" yaml:"symbol"`
	Quantity    float64 `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	ShortWindow int     `json:"short_window,omitempty" yaml:"short_window,omitempty"`
	LongWindow  int     `json:"long_window,omitempty" yaml:"long_window,omitempty"`
	Allocation  float64 `json:"allocation,omitempty" yaml:"allocation,omitempty"`
}

func (s StrategyConfig) Params() strategies.Params {
	return strategies.Params{
		Symbol:      s.Symbol,
		Quantity:    s.Quantity,
		ShortWindow: s.ShortWindow,
		LongWindow:  s.LongWindow,
		Allocation:  s.Allocation,
	}
}

// BacktestConfig points at historical data. From and To are dates or
// RFC3339 timestamps and may be empty.
type BacktestConfig struct {
	Data        string `json:"data" yaml:"data"`
	From        string `json:"from,omitempty" yaml:"from,omitempty"`
	To          string `json:"to,omitempty" yaml:"to,omitempty"`
	RollWindows bool   `json:"roll_windows" yaml:"roll_windows"`
}

// Range parses From and To.
func (b BacktestConfig) Range() (from, to time.Time, err error) {
	if from, err = parseTime(b.From); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.from: %w", err)
	}
	if to, err = parseTime(b.To); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("backtest.to: %w", err)
	}
	return from, to, nil
}

type LiveConfig struct {
	StreamURL   string `json:"stream_url" yaml:"stream_url"`
	MetricsAddr string `json:"metrics_addr,omitempty" yaml:"metrics_addr,omitempty"`
	// KeyHex is the signing key. Empty generates a throwaway key.
	KeyHex string `json:"key_hex,omitempty" yaml:"key_hex,omitempty"`
	// RejectSymbols makes the simulated gateway refuse these symbols.
	RejectSymbols []string `json:"reject_symbols,omitempty" yaml:"reject_symbols,omitempty"`
}

// JournalConfig selects where results are persisted. Path is a database file
// for sqlite and a directory for csv.
type JournalConfig struct {
	Type string `json:"type" yaml:"type"` // "sqlite", "csv" or "none"
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"` // "console" or "json"
}

// LoadEnv loads .env files into the process environment without replacing
// variables that are already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// LoadFromFile loads configuration from a file (YAML, falling back to JSON),
// applies TRADER_* environment overrides and validates the result. Unset
// fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		cfg = Default()
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from TRADER_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *float64) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = f
		return nil
	}

	str("TRADER_STRATEGY", &c.Strategy.Name)
	str("TRADER_SYMBOL", &c.Strategy.Symbol)
	str("TRADER_BACKTEST_DATA", &c.Backtest.Data)
	str("TRADER_STREAM_URL", &c.Live.StreamURL)
	str("TRADER_METRICS_ADDR", &c.Live.MetricsAddr)
	str("TRADER_JOURNAL_TYPE", &c.Journal.Type)
	str("TRADER_JOURNAL_PATH", &c.Journal.Path)
	str("TRADER_LOG_LEVEL", &c.Log.Level)
	str("TRADER_LOG_FORMAT", &c.Log.Format)

	if v, ok := lookup("TRADER_SIGNING_KEY"); ok && v != "" {
		c.Live.KeyHex = strings.Trim(strings.TrimSpace(v), `"`)
	}

	if err := num("TRADER_INITIAL_CASH", &c.Account.InitialCash); err != nil {
		return err
	}
	if err := num("TRADER_MAX_POSITION_SIZE", &c.Risk.MaxPositionSize); err != nil {
		return err
	}
	if err := num("TRADER_MAX_DAILY_LOSS", &c.Risk.MaxDailyLoss); err != nil {
		return err
	}
	if v, ok := lookup("TRADER_MAX_TRADES_PER_HOUR"); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("TRADER_MAX_TRADES_PER_HOUR: %w", err)
		}
		c.Risk.MaxTradesPerHour = n
	}
	return nil
}

// SaveToFile saves configuration as YAML for .yaml/.yml paths and JSON
// otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}

	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Account.InitialCash <= 0 {
		return fmt.Errorf("account.initial_cash must be positive")
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Strategy.Name == "" {
		return fmt.Errorf("strategy.name is required")
	}
	if _, err := strategies.New(c.Strategy.Name, c.Strategy.Params()); err != nil {
		return fmt.Errorf("strategy: %w", err)
	}
	if c.Strategy.Quantity < 0 || c.Strategy.Allocation < 0 {
		return fmt.Errorf("strategy quantity and allocation must not be negative")
	}

	from, to, err := c.Backtest.Range()
	if err != nil {
		return err
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return fmt.Errorf("backtest.to must be after backtest.from")
	}

	switch c.Journal.Type {
	case "", "none":
	case "sqlite", "csv":
		if c.Journal.Path == "" {
			return fmt.Errorf("journal.path required for %s journal", c.Journal.Type)
		}
	default:
		return fmt.Errorf("journal.type must be 'sqlite', 'csv' or 'none'")
	}

	switch c.Log.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("log.format must be 'console' or 'json'")
	}
	return nil
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Account: AccountConfig{InitialCash: 100000},
		Risk:    risk.DefaultLimits(),
		Strategy: StrategyConfig{
			Name:        "ma-cross",
			Symbol:      "BTC",
			ShortWindow: 50,
			LongWindow:  200,
			Allocation:  0.1,
		},
		Backtest: BacktestConfig{Data: "./data/prices.csv"},
		Live:     LiveConfig{MetricsAddr: ":9102"},
		Journal:  JournalConfig{Type: "sqlite", Path: "./trader.sqlite"},
		Log:      LogConfig{Level: "info", Format: "console"},
	}
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
