package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/noahterminal/trader/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, 100000.0, cfg.Account.InitialCash)
	assert.Equal(t, risk.DefaultLimits(), cfg.Risk)
	assert.Equal(t, "ma-cross", cfg.Strategy.Name)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:   "zero cash",
			mutate: func(c *Config) { c.Account.InitialCash = 0 },
			errMsg: "account.initial_cash must be positive",
		},
		{
			name:   "daily loss above one",
			mutate: func(c *Config) { c.Risk.MaxDailyLoss = 1.5 },
			errMsg: "risk.max_daily_loss must be between 0 and 1",
		},
		{
			name:   "no hourly trades",
			mutate: func(c *Config) { c.Risk.MaxTradesPerHour = 0 },
			errMsg: "risk.max_trades_per_hour must be positive",
		},
		{
			name:   "missing strategy",
			mutate: func(c *Config) { c.Strategy.Name = "" },
			errMsg: "strategy.name is required",
		},
		{
			name:   "unknown strategy",
			mutate: func(c *Config) { c.Strategy.Name = "martingale" },
			errMsg: "martingale",
		},
		{
			name:   "inverted windows",
			mutate: func(c *Config) { c.Strategy.ShortWindow, c.Strategy.LongWindow = 20, 10 },
			errMsg: "short_window < long_window",
		},
		{
			name:   "bad from date",
			mutate: func(c *Config) { c.Backtest.From = "yesterday" },
			errMsg: "backtest.from",
		},
		{
			name: "empty range",
			mutate: func(c *Config) {
				c.Backtest.From = "2024-02-01"
				c.Backtest.To = "2024-01-01"
			},
			errMsg: "backtest.to must be after backtest.from",
		},
		{
			name:   "unknown journal",
			mutate: func(c *Config) { c.Journal.Type = "postgres" },
			errMsg: "journal.type must be",
		},
		{
			name:   "csv without path",
			mutate: func(c *Config) { c.Journal = JournalConfig{Type: "csv"} },
			errMsg: "journal.path required for csv journal",
		},
		{
			name:   "no journal",
			mutate: func(c *Config) { c.Journal = JournalConfig{Type: "none"} },
		},
		{
			name:   "bad log format",
			mutate: func(c *Config) { c.Log.Format = "xml" },
			errMsg: "log.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestSaveAndLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "trader.yaml")

	cfg := Default()
	cfg.Strategy.Name = "buy-once"
	cfg.Strategy.Symbol = "ETH"
	cfg.Strategy.Quantity = 0.05
	cfg.Backtest.RollWindows = true
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveAndLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "trader.json")

	cfg := Default()
	cfg.Live.RejectSymbols = []string{"DOGE"}
	require.NoError(t, cfg.SaveToFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"max_trades_per_hour": 10`)

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadKeepsDefaultsForMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy:\n  name: noop\n"), 0644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "noop", cfg.Strategy.Name)
	assert.Equal(t, 100000.0, cfg.Account.InitialCash)
	assert.Equal(t, risk.DefaultLimits(), cfg.Risk)
}

func TestLoadFromFileErrors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account: [unclosed"), 0644))
	_, err = LoadFromFile(path)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("account:\n  initial_cash: -5\n"), 0644))
	_, err = LoadFromFile(invalid)
	assert.ErrorContains(t, err, "invalid config")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TRADER_STRATEGY":            "buy-once",
		"TRADER_SYMBOL":              "SOL",
		"TRADER_INITIAL_CASH":        "2500",
		"TRADER_MAX_POSITION_SIZE":   "0.5",
		"TRADER_MAX_TRADES_PER_HOUR": "3",
		"TRADER_SIGNING_KEY":         `"abcd"`,
		"TRADER_JOURNAL_TYPE":        "none",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "buy-once", cfg.Strategy.Name)
	assert.Equal(t, "SOL", cfg.Strategy.Symbol)
	assert.Equal(t, 2500.0, cfg.Account.InitialCash)
	assert.Equal(t, 0.5, cfg.Risk.MaxPositionSize)
	assert.Equal(t, 0.02, cfg.Risk.MaxDailyLoss)
	assert.Equal(t, 3, cfg.Risk.MaxTradesPerHour)
	assert.Equal(t, "abcd", cfg.Live.KeyHex)
	assert.Equal(t, "none", cfg.Journal.Type)

	env["TRADER_MAX_DAILY_LOSS"] = "lots"
	assert.ErrorContains(t, Default().ApplyEnv(lookup), "TRADER_MAX_DAILY_LOSS")
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRADER_TEST_ONLY_SYMBOL=XRP\n"), 0644))
	t.Setenv("TRADER_TEST_ONLY_SYMBOL", "")
	os.Unsetenv("TRADER_TEST_ONLY_SYMBOL")

	require.NoError(t, LoadEnv(path, filepath.Join(t.TempDir(), "absent.env")))
	assert.Equal(t, "XRP", os.Getenv("TRADER_TEST_ONLY_SYMBOL"))
}

func TestBacktestRange(t *testing.T) {
	from, to, err := BacktestConfig{From: "2024-01-01", To: "2024-01-02T12:00:00Z"}.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC), to)

	from, to, err = BacktestConfig{}.Range()
	require.NoError(t, err)
	assert.True(t, from.IsZero())
	assert.True(t, to.IsZero())
}
