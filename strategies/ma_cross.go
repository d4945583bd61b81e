package strategies

import (
	"fmt"
	"sync"

	"github.com/noahterminal/trader/indicators"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
)

type MACrossConfig struct {
	Symbol      string  `json:"symbol"`
	ShortWindow int     `json:"short_window"` // 50
	LongWindow  int     `json:"long_window"`  // 200
	Allocation  float64 `json:"allocation"`   // 0.1
}

func MACrossDefaults() MACrossConfig {
	return MACrossConfig{
		ShortWindow: 50,
		LongWindow:  200,
		Allocation:  0.1,
	}
}

// MACross trades the alignment of price and two simple moving averages.
// It buys Allocation on every event where close > short > long and sells
// Allocation on every event where close < short < long. Repeats are bounded
// by the risk gate, and sells by what the ledger holds.
//
// Events that already carry SMAShort/SMALong are used as-is. Otherwise the
// averages are computed from the closes the strategy sees.
type MACross struct {
	cfg MACrossConfig

	mu    sync.Mutex
	short *indicators.SMA
	long  *indicators.SMA
}

func NewMACross(cfg MACrossConfig) (*MACross, error) {
	def := MACrossDefaults()
	if cfg.ShortWindow == 0 {
		cfg.ShortWindow = def.ShortWindow
	}
	if cfg.LongWindow == 0 {
		cfg.LongWindow = def.LongWindow
	}
	if cfg.Allocation == 0 {
		cfg.Allocation = def.Allocation
	}
	if cfg.ShortWindow < 1 || cfg.LongWindow <= cfg.ShortWindow {
		return nil, fmt.Errorf("ma-cross: need 0 < short_window < long_window, got %d/%d", cfg.ShortWindow, cfg.LongWindow)
	}
	if cfg.Allocation < 0 {
		return nil, fmt.Errorf("ma-cross: allocation must be positive, got %v", cfg.Allocation)
	}

	return &MACross{
		cfg:   cfg,
		short: indicators.NewSMA(cfg.ShortWindow),
		long:  indicators.NewSMA(cfg.LongWindow),
	}, nil
}

func (s *MACross) Name() string { return "ma-cross" }

func (s *MACross) Config() MACrossConfig { return s.cfg }

func (s *MACross) Info() Info {
	return Info{
		Name:        "Simple MA Crossover",
		Author:      "Noah Team",
		Description: "A simple moving average crossover strategy",
		Parameters: map[string]any{
			"symbol":             s.cfg.Symbol,
			"short_window":       s.cfg.ShortWindow,
			"long_window":        s.cfg.LongWindow,
			"capital_allocation": s.cfg.Allocation,
		},
	}
}

func (s *MACross) OnTick(ev market.Event, _ ledger.Account) []market.Signal {
	if s.cfg.Symbol != "" && ev.Symbol != s.cfg.Symbol {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	short, long, ok := ev.SMAShort, ev.SMALong, ev.SMAShort > 0 && ev.SMALong > 0
	if !ok {
		s.short.Update(ev.Close)
		s.long.Update(ev.Close)
		if !s.long.Ready() {
			return nil
		}
		short, long = s.short.Value(), s.long.Value()
	}

	switch {
	case ev.Close > short && short > long:
		return []market.Signal{{Action: market.Buy, Symbol: ev.Symbol, Quantity: s.cfg.Allocation}}
	case ev.Close < short && short < long:
		return []market.Signal{{Action: market.Sell, Symbol: ev.Symbol, Quantity: s.cfg.Allocation}}
	}
	return nil
}

func (s *MACross) OnOrderFill(ledger.Trade) {}
