package strategies

import (
	"fmt"
	"strings"
)

// Params configures the built-in strategies. Zero values pick defaults:
// Quantity 0.1 for buy-once, 50/200 windows and 0.1 allocation for ma-cross.
type Params struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	Quantity    float64 `json:"quantity" yaml:"quantity"`
	ShortWindow int     `json:"short_window" yaml:"short_window"`
	LongWindow  int     `json:"long_window" yaml:"long_window"`
	Allocation  float64 `json:"allocation" yaml:"allocation"`
}

// Available lists the names accepted by New.
func Available() []string {
	return []string{"buy-once", "ma-cross", "noop"}
}

// New builds a built-in strategy by name.
func New(name string, p Params) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "noop", "none":
		return Noop{}, nil

	case "buy-once", "open-once":
		return NewBuyOnce(p.Symbol, p.Quantity), nil

	case "ma-cross", "macross", "sma-cross":
		return NewMACross(MACrossConfig{
			Symbol:      p.Symbol,
			ShortWindow: p.ShortWindow,
			LongWindow:  p.LongWindow,
			Allocation:  p.Allocation,
		})

	default:
		return nil, fmt.Errorf("%w %q (supported: %s)", ErrUnknown, name, strings.Join(Available(), ", "))
	}
}
