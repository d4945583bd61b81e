package strategies

import (
	"sync"

	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
)

// DefaultQuantity is the buy-once size when none is configured. It fits
// under the default max_position_size.
const DefaultQuantity = 0.1

// BuyOnce keeps asking to buy Quantity of Symbol until one buy fills.
type BuyOnce struct {
	Symbol   string
	Quantity float64

	mu     sync.Mutex
	filled bool
}

func NewBuyOnce(symbol string, qty float64) *BuyOnce {
	if qty <= 0 {
		qty = DefaultQuantity
	}
	return &BuyOnce{Symbol: symbol, Quantity: qty}
}

func (s *BuyOnce) Name() string { return "buy-once" }

func (s *BuyOnce) Info() Info {
	return Info{
		Name:        s.Name(),
		Author:      "Noah Team",
		Description: "Buys a fixed quantity once and holds it.",
		Parameters: map[string]any{
			"symbol":   s.Symbol,
			"quantity": s.Quantity,
		},
	}
}

func (s *BuyOnce) OnTick(ev market.Event, _ ledger.Account) []market.Signal {
	if s.Symbol != "" && ev.Symbol != s.Symbol {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.filled {
		return nil
	}
	return []market.Signal{{Action: market.Buy, Symbol: ev.Symbol, Quantity: s.Quantity}}
}

func (s *BuyOnce) OnOrderFill(tr ledger.Trade) {
	if tr.Action != market.Buy {
		return
	}
	if s.Symbol != "" && tr.Symbol != s.Symbol {
		return
	}
	s.mu.Lock()
	s.filled = true
	s.mu.Unlock()
}

// Filled reports whether the buy has gone through.
func (s *BuyOnce) Filled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filled
}
