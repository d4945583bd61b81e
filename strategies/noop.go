package strategies

import (
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
)

// Noop never trades.
type Noop struct{}

func (Noop) Name() string { return "noop" }

func (Noop) OnTick(market.Event, ledger.Account) []market.Signal { return nil }

func (Noop) OnOrderFill(ledger.Trade) {}
