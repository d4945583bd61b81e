package ledger

import (
	"time"

	"github.com/noahterminal/trader/market"
	"github.com/shopspring/decimal"
)

// Trade is an executed change to the ledger. Trades are append-only and
// numbered in the order they were applied.
type Trade struct {
	Seq        int             `json:"seq"`
	Time       time.Time       `json:"timestamp"`
	Action     market.Action   `json:"action"`
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	CashDelta  decimal.Decimal `json:"cash_delta"`
	RealizedPL decimal.Decimal `json:"realized_pl"`

	// IntentID links a live trade to the submitted intent. Empty in backtests.
	IntentID string `json:"intent_id,omitempty"`
}

// Fill is a priced, capped trade that has not been applied yet.
type Fill struct {
	Action    market.Action
	Symbol    string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
	CashDelta decimal.Decimal
}

// Cost is the cash a BUY fill consumes, zero for sells.
func (f Fill) Cost() decimal.Decimal {
	if f.CashDelta.IsNegative() {
		return f.CashDelta.Neg()
	}
	return decimal.Zero
}

// Account is a read-only view of portfolio state handed to strategies.
type Account struct {
	Cash      float64            `json:"cash"`
	Positions map[string]float64 `json:"positions"`
	Value     float64            `json:"value"`
}

// Valuation is a mark-to-market breakdown of the ledger.
type Valuation struct {
	Cash      float64
	Positions float64
	Total     float64
}
