package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/noahterminal/trader/market"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned when a BUY costs more than available cash.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrNothingToSell is returned when a SELL finds no held quantity to cap to.
	ErrNothingToSell = errors.New("nothing to sell")
)

type position struct {
	qty     decimal.Decimal
	avgCost decimal.Decimal
}

// Ledger owns cash, positions and trade history.
//
// A Ledger is not safe for concurrent use. kernel.Session serializes every
// call behind its own lock so that gate checks and ledger updates share one
// critical section.
type Ledger struct {
	initial   decimal.Decimal
	cash      decimal.Decimal
	positions map[string]position
	trades    []Trade

	// Reserved for fills that are admitted but not yet settled.
	heldCash decimal.Decimal
	heldQty  map[string]decimal.Decimal
}

// New returns a ledger holding only cash.
func New(initialCash float64) *Ledger {
	c := decimal.NewFromFloat(initialCash)
	if c.IsNegative() {
		c = decimal.Zero
	}
	return &Ledger{
		initial:   c,
		cash:      c,
		positions: make(map[string]position),
		heldQty:   make(map[string]decimal.Decimal),
	}
}

func (l *Ledger) InitialCash() decimal.Decimal { return l.initial }
func (l *Ledger) Cash() decimal.Decimal        { return l.cash }

// Position returns the held quantity for symbol.
func (l *Ledger) Position(symbol string) decimal.Decimal {
	return l.positions[symbol].qty
}

// Positions returns held quantities keyed by symbol.
func (l *Ledger) Positions() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.positions))
	for sym, p := range l.positions {
		out[sym] = p.qty
	}
	return out
}

// Trades returns a copy of the trade history.
func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

func (l *Ledger) TradeCount() int { return len(l.trades) }

// Quote prices a trade against current state without changing it.
//
// BUY fails with ErrInsufficientFunds when quantity*price exceeds the cash
// not already reserved. SELL is capped at the unreserved held quantity.
func (l *Ledger) Quote(symbol string, action market.Action, qty, price float64) (Fill, error) {
	sig := market.Signal{Action: action, Symbol: symbol, Quantity: qty}
	if err := sig.Validate(); err != nil {
		return Fill{}, err
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return Fill{}, &market.ValidationError{Field: "price", Reason: fmt.Sprintf("must be a positive number, got %g", price)}
	}

	q := decimal.NewFromFloat(qty)
	p := decimal.NewFromFloat(price)

	switch action {
	case market.Buy:
		cost := q.Mul(p)
		avail := l.cash.Sub(l.heldCash)
		if cost.GreaterThan(avail) {
			return Fill{}, fmt.Errorf("%w: cost %s exceeds available cash %s", ErrInsufficientFunds, cost, avail)
		}
		return Fill{Action: action, Symbol: symbol, Quantity: q, Price: p, CashDelta: cost.Neg()}, nil

	default:
		avail := l.positions[symbol].qty.Sub(l.heldQty[symbol])
		if !avail.IsPositive() {
			return Fill{}, fmt.Errorf("%w: no %s held", ErrNothingToSell, symbol)
		}
		if q.GreaterThan(avail) {
			q = avail
		}
		return Fill{Action: action, Symbol: symbol, Quantity: q, Price: p, CashDelta: q.Mul(p)}, nil
	}
}

// ApplyTrade quotes and applies a trade in one step.
func (l *Ledger) ApplyTrade(ts time.Time, symbol string, action market.Action, qty, price float64) (Trade, error) {
	f, err := l.Quote(symbol, action, qty, price)
	if err != nil {
		return Trade{}, err
	}
	return l.apply(ts, f, "")
}

// Reserve sets aside the cash or quantity a fill will consume so concurrent
// quotes cannot promise it twice.
func (l *Ledger) Reserve(f Fill) {
	if f.Action == market.Buy {
		l.heldCash = l.heldCash.Add(f.Cost())
		return
	}
	l.heldQty[f.Symbol] = l.heldQty[f.Symbol].Add(f.Quantity)
}

// Release undoes Reserve.
func (l *Ledger) Release(f Fill) {
	if f.Action == market.Buy {
		l.heldCash = l.heldCash.Sub(f.Cost())
		if l.heldCash.IsNegative() {
			l.heldCash = decimal.Zero
		}
		return
	}
	left := l.heldQty[f.Symbol].Sub(f.Quantity)
	if left.IsPositive() {
		l.heldQty[f.Symbol] = left
	} else {
		delete(l.heldQty, f.Symbol)
	}
}

// Settle releases a reserved fill and applies it. ref is stored as the
// trade's IntentID.
func (l *Ledger) Settle(ts time.Time, f Fill, ref string) (Trade, error) {
	l.Release(f)
	return l.apply(ts, f, ref)
}

func (l *Ledger) apply(ts time.Time, f Fill, ref string) (Trade, error) {
	pos := l.positions[f.Symbol]
	realized := decimal.Zero

	switch f.Action {
	case market.Buy:
		cost := f.Cost()
		if cost.GreaterThan(l.cash) {
			return Trade{}, fmt.Errorf("%w: cost %s exceeds cash %s", ErrInsufficientFunds, cost, l.cash)
		}
		newQty := pos.qty.Add(f.Quantity)
		pos.avgCost = pos.avgCost.Mul(pos.qty).Add(cost).Div(newQty)
		pos.qty = newQty
		l.cash = l.cash.Sub(cost)

	case market.Sell:
		if !pos.qty.IsPositive() {
			return Trade{}, fmt.Errorf("%w: no %s held", ErrNothingToSell, f.Symbol)
		}
		if f.Quantity.GreaterThan(pos.qty) {
			f.Quantity = pos.qty
			f.CashDelta = f.Quantity.Mul(f.Price)
		}
		realized = f.Price.Sub(pos.avgCost).Mul(f.Quantity)
		pos.qty = pos.qty.Sub(f.Quantity)
		l.cash = l.cash.Add(f.CashDelta)

	default:
		return Trade{}, &market.ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", f.Action)}
	}

	if pos.qty.IsPositive() {
		l.positions[f.Symbol] = pos
	} else {
		delete(l.positions, f.Symbol)
	}

	tr := Trade{
		Seq:        len(l.trades) + 1,
		Time:       ts,
		Action:     f.Action,
		Symbol:     f.Symbol,
		Quantity:   f.Quantity,
		Price:      f.Price,
		CashDelta:  f.CashDelta,
		RealizedPL: realized,
		IntentID:   ref,
	}
	l.trades = append(l.trades, tr)
	return tr, nil
}

// Value marks positions to market. A symbol missing from prices is valued at
// its average cost.
func (l *Ledger) Value(prices map[string]float64) Valuation {
	posValue := decimal.Zero
	for _, sym := range l.symbols() {
		pos := l.positions[sym]
		mark := pos.avgCost
		if px, ok := prices[sym]; ok && px > 0 && !math.IsInf(px, 0) {
			mark = decimal.NewFromFloat(px)
		}
		posValue = posValue.Add(pos.qty.Mul(mark))
	}
	return Valuation{
		Cash:      l.cash.InexactFloat64(),
		Positions: posValue.InexactFloat64(),
		Total:     l.cash.Add(posValue).InexactFloat64(),
	}
}

// MarkToMarket returns cash plus every position at its current price.
func (l *Ledger) MarkToMarket(prices map[string]float64) float64 {
	return l.Value(prices).Total
}

// Account returns the strategy-facing view of the ledger.
func (l *Ledger) Account(prices map[string]float64) Account {
	pos := make(map[string]float64, len(l.positions))
	for sym, p := range l.positions {
		pos[sym] = p.qty.InexactFloat64()
	}
	return Account{
		Cash:      l.cash.InexactFloat64(),
		Positions: pos,
		Value:     l.MarkToMarket(prices),
	}
}

// symbols returns held symbols in a stable order so valuation sums are
// reproducible.
func (l *Ledger) symbols() []string {
	out := make([]string, 0, len(l.positions))
	for sym := range l.positions {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
