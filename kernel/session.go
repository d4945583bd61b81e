// Package kernel is the signal processing core shared by backtests and live
// sessions.
package kernel

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/noahterminal/trader/intent"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
	"github.com/noahterminal/trader/perf"
	"github.com/noahterminal/trader/risk"
	"github.com/shopspring/decimal"
)

var (
	ErrMalformedEvent = errors.New("kernel: malformed event")
	ErrOutOfOrder     = errors.New("kernel: event out of order")
	ErrNoPrice        = errors.New("kernel: no price for symbol")
	errSettled        = errors.New("kernel: hold already settled")
)

type SessionOption func(*Session)

// WithClock makes the risk gate read time from now instead of the event
// clock. Live sessions use the wall clock.
func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) { s.clock = now }
}

// Session owns the mutable state of one backtest run or one live session.
// A single mutex covers the ledger, the risk gate, reservations and the last
// seen prices so that a gate check and the booking it allows cannot
// interleave with another signal's.
type Session struct {
	mu sync.Mutex

	ledger *ledger.Ledger
	gate   *risk.Gate
	perf   *perf.Collector

	prices  map[string]float64
	last    time.Time
	pending int
	fills   map[string]ledger.Trade

	clock func() time.Time
}

func NewSession(l *ledger.Ledger, g *risk.Gate, c *perf.Collector, opts ...SessionOption) *Session {
	if c == nil {
		c = perf.NewCollector()
	}
	s := &Session{
		ledger: l,
		gate:   g,
		perf:   c,
		prices: make(map[string]float64),
		fills:  make(map[string]ledger.Trade),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// begin records the event's price and pre-trade snapshot and returns the
// account view strategies see.
func (s *Session) begin(ev market.Event) (ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() && ev.Time.Before(s.last) {
		return ledger.Account{}, fmt.Errorf("%w: %s %s before %s", ErrOutOfOrder, ev.Symbol,
			ev.Time.Format(time.RFC3339Nano), s.last.Format(time.RFC3339Nano))
	}
	s.prices[ev.Symbol] = ev.Close
	s.last = ev.Time

	if err := s.perf.Record(s.snapshotLocked()); err != nil {
		return ledger.Account{}, fmt.Errorf("%w: %v", ErrOutOfOrder, err)
	}
	return s.ledger.Account(s.prices), nil
}

// finish replaces the event's snapshot with the post-trade one.
func (s *Session) finish() perf.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.perf.Settle(s.snapshotLocked())
	last, _ := s.perf.Last()
	return last
}

func (s *Session) snapshotLocked() perf.Snapshot {
	v := s.ledger.Value(s.prices)
	return perf.Snapshot{
		Time:           s.last,
		TotalValue:     v.Total,
		Cash:           v.Cash,
		PositionsValue: v.Positions,
	}
}

func (s *Session) gateTimeLocked() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return s.last
}

// Admit checks sig against the risk gate and the ledger and reserves what
// it would consume. It implements intent.Guard.
func (s *Session) Admit(_ string, sig market.Signal) (intent.Hold, error) {
	return s.admit(sig)
}

func (s *Session) admit(sig market.Signal) (*hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d := s.gate.Check(sig, s.gateTimeLocked(), s.pending); !d.Allowed {
		return nil, d.Err()
	}

	price, ok := s.prices[sig.Symbol]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoPrice, sig.Symbol)
	}
	f, err := s.ledger.Quote(sig.Symbol, sig.Action, sig.Quantity, price)
	if err != nil {
		return nil, err
	}

	s.ledger.Reserve(f)
	s.pending++
	return &hold{s: s, fill: f}, nil
}

// hold is an admitted, reserved fill waiting for its pipeline to finish.
type hold struct {
	s    *Session
	fill ledger.Fill
	done bool
}

var _ intent.Hold = (*hold)(nil)

func (h *hold) Commit(in intent.Intent, _ intent.SubmissionResult) error {
	tr, err := h.settle(in.ID)
	if err != nil {
		return err
	}
	if in.ID != "" {
		h.s.mu.Lock()
		h.s.fills[in.ID] = tr
		h.s.mu.Unlock()
	}
	return nil
}

func (h *hold) Release() {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	if h.done {
		return
	}
	h.done = true
	h.s.pending--
	h.s.ledger.Release(h.fill)
}

// settle books the fill and bumps the risk counters. A SELL that realizes
// a loss adds the loss as a fraction of the pre-trade portfolio value.
func (h *hold) settle(ref string) (ledger.Trade, error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.done {
		return ledger.Trade{}, errSettled
	}
	h.done = true
	s.pending--

	before := s.ledger.MarkToMarket(s.prices)
	tr, err := s.ledger.Settle(s.last, h.fill, ref)
	if err != nil {
		return ledger.Trade{}, err
	}

	loss := 0.0
	if tr.RealizedPL.IsNegative() && before > 0 {
		loss = tr.RealizedPL.Neg().Div(decimal.NewFromFloat(before)).InexactFloat64()
	}
	s.gate.Record(s.gateTimeLocked(), loss)
	return tr, nil
}

// takeFill returns and forgets the trade booked for intentID.
func (s *Session) takeFill(intentID string) (ledger.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tr, ok := s.fills[intentID]
	delete(s.fills, intentID)
	return tr, ok
}

func (s *Session) Trades() []ledger.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Trades()
}

func (s *Session) Snapshots() []perf.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perf.Snapshots()
}

// LastSnapshot returns the most recent post-trade snapshot.
func (s *Session) LastSnapshot() (perf.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perf.Last()
}

func (s *Session) Account() ledger.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Account(s.prices)
}

func (s *Session) Counters() risk.Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.Counters(s.gateTimeLocked())
}

// SetLimits replaces the risk limits for subsequent signals.
func (s *Session) SetLimits(l risk.Limits) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gate.SetLimits(l)
}

// Finalize summarizes the session against the ledger's initial cash.
func (s *Session) Finalize() perf.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.perf.Finalize(s.ledger.InitialCash().InexactFloat64())
}

func (s *Session) InitialCash() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.InitialCash().InexactFloat64()
}
