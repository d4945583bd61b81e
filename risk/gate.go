package risk

import (
	"time"

	"github.com/noahterminal/trader/market"
)

// Gate holds the risk counters and their windows.
//
// Both windows slide: the hourly count covers trades recorded in the last
// HourWindow before now, and the daily loss sums losses recorded in the last
// DayWindow. Gate is not safe for concurrent use; callers hold their own
// lock around Check and Record.
type Gate struct {
	limits Limits

	trades []time.Time
	losses []loss

	// running totals used when decay is off
	counters Counters

	decay bool
}

type loss struct {
	at       time.Time
	fraction float64
}

type GateOption func(*Gate)

// WithoutDecay disables the windows. A bounded backtest uses this so the
// counters only ever grow within the run.
func WithoutDecay() GateOption {
	return func(g *Gate) { g.decay = false }
}

func NewGate(l Limits, opts ...GateOption) *Gate {
	g := &Gate{limits: l, decay: true}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gate) Limits() Limits { return g.limits }

// SetLimits replaces the limits. Counters are kept.
func (g *Gate) SetLimits(l Limits) { g.limits = l }

// Counters returns the counters as seen from now.
func (g *Gate) Counters(now time.Time) Counters {
	if !g.decay {
		return g.counters
	}

	var c Counters
	for _, at := range g.trades {
		if inWindow(at, now, HourWindow) {
			c.TradesThisHour++
		}
	}
	for _, l := range g.losses {
		if inWindow(l.at, now, DayWindow) {
			c.DailyLosses += l.fraction
		}
	}
	return c
}

// Check evaluates sig as of now. pending counts trades that were admitted but
// not yet recorded; they count against the hourly limit so two concurrent
// signals cannot both pass against the same counter value. Check does not
// change the gate.
func (g *Gate) Check(sig market.Signal, now time.Time, pending int) Decision {
	c := g.Counters(now)
	c.TradesThisHour += pending
	return Evaluate(sig, c, g.limits)
}

// Record counts one completed trade and adds lossFraction (a positive
// fraction of portfolio value) to the daily loss counter.
func (g *Gate) Record(now time.Time, lossFraction float64) {
	if !g.decay {
		g.counters.TradesThisHour++
		if lossFraction > 0 {
			g.counters.DailyLosses += lossFraction
		}
		return
	}

	g.trades = append(prune(g.trades, now, HourWindow, func(at time.Time) time.Time { return at }), now)
	g.losses = prune(g.losses, now, DayWindow, func(l loss) time.Time { return l.at })
	if lossFraction > 0 {
		g.losses = append(g.losses, loss{at: now, fraction: lossFraction})
	}
}

// inWindow reports whether at falls in the window of length w ending at now.
// Entries stamped after now still count.
func inWindow(at, now time.Time, w time.Duration) bool {
	return now.Sub(at) < w
}

// prune drops the leading entries that have left the window. Entries are
// recorded in time order.
func prune[T any](xs []T, now time.Time, w time.Duration, stamp func(T) time.Time) []T {
	i := 0
	for i < len(xs) && !inWindow(stamp(xs[i]), now, w) {
		i++
	}
	if i == 0 {
		return xs
	}
	return append(xs[:0], xs[i:]...)
}
