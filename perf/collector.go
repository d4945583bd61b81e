// Package perf computes running portfolio statistics in a single pass.
package perf

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrUnordered is returned when a snapshot is older than the previous one.
var ErrUnordered = errors.New("perf: snapshot out of order")

// Snapshot is the mark-to-market portfolio value at one event.
type Snapshot struct {
	Time           time.Time `json:"timestamp"`
	TotalValue     float64   `json:"portfolio_value"`
	Cash           float64   `json:"cash"`
	PositionsValue float64   `json:"positions_value"`

	// Filled in by the collector.
	Peak     float64 `json:"peak"`
	Drawdown float64 `json:"drawdown"`
}

// Stats is the result of a run.
type Stats struct {
	Periods     int     `json:"periods"`
	Peak        float64 `json:"peak"`
	MaxDrawdown float64 `json:"max_drawdown"`
	MeanReturn  float64 `json:"mean_return"`
	StdevReturn float64 `json:"stdev_return"`
	Ratio       float64 `json:"sharpe_ratio"`
	TotalReturn float64 `json:"total_return"`
	FinalValue  float64 `json:"final_value"`
}

// Collector folds snapshots into peak, drawdown and return statistics.
// Record is O(1) apart from appending to the history. Mean and variance use
// Welford's update.
type Collector struct {
	history []Snapshot
	returns []float64

	peak        float64
	maxDrawdown float64

	n    int
	mean float64
	m2   float64

	prev    float64
	hasPrev bool
}

func NewCollector() *Collector {
	return &Collector{}
}

// Record folds a new snapshot into the statistics and appends it to the history.
func (c *Collector) Record(s Snapshot) error {
	if n := len(c.history); n > 0 && s.Time.Before(c.history[n-1].Time) {
		return fmt.Errorf("%w: %s before %s", ErrUnordered,
			s.Time.Format(time.RFC3339Nano), c.history[n-1].Time.Format(time.RFC3339Nano))
	}

	c.mark(&s)

	if c.hasPrev && c.prev > 0 {
		r := (s.TotalValue - c.prev) / c.prev
		c.returns = append(c.returns, r)
		c.n++
		delta := r - c.mean
		c.mean += delta / float64(c.n)
		c.m2 += delta * (r - c.mean)
	}
	c.prev = s.TotalValue
	c.hasPrev = true

	c.history = append(c.history, s)
	return nil
}

// Settle replaces the latest snapshot with the post-trade view of the same
// event. Fills happen at the event price so the total value does not move
// and no new return period is added.
func (c *Collector) Settle(s Snapshot) {
	n := len(c.history)
	if n == 0 {
		_ = c.Record(s)
		return
	}
	if s.Time.IsZero() {
		s.Time = c.history[n-1].Time
	}
	c.mark(&s)
	c.prev = s.TotalValue
	c.history[n-1] = s
}

func (c *Collector) mark(s *Snapshot) {
	if s.TotalValue > c.peak {
		c.peak = s.TotalValue
	}
	s.Peak = c.peak
	if c.peak > 0 {
		s.Drawdown = (c.peak - s.TotalValue) / c.peak
	}
	if s.Drawdown > c.maxDrawdown {
		c.maxDrawdown = s.Drawdown
	}
}

func (c *Collector) Len() int             { return len(c.history) }
func (c *Collector) Peak() float64        { return c.peak }
func (c *Collector) MaxDrawdown() float64 { return c.maxDrawdown }

// Last returns the most recent snapshot.
func (c *Collector) Last() (Snapshot, bool) {
	if len(c.history) == 0 {
		return Snapshot{}, false
	}
	return c.history[len(c.history)-1], true
}

// Snapshots returns a copy of the history.
func (c *Collector) Snapshots() []Snapshot {
	out := make([]Snapshot, len(c.history))
	copy(out, c.history)
	return out
}

// Returns returns a copy of the per-period return series.
func (c *Collector) Returns() []float64 {
	out := make([]float64, len(c.returns))
	copy(out, c.returns)
	return out
}

// Stdev is the population standard deviation of the returns.
func (c *Collector) Stdev() float64 {
	if c.n == 0 {
		return 0
	}
	v := c.m2 / float64(c.n)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Ratio is mean/stdev of returns, 0 when stdev is 0.
func (c *Collector) Ratio() float64 {
	sd := c.Stdev()
	if sd == 0 {
		return 0
	}
	return c.mean / sd
}

// Stats summarizes the history so far, measured from the first snapshot.
func (c *Collector) Stats() Stats {
	initial := 0.0
	if len(c.history) > 0 {
		initial = c.history[0].TotalValue
	}
	return c.Finalize(initial)
}

// Finalize summarizes the run against the initial portfolio value.
func (c *Collector) Finalize(initial float64) Stats {
	final := initial
	if s, ok := c.Last(); ok {
		final = s.TotalValue
	}

	total := 0.0
	if initial > 0 {
		total = (final - initial) / initial
	}

	return Stats{
		Periods:     c.n,
		Peak:        c.peak,
		MaxDrawdown: c.maxDrawdown,
		MeanReturn:  c.mean,
		StdevReturn: c.Stdev(),
		Ratio:       c.Ratio(),
		TotalReturn: total,
		FinalValue:  final,
	}
}

// Percent formats a fraction as "12.34%".
func Percent(x float64) string {
	return fmt.Sprintf("%.2f%%", x*100)
}
