// Package backtest replays historical market events through the signal
// processing kernel and reports the result.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noahterminal/trader/internal/id"
	"github.com/noahterminal/trader/internal/logging"
	"github.com/noahterminal/trader/journal"
	"github.com/noahterminal/trader/kernel"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/perf"
	"github.com/noahterminal/trader/risk"
	"github.com/noahterminal/trader/strategies"
	"go.uber.org/zap"
)

// Options controls the simulated account.
type Options struct {
	InitialCash float64
	Limits      risk.Limits

	// RollWindows lets the risk counters decay on the event clock. Off by
	// default: within one bounded run counters only accumulate.
	RollWindows bool
}

func DefaultOptions() Options {
	return Options{
		InitialCash: 100000,
		Limits:      risk.DefaultLimits(),
	}
}

// Runner drives a kernel over a feed for one strategy.
type Runner struct {
	Feed     EventFeed
	Strategy strategies.Strategy

	// Symbol restricts the run to one symbol. Empty accepts every event.
	Symbol  string
	Options Options

	// Journal is optional. RunID defaults to a fresh ULID when journaling.
	Journal journal.Journal
	RunID   string

	Logger *zap.Logger
}

// Run processes the whole feed. Rejected and failed signals are collected
// in the report; only a malformed stream or a cancelled ctx stops the run.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	if r.Feed == nil {
		return Report{}, fmt.Errorf("backtest: Feed is required")
	}
	defer r.Feed.Close()

	if r.Strategy == nil {
		return Report{}, fmt.Errorf("backtest: Strategy is required")
	}
	if r.Options.InitialCash <= 0 {
		return Report{}, fmt.Errorf("backtest: initial cash must be positive, got %v", r.Options.InitialCash)
	}
	if err := r.Options.Limits.Validate(); err != nil {
		return Report{}, fmt.Errorf("backtest: %w", err)
	}

	log := logging.OrNop(r.Logger).With(zap.String("strategy", r.Strategy.Name()))

	var gateOpts []risk.GateOption
	if !r.Options.RollWindows {
		gateOpts = append(gateOpts, risk.WithoutDecay())
	}
	sess := kernel.NewSession(
		ledger.New(r.Options.InitialCash),
		risk.NewGate(r.Options.Limits, gateOpts...),
		perf.NewCollector(),
	)
	proc := kernel.NewProcessor(sess, kernel.WithLogger(log))

	runID := r.RunID
	if runID == "" && r.Journal != nil {
		runID = id.New()
	}
	rec := journal.NewRecorder(r.Journal, runID)

	var (
		start, end time.Time
		symbol     = r.Symbol
		rejections []Rejection
		events     int
	)

	for {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}

		ev, ok, err := r.Feed.Next()
		if err != nil {
			if errors.Is(err, ErrMalformedStream) {
				return Report{}, err
			}
			return Report{}, fmt.Errorf("%w: %w", ErrMalformedStream, err)
		}
		if !ok {
			break
		}
		if r.Symbol != "" && ev.Symbol != r.Symbol {
			continue
		}

		res, err := proc.Process(ctx, ev, r.Strategy)
		if err != nil {
			return Report{}, fmt.Errorf("%w: %w", ErrMalformedStream, err)
		}
		events++

		if start.IsZero() {
			start = ev.Time
			if symbol == "" {
				symbol = ev.Symbol
			}
		}
		end = ev.Time

		for _, o := range res.Outcomes {
			if !o.Filled() {
				rejections = append(rejections, rejectionOf(o))
			}
		}
		if err := rec.Record(res); err != nil {
			log.Warn("journal write failed", zap.Error(err))
		}
	}

	stats := sess.Finalize()
	trades := sess.Trades()
	rep := Report{
		Strategy:         r.Strategy.Name(),
		Symbol:           symbol,
		Start:            start,
		End:              end,
		Events:           events,
		InitialValue:     r.Options.InitialCash,
		FinalValue:       stats.FinalValue,
		TotalReturn:      stats.TotalReturn,
		TotalReturnPct:   perf.Percent(stats.TotalReturn),
		MaxDrawdown:      stats.MaxDrawdown,
		MaxDrawdownPct:   perf.Percent(stats.MaxDrawdown),
		SharpeRatio:      stats.Ratio,
		TotalTrades:      len(trades),
		Trades:           trades,
		PortfolioHistory: sess.Snapshots(),
		Rejections:       rejections,
	}

	err := rec.Finish(journal.RunRecord{
		Kind:         "backtest",
		Created:      time.Now().UTC(),
		Strategy:     rep.Strategy,
		Symbol:       rep.Symbol,
		Start:        rep.Start,
		End:          rep.End,
		InitialValue: rep.InitialValue,
		FinalValue:   rep.FinalValue,
		TotalReturn:  rep.TotalReturn,
		MaxDrawdown:  rep.MaxDrawdown,
		Ratio:        rep.SharpeRatio,
		Trades:       rep.TotalTrades,
		Rejections:   len(rep.Rejections),
	})
	if err != nil {
		log.Warn("journal run summary failed", zap.Error(err))
	}

	log.Info("backtest finished",
		zap.String("run_id", runID),
		zap.Int("events", events),
		zap.Int("trades", rep.TotalTrades),
		zap.String("return", rep.TotalReturnPct),
	)
	return rep, nil
}
