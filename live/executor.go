package live

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/noahterminal/trader/internal/id"
	"github.com/noahterminal/trader/internal/logging"
	"github.com/noahterminal/trader/internal/telemetry"
	"github.com/noahterminal/trader/journal"
	"github.com/noahterminal/trader/kernel"
	"github.com/noahterminal/trader/market"
	"github.com/noahterminal/trader/perf"
	"github.com/noahterminal/trader/strategies"
	"go.uber.org/zap"
)

const defaultBuffer = 64

// Executor feeds a Stream through a live Processor until ctx is cancelled
// or the stream ends.
//
// Cancellation stops new events from being dequeued. An event already being
// processed runs to completion with a context that is not cancelled, so a
// submitted intent is always committed or released.
type Executor struct {
	Processor *kernel.Processor
	Registry  *strategies.Registry
	Stream    Stream

	Journal   journal.Journal
	SessionID string
	Metrics   *telemetry.Metrics
	Logger    *zap.Logger

	// OnOutcome is called for every outcome in the order produced.
	OnOutcome func(kernel.Outcome)

	// Buffer is the queue depth between the stream and the processor.
	Buffer int
}

// Summary describes a finished live session.
type Summary struct {
	SessionID  string     `json:"session_id"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	Events     int        `json:"events"`
	Dropped    int        `json:"dropped"`
	Trades     int        `json:"trades"`
	Rejections int        `json:"rejections"`
	Stats      perf.Stats `json:"stats"`
}

func (e *Executor) Run(ctx context.Context) (Summary, error) {
	if e.Processor == nil {
		return Summary{}, fmt.Errorf("live: Processor is required")
	}
	if !e.Processor.Live() {
		return Summary{}, fmt.Errorf("live: Processor has no intent pipeline")
	}
	if e.Registry == nil {
		return Summary{}, fmt.Errorf("live: Registry is required")
	}
	if e.Stream == nil {
		return Summary{}, fmt.Errorf("live: Stream is required")
	}

	sessionID := e.SessionID
	if sessionID == "" {
		sessionID = id.New()
	}
	log := logging.OrNop(e.Logger).With(zap.String("session", sessionID))
	rec := journal.NewRecorder(e.Journal, sessionID)

	buf := e.Buffer
	if buf <= 0 {
		buf = defaultBuffer
	}
	events := make(chan market.Event, buf)
	streamErr := make(chan error, 1)

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	go func() {
		err := e.Stream.Run(streamCtx, events)
		close(events)
		streamErr <- err
	}()

	sum := Summary{SessionID: sessionID}
	symbols := make(map[string]struct{})
	var (
		runErr     error
		streamDone bool
	)

	log.Info("live session started", zap.Strings("strategies", e.Registry.Names()))

loop:
	for {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break loop
		case ev, ok := <-events:
			if !ok {
				streamDone = true
				if err := <-streamErr; err != nil && !errors.Is(err, context.Canceled) {
					runErr = fmt.Errorf("live: stream: %w", err)
				}
				break loop
			}
			// select picks randomly when both are ready
			if ctx.Err() != nil {
				break loop
			}
			e.handle(context.WithoutCancel(ctx), ev, &sum, symbols, rec, log)
		}
	}

	stopStream()
	if !streamDone {
		<-streamErr
	}

	sess := e.Processor.Session()
	sum.Stats = sess.Finalize()
	sum.Trades = len(sess.Trades())

	err := rec.Finish(journal.RunRecord{
		Kind:         "live",
		Created:      time.Now().UTC(),
		Strategy:     strings.Join(e.Registry.Names(), ","),
		Symbol:       joinSymbols(symbols),
		Start:        sum.Start,
		End:          sum.End,
		InitialValue: sess.InitialCash(),
		FinalValue:   sum.Stats.FinalValue,
		TotalReturn:  sum.Stats.TotalReturn,
		MaxDrawdown:  sum.Stats.MaxDrawdown,
		Ratio:        sum.Stats.Ratio,
		Trades:       sum.Trades,
		Rejections:   sum.Rejections,
	})
	if err != nil {
		log.Warn("journal session summary failed", zap.Error(err))
	}

	log.Info("live session stopped",
		zap.Int("events", sum.Events),
		zap.Int("dropped", sum.Dropped),
		zap.Int("trades", sum.Trades),
		zap.String("return", perf.Percent(sum.Stats.TotalReturn)),
	)
	return sum, runErr
}

func (e *Executor) handle(ctx context.Context, ev market.Event, sum *Summary, symbols map[string]struct{}, rec *journal.Recorder, log *zap.Logger) {
	res, err := e.Processor.Process(ctx, ev, e.Registry.Active()...)
	if err != nil {
		// A live feed can replay or garble a tick after a reconnect. The
		// session keeps running.
		sum.Dropped++
		log.Warn("dropping market event", zap.String("symbol", ev.Symbol), zap.Time("time", ev.Time), zap.Error(err))
		return
	}

	sum.Events++
	if sum.Start.IsZero() {
		sum.Start = ev.Time
	}
	sum.End = ev.Time
	symbols[ev.Symbol] = struct{}{}

	e.Metrics.Event(ev.Symbol)
	e.Metrics.Portfolio(res.Snapshot.TotalValue, res.Snapshot.Drawdown)

	for _, o := range res.Outcomes {
		e.Metrics.Outcome(o.Strategy, string(o.Status))
		if !o.Filled() {
			sum.Rejections++
		}
		if e.OnOutcome != nil {
			e.OnOutcome(o)
		}
	}
	if err := rec.Record(res); err != nil {
		log.Warn("journal write failed", zap.Error(err))
	}
}

func joinSymbols(set map[string]struct{}) string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	slices.Sort(out)
	return strings.Join(out, ",")
}
