package kernel

import (
	"context"
	"fmt"

	"github.com/noahterminal/trader/intent"
	"github.com/noahterminal/trader/internal/logging"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
	"github.com/noahterminal/trader/perf"
	"github.com/noahterminal/trader/strategies"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Option func(*Processor)

// WithPipeline routes accepted signals through p instead of booking them
// directly. This is the live path.
func WithPipeline(p *intent.Pipeline) Option {
	return func(pr *Processor) { pr.pipe = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(pr *Processor) { pr.log = logging.OrNop(l) }
}

// Processor runs strategies over market events against a Session.
type Processor struct {
	s    *Session
	pipe *intent.Pipeline
	log  *zap.Logger
}

func NewProcessor(s *Session, opts ...Option) *Processor {
	p := &Processor{s: s, log: zap.NewNop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Processor) Session() *Session { return p.s }

// Live reports whether signals go through an intent pipeline.
func (p *Processor) Live() bool { return p.pipe != nil }

// Result is everything one event produced.
type Result struct {
	Event    market.Event  `json:"event"`
	Outcomes []Outcome     `json:"outcomes"`
	Snapshot perf.Snapshot `json:"snapshot"`
}

// Process runs one event through the strategies.
//
// The pre-trade snapshot is recorded first, so it reflects earlier trades
// only. Each strategy's signals are handled in the order produced. Without
// a pipeline the strategies run one after another; with a pipeline they run
// concurrently and share the session lock. The post-trade snapshot then
// replaces the event's entry.
//
// Only a malformed or out-of-order event returns an error. Rejected and
// failed signals are reported in the outcomes.
func (p *Processor) Process(ctx context.Context, ev market.Event, strats ...strategies.Strategy) (Result, error) {
	if err := ev.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	acct, err := p.s.begin(ev)
	if err != nil {
		return Result{}, err
	}

	perStrategy := make([][]Outcome, len(strats))
	if p.pipe == nil {
		for i, st := range strats {
			perStrategy[i] = p.run(ctx, ev, acct, st)
		}
	} else {
		var g errgroup.Group
		for i, st := range strats {
			i, st := i, st
			g.Go(func() error {
				perStrategy[i] = p.run(ctx, ev, acct, st)
				return nil
			})
		}
		_ = g.Wait()
	}

	res := Result{Event: ev, Snapshot: p.s.finish()}
	for _, outs := range perStrategy {
		res.Outcomes = append(res.Outcomes, outs...)
	}
	return res, nil
}

func (p *Processor) run(ctx context.Context, ev market.Event, acct ledger.Account, st strategies.Strategy) []Outcome {
	sigs := st.OnTick(ev, acct)
	if len(sigs) == 0 {
		return nil
	}

	outs := make([]Outcome, 0, len(sigs))
	for _, sig := range sigs {
		var o Outcome
		if p.pipe == nil {
			o = p.book(st.Name(), sig)
		} else {
			o = p.execute(ctx, st.Name(), sig)
		}
		o.Time = ev.Time
		p.logOutcome(o)
		if o.Trade != nil {
			st.OnOrderFill(*o.Trade)
		}
		outs = append(outs, o)
	}
	return outs
}

// book applies sig straight to the ledger.
func (p *Processor) book(name string, sig market.Signal) Outcome {
	o := Outcome{Strategy: name, Signal: sig}

	if err := sig.Validate(); err != nil {
		return failed(o, err)
	}
	h, err := p.s.admit(sig)
	if err != nil {
		return failed(o, err)
	}
	tr, err := h.settle("")
	if err != nil {
		return failed(o, err)
	}
	o.Status = StatusFilled
	o.Trade = &tr
	return o
}

// execute sends sig through the intent pipeline.
func (p *Processor) execute(ctx context.Context, name string, sig market.Signal) Outcome {
	o := Outcome{Strategy: name, Signal: sig}

	ex, err := p.pipe.Execute(ctx, name, sig)
	if ex.Result.IntentID != "" {
		res := ex.Result
		o.Submission = &res
	}
	if err != nil {
		return failed(o, err)
	}

	tr, ok := p.s.takeFill(ex.Intent.ID)
	if !ok {
		return failed(o, fmt.Errorf("kernel: no trade booked for intent %s", ex.Intent.ID))
	}
	o.Status = StatusFilled
	o.Trade = &tr
	return o
}

func failed(o Outcome, err error) Outcome {
	o.Status, o.Reason = classify(err)
	o.Detail = err.Error()
	o.Err = err
	return o
}

func (p *Processor) logOutcome(o Outcome) {
	switch o.Status {
	case StatusFilled:
		p.log.Info("trade",
			zap.String("strategy", o.Strategy),
			zap.String("symbol", o.Trade.Symbol),
			zap.String("action", string(o.Trade.Action)),
			zap.String("qty", o.Trade.Quantity.String()),
			zap.String("price", o.Trade.Price.String()),
		)
	case StatusRejected:
		p.log.Debug("signal rejected",
			zap.String("strategy", o.Strategy),
			zap.Stringer("signal", o.Signal),
			zap.String("reason", o.Reason),
			zap.String("detail", o.Detail),
		)
	default:
		p.log.Warn("signal failed",
			zap.String("strategy", o.Strategy),
			zap.Stringer("signal", o.Signal),
			zap.String("reason", o.Reason),
			zap.Error(o.Err),
		)
	}
}
