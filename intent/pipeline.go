package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/noahterminal/trader/internal/id"
	"github.com/noahterminal/trader/internal/logging"
	"github.com/noahterminal/trader/market"
	"go.uber.org/zap"
)

// Execution is what one Execute call produced. Fields are filled in as far
// as the pipeline got.
type Execution struct {
	Intent Intent           `json:"intent"`
	Signed SignedIntent     `json:"signed"`
	Result SubmissionResult `json:"result"`
}

type Option func(*Pipeline)

// WithClock sets the creation-time source. Defaults to time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithIDs sets the intent id source. Defaults to ULIDs.
func WithIDs(next func() string) Option {
	return func(p *Pipeline) { p.ids = next }
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) { p.log = logging.OrNop(l) }
}

// Pipeline turns accepted signals into submitted intents. Each step is
// attempted once; failures are returned to the caller.
type Pipeline struct {
	registry Registry
	guard    Guard
	signer   Signer
	sub      Submitter

	now func() time.Time
	ids func() string
	log *zap.Logger
}

func NewPipeline(reg Registry, guard Guard, signer Signer, sub Submitter, opts ...Option) *Pipeline {
	p := &Pipeline{
		registry: reg,
		guard:    guard,
		signer:   signer,
		sub:      sub,
		now:      time.Now,
		ids:      id.New,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Construct builds a fresh intent for sig.
func (p *Pipeline) Construct(sig market.Signal, strategy string) Intent {
	return Intent{
		ID:       p.ids(),
		Action:   strings.ToLower(string(sig.Action)),
		Symbol:   sig.Symbol,
		Quantity: sig.Quantity,
		Metadata: Metadata{
			Strategy: strategy,
			Version:  Version,
		},
		CreatedAt: p.now().UTC(),
	}
}

func (p *Pipeline) Sign(ctx context.Context, in Intent) (SignedIntent, error) {
	si, err := p.signer.Sign(ctx, in)
	if err != nil {
		return SignedIntent{}, &SigningError{IntentID: in.ID, Err: err}
	}
	return si, nil
}

func (p *Pipeline) Submit(ctx context.Context, si SignedIntent) (SubmissionResult, error) {
	res, err := p.sub.Submit(ctx, si)
	if err != nil {
		return SubmissionResult{}, &SubmissionError{IntentID: si.Intent.ID, Err: err}
	}
	return res, nil
}

// Execute runs sig for strategy through admission, construction, signing
// and submission. An inactive strategy or a rejected admission returns
// before anything is signed. The admission hold is committed only after
// the venue accepts; every other exit releases it.
func (p *Pipeline) Execute(ctx context.Context, strategy string, sig market.Signal) (Execution, error) {
	var ex Execution

	if p.registry == nil || !p.registry.IsActive(strategy) {
		return ex, fmt.Errorf("%w: %q", ErrStrategyInactive, strategy)
	}
	if err := sig.Validate(); err != nil {
		return ex, err
	}

	var hold Hold
	if p.guard != nil {
		h, err := p.guard.Admit(strategy, sig)
		if err != nil {
			return ex, err
		}
		hold = h
	}
	release := func() {
		if hold != nil {
			hold.Release()
		}
	}

	ex.Intent = p.Construct(sig, strategy)

	signed, err := p.Sign(ctx, ex.Intent)
	if err != nil {
		release()
		return ex, err
	}
	ex.Signed = signed

	res, err := p.Submit(ctx, signed)
	if err != nil {
		release()
		return ex, err
	}
	ex.Result = res

	if !res.Success {
		release()
		return ex, fmt.Errorf("%w: %s", ErrVenueRejected, res.Message)
	}

	if hold != nil {
		if err := hold.Commit(ex.Intent, res); err != nil {
			return ex, fmt.Errorf("intent %s: commit: %w", ex.Intent.ID, err)
		}
	}

	p.log.Debug("intent submitted",
		zap.String("intent_id", ex.Intent.ID),
		zap.String("submission_id", res.SubmissionID),
		zap.String("strategy", strategy),
		zap.String("symbol", sig.Symbol),
	)
	return ex, nil
}
