package intent

import (
	"context"
	"fmt"
	"sync"

	"github.com/noahterminal/trader/internal/id"
)

// SimGateway is an in-process venue that accepts every intent except those
// for symbols it was told to refuse.
type SimGateway struct {
	mu        sync.Mutex
	ids       func() string
	reject    map[string]bool
	submitted []SignedIntent
}

type GatewayOption func(*SimGateway)

func WithRejectedSymbols(symbols ...string) GatewayOption {
	return func(g *SimGateway) {
		for _, s := range symbols {
			g.reject[s] = true
		}
	}
}

func WithSubmissionIDs(next func() string) GatewayOption {
	return func(g *SimGateway) { g.ids = next }
}

func NewSimGateway(opts ...GatewayOption) *SimGateway {
	g := &SimGateway{
		ids:    id.New,
		reject: make(map[string]bool),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *SimGateway) Submit(ctx context.Context, si SignedIntent) (SubmissionResult, error) {
	if err := ctx.Err(); err != nil {
		return SubmissionResult{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.reject[si.Intent.Symbol] {
		return SubmissionResult{
			Success:  false,
			IntentID: si.Intent.ID,
			Message:  fmt.Sprintf("symbol %s not accepted", si.Intent.Symbol),
		}, nil
	}

	g.submitted = append(g.submitted, si)
	return SubmissionResult{
		Success:      true,
		IntentID:     si.Intent.ID,
		SubmissionID: g.ids(),
		Message:      "Intent submitted successfully",
	}, nil
}

// Submitted returns the accepted intents in arrival order.
func (g *SimGateway) Submitted() []SignedIntent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]SignedIntent, len(g.submitted))
	copy(out, g.submitted)
	return out
}
