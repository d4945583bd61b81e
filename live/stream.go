// Package live drives the signal processing kernel from a continuous
// market event stream.
package live

import (
	"context"
	"time"

	"github.com/noahterminal/trader/market"
)

// Stream pushes market events onto out until ctx is cancelled or the source
// ends. It must not close out.
type Stream interface {
	Run(ctx context.Context, out chan<- market.Event) error
}

// SliceStream replays fixed events, optionally paced, then ends.
type SliceStream struct {
	Events   []market.Event
	Interval time.Duration
}

func (s *SliceStream) Run(ctx context.Context, out chan<- market.Event) error {
	for i, ev := range s.Events {
		if i > 0 && s.Interval > 0 {
			select {
			case <-time.After(s.Interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ChanStream forwards events from a channel until it is closed.
type ChanStream <-chan market.Event

func (c ChanStream) Run(ctx context.Context, out chan<- market.Event) error {
	for {
		select {
		case ev, ok := <-c:
			if !ok {
				return nil
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
