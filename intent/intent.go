// Package intent carries accepted signals to an execution venue as signed,
// uniquely identified order intents.
package intent

import (
	"context"
	"encoding/json"
	"time"

	"github.com/noahterminal/trader/market"
)

// Version is stamped into every intent's metadata.
const Version = "1.0"

type Metadata struct {
	Strategy string `json:"strategy"`
	Version  string `json:"version"`
}

// Intent is the wire form of an accepted signal. Action is lower case.
type Intent struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"timestamp"`
}

// Signal converts the intent back to the signal it was built from.
func (in Intent) Signal() (market.Signal, error) {
	a, err := market.ParseAction(in.Action)
	if err != nil {
		return market.Signal{}, err
	}
	return market.Signal{Action: a, Symbol: in.Symbol, Quantity: in.Quantity}, nil
}

// Payload is the canonical byte form that gets signed.
func (in Intent) Payload() ([]byte, error) {
	return json.Marshal(in)
}

type SignedIntent struct {
	Intent    Intent `json:"intent"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

type SubmissionResult struct {
	Success      bool   `json:"success"`
	IntentID     string `json:"intent_id"`
	SubmissionID string `json:"submission_id,omitempty"`
	Message      string `json:"message"`
}

// Signer signs intents. Implementations may be slow and may fail.
type Signer interface {
	Sign(ctx context.Context, in Intent) (SignedIntent, error)
}

// Submitter hands signed intents to a venue.
type Submitter interface {
	Submit(ctx context.Context, si SignedIntent) (SubmissionResult, error)
}

// Registry reports whether a strategy may execute.
type Registry interface {
	IsActive(name string) bool
}

// Guard admits a signal against shared portfolio state and risk limits.
// Admission reserves whatever the signal would consume; the returned Hold
// must be either committed or released exactly once.
type Guard interface {
	Admit(strategy string, sig market.Signal) (Hold, error)
}

type Hold interface {
	// Commit books the submitted intent against the reservation.
	Commit(in Intent, res SubmissionResult) error
	// Release drops the reservation without booking anything.
	Release()
}
