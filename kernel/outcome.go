package kernel

import (
	"errors"
	"time"

	"github.com/noahterminal/trader/intent"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
	"github.com/noahterminal/trader/risk"
)

type Status string

const (
	StatusFilled   Status = "filled"
	StatusRejected Status = "rejected"
	StatusFailed   Status = "failed"
)

// Reason codes for signals that did not fill. Risk rejections use the
// risk package's codes.
const (
	ReasonInvalidSignal     = "INVALID_SIGNAL"
	ReasonInsufficientFunds = "INSUFFICIENT_FUNDS"
	ReasonNothingToSell     = "NOTHING_TO_SELL"
	ReasonNoPrice           = "NO_PRICE"
	ReasonStrategyInactive  = "STRATEGY_INACTIVE"
	ReasonSigning           = "SIGNING_ERROR"
	ReasonSubmission        = "SUBMISSION_ERROR"
	ReasonVenueRejected     = "VENUE_REJECTED"
	ReasonError             = "ERROR"
)

// Outcome is what happened to one signal.
type Outcome struct {
	Time     time.Time     `json:"timestamp"`
	Strategy string        `json:"strategy"`
	Signal   market.Signal `json:"signal"`
	Status   Status        `json:"status"`
	Reason   string        `json:"reason,omitempty"`
	Detail   string        `json:"detail,omitempty"`

	Trade      *ledger.Trade            `json:"trade,omitempty"`
	Submission *intent.SubmissionResult `json:"submission,omitempty"`

	Err error `json:"-"`
}

func (o Outcome) Filled() bool { return o.Status == StatusFilled }

// classify maps a signal error to a status and reason code.
func classify(err error) (Status, string) {
	var (
		v  *risk.Violation
		ve *market.ValidationError
		se *intent.SigningError
		su *intent.SubmissionError
	)
	switch {
	case errors.As(err, &v):
		return StatusRejected, string(v.Code)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return StatusRejected, ReasonInsufficientFunds
	case errors.Is(err, ledger.ErrNothingToSell):
		return StatusRejected, ReasonNothingToSell
	case errors.Is(err, ErrNoPrice):
		return StatusRejected, ReasonNoPrice
	case errors.Is(err, intent.ErrStrategyInactive):
		return StatusRejected, ReasonStrategyInactive
	case errors.As(err, &ve):
		return StatusRejected, ReasonInvalidSignal
	case errors.As(err, &se):
		return StatusFailed, ReasonSigning
	case errors.As(err, &su):
		return StatusFailed, ReasonSubmission
	case errors.Is(err, intent.ErrVenueRejected):
		return StatusFailed, ReasonVenueRejected
	default:
		return StatusFailed, ReasonError
	}
}
