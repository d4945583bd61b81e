package risk

import (
	"errors"
	"fmt"

	"github.com/noahterminal/trader/market"
)

// Code identifies why the gate rejected a signal.
type Code string

const (
	PositionSizeExceeded     Code = "POSITION_SIZE_EXCEEDED"
	DailyLossLimitExceeded   Code = "DAILY_LOSS_LIMIT_EXCEEDED"
	HourlyTradeLimitExceeded Code = "HOURLY_TRADE_LIMIT_EXCEEDED"
)

// ErrRejected matches every Violation with errors.Is.
var ErrRejected = errors.New("risk: signal rejected")

// Violation is the first limit a signal failed.
type Violation struct {
	Code Code
	Msg  string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("risk: %s: %s", v.Code, v.Msg)
}

func (v *Violation) Is(target error) bool { return target == ErrRejected }

// Decision is the outcome of Evaluate.
type Decision struct {
	Allowed   bool
	Violation *Violation
}

// Err returns the violation as an error, or nil if the signal was allowed.
func (d Decision) Err() error {
	if d.Allowed || d.Violation == nil {
		return nil
	}
	return d.Violation
}

func reject(code Code, format string, args ...any) Decision {
	return Decision{Violation: &Violation{Code: code, Msg: fmt.Sprintf(format, args...)}}
}

// Evaluate checks a signal against counters and limits. Checks run in a fixed
// order and the first failure wins, so the rejection reason is deterministic.
// Evaluate never changes anything.
func Evaluate(sig market.Signal, c Counters, l Limits) Decision {
	if sig.Quantity > l.MaxPositionSize {
		return reject(PositionSizeExceeded,
			"quantity %g exceeds max position size %g", sig.Quantity, l.MaxPositionSize)
	}
	if c.DailyLosses >= l.MaxDailyLoss {
		return reject(DailyLossLimitExceeded,
			"daily losses %.4f%% reached limit %.4f%%", 100*c.DailyLosses, 100*l.MaxDailyLoss)
	}
	if c.TradesThisHour >= l.MaxTradesPerHour {
		return reject(HourlyTradeLimitExceeded,
			"trades this hour %d >= max %d", c.TradesThisHour, l.MaxTradesPerHour)
	}
	return Decision{Allowed: true}
}
