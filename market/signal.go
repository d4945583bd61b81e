package market

import (
	"fmt"
	"strings"
)

// Action is the side of a signal or trade.
type Action string

const (
	Buy  Action = "BUY"
	Sell Action = "SELL"
)

// ParseAction accepts "buy"/"sell" in any case.
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", &ValidationError{Field: "action", Reason: fmt.Sprintf("unknown action %q", s)}
	}
}

// Signal is a strategy's request to buy or sell. Quantity is whatever the
// strategy chose; the risk gate decides whether it is acceptable.
type Signal struct {
	Action   Action  `json:"action"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
}

func (s Signal) String() string {
	return fmt.Sprintf("%s %g %s", s.Action, s.Quantity, s.Symbol)
}

// Validate checks that the signal is well formed.
func (s Signal) Validate() error {
	if s.Action != Buy && s.Action != Sell {
		return &ValidationError{Field: "action", Reason: fmt.Sprintf("must be BUY or SELL, got %q", s.Action)}
	}
	if strings.TrimSpace(s.Symbol) == "" {
		return &ValidationError{Field: "symbol", Reason: "is required"}
	}
	if !finite(s.Quantity) || s.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: fmt.Sprintf("must be a positive number, got %g", s.Quantity)}
	}
	return nil
}

// ValidationError describes a malformed signal or event. It is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
