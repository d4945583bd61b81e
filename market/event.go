package market

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Event is one market observation handed to strategies. Feeds produce it
// once and nothing downstream mutates it.
type Event struct {
	Symbol   string    `json:"symbol"`
	Time     time.Time `json:"timestamp"`
	Close    float64   `json:"price"`
	SMAShort float64   `json:"sma_short,omitempty"`
	SMALong  float64   `json:"sma_long,omitempty"`
}

// Validate reports whether the event can be processed at all. A failure here
// means the stream itself is malformed.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Symbol) == "" {
		return &ValidationError{Field: "symbol", Reason: "is required"}
	}
	if e.Time.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "is required"}
	}
	if !finite(e.Close) || e.Close <= 0 {
		return &ValidationError{Field: "price", Reason: fmt.Sprintf("must be a positive number, got %g", e.Close)}
	}
	// zero means the average is absent
	if !finite(e.SMAShort) || e.SMAShort < 0 {
		return &ValidationError{Field: "sma_short", Reason: fmt.Sprintf("must be a non-negative number, got %g", e.SMAShort)}
	}
	if !finite(e.SMALong) || e.SMALong < 0 {
		return &ValidationError{Field: "sma_long", Reason: fmt.Sprintf("must be a non-negative number, got %g", e.SMALong)}
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
