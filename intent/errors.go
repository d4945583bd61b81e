package intent

import (
	"errors"
	"fmt"
)

var (
	ErrStrategyInactive = errors.New("intent: strategy not registered or inactive")
	ErrVenueRejected    = errors.New("intent: venue rejected submission")
)

// SigningError wraps any signer fault. It is never retried by the pipeline.
type SigningError struct {
	IntentID string
	Err      error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("intent %s: signing failed: %v", e.IntentID, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }

// SubmissionError wraps any submitter fault. It is never retried by the pipeline.
type SubmissionError struct {
	IntentID string
	Err      error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("intent %s: submission failed: %v", e.IntentID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }
