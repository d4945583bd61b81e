package journal

import (
	"errors"

	"github.com/noahterminal/trader/kernel"
)

// Recorder writes one run's processing results to a Journal. A Recorder
// with a nil Journal discards everything.
type Recorder struct {
	j     Journal
	runID string
}

func NewRecorder(j Journal, runID string) *Recorder {
	return &Recorder{j: j, runID: runID}
}

func (r *Recorder) RunID() string { return r.runID }

// Record stores the trades, rejections and final snapshot of one event.
func (r *Recorder) Record(res kernel.Result) error {
	if r == nil || r.j == nil {
		return nil
	}

	var errs []error
	for _, o := range res.Outcomes {
		if o.Trade != nil {
			errs = append(errs, r.j.RecordTrade(FromTrade(r.runID, o.Strategy, *o.Trade)))
			continue
		}
		errs = append(errs, r.j.RecordRejection(FromOutcome(r.runID, o)))
	}
	errs = append(errs, r.j.RecordSnapshot(FromSnapshot(r.runID, res.Snapshot)))
	return errors.Join(errs...)
}

// Finish stores the run summary under the recorder's run ID.
func (r *Recorder) Finish(run RunRecord) error {
	if r == nil || r.j == nil {
		return nil
	}
	run.RunID = r.runID
	return r.j.RecordRun(run)
}

func FromOutcome(runID string, o kernel.Outcome) RejectionRecord {
	return RejectionRecord{
		RunID:    runID,
		Time:     o.Time,
		Strategy: o.Strategy,
		Symbol:   o.Signal.Symbol,
		Action:   string(o.Signal.Action),
		Quantity: o.Signal.Quantity,
		Status:   string(o.Status),
		Reason:   o.Reason,
		Detail:   o.Detail,
	}
}
