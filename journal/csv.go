package journal

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// CSVJournal writes one CSV file per record type into a directory.
type CSVJournal struct {
	mu         sync.Mutex
	trades     *csv.Writer
	snapshots  *csv.Writer
	rejections *csv.Writer
	runs       *csv.Writer
	files      []*os.File
}

var (
	tradeHeader     = []string{"run_id", "seq", "time", "strategy", "symbol", "action", "quantity", "price", "cash_delta", "realized_pl", "intent_id"}
	snapshotHeader  = []string{"run_id", "time", "total_value", "cash", "positions_value", "peak", "drawdown"}
	rejectionHeader = []string{"run_id", "time", "strategy", "symbol", "action", "quantity", "status", "reason", "detail"}
	runHeader       = []string{"run_id", "kind", "created", "strategy", "symbol", "start", "end", "initial_value", "final_value", "total_return", "max_drawdown", "ratio", "trades", "rejections"}
)

// NewCSV creates trades.csv, snapshots.csv, rejections.csv and runs.csv in dir.
func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	j := &CSVJournal{}
	open := func(name string, header []string) (*csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		j.files = append(j.files, f)
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			return nil, err
		}
		w.Flush()
		return w, w.Error()
	}

	var err error
	if j.trades, err = open("trades.csv", tradeHeader); err == nil {
		if j.snapshots, err = open("snapshots.csv", snapshotHeader); err == nil {
			if j.rejections, err = open("rejections.csv", rejectionHeader); err == nil {
				j.runs, err = open("runs.csv", runHeader)
			}
		}
	}
	if err != nil {
		_ = j.closeFiles()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) write(w *csv.Writer, row []string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func (j *CSVJournal) RecordTrade(t TradeRecord) error {
	return j.write(j.trades, []string{
		t.RunID,
		strconv.Itoa(t.Seq),
		ts(t.Time),
		t.Strategy,
		t.Symbol,
		t.Action,
		f(t.Quantity),
		f(t.Price),
		f(t.CashDelta),
		f(t.RealizedPL),
		t.IntentID,
	})
}

func (j *CSVJournal) RecordSnapshot(s SnapshotRecord) error {
	return j.write(j.snapshots, []string{
		s.RunID,
		ts(s.Time),
		f(s.TotalValue),
		f(s.Cash),
		f(s.PositionsValue),
		f(s.Peak),
		f(s.Drawdown),
	})
}

func (j *CSVJournal) RecordRejection(r RejectionRecord) error {
	return j.write(j.rejections, []string{
		r.RunID,
		ts(r.Time),
		r.Strategy,
		r.Symbol,
		r.Action,
		f(r.Quantity),
		r.Status,
		r.Reason,
		r.Detail,
	})
}

func (j *CSVJournal) RecordRun(r RunRecord) error {
	return j.write(j.runs, []string{
		r.RunID,
		r.Kind,
		ts(r.Created),
		r.Strategy,
		r.Symbol,
		ts(r.Start),
		ts(r.End),
		f(r.InitialValue),
		f(r.FinalValue),
		f(r.TotalReturn),
		f(r.MaxDrawdown),
		f(r.Ratio),
		strconv.Itoa(r.Trades),
		strconv.Itoa(r.Rejections),
	})
}

func (j *CSVJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var errs []error
	for _, w := range []*csv.Writer{j.trades, j.snapshots, j.rejections, j.runs} {
		w.Flush()
		errs = append(errs, w.Error())
	}
	errs = append(errs, j.closeFiles())
	return errors.Join(errs...)
}

func (j *CSVJournal) closeFiles() error {
	var errs []error
	for _, fh := range j.files {
		errs = append(errs, fh.Close())
	}
	j.files = nil
	return errors.Join(errs...)
}

func f(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
