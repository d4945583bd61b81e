// Package journal persists trades, snapshots, rejected signals and run
// summaries.
package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/perf"
)

type TradeRecord struct {
	RunID      string
	Seq        int
	Time       time.Time
	Strategy   string
	Symbol     string
	Action     string
	Quantity   float64
	Price      float64
	CashDelta  float64
	RealizedPL float64
	IntentID   string
}

type SnapshotRecord struct {
	RunID          string
	Time           time.Time
	TotalValue     float64
	Cash           float64
	PositionsValue float64
	Peak           float64
	Drawdown       float64
}

// RejectionRecord is a signal that did not become a trade.
type RejectionRecord struct {
	RunID    string
	Time     time.Time
	Strategy string
	Symbol   string
	Action   string
	Quantity float64
	Status   string
	Reason   string
	Detail   string
}

// RunRecord summarizes one backtest run or live session.
type RunRecord struct {
	RunID        string
	Kind         string // backtest | live
	Created      time.Time
	Strategy     string
	Symbol       string
	Start        time.Time
	End          time.Time
	InitialValue float64
	FinalValue   float64
	TotalReturn  float64
	MaxDrawdown  float64
	Ratio        float64
	Trades       int
	Rejections   int
}

type Journal interface {
	RecordTrade(TradeRecord) error
	RecordSnapshot(SnapshotRecord) error
	RecordRejection(RejectionRecord) error
	RecordRun(RunRecord) error
	Close() error
}

func FromTrade(runID, strategy string, tr ledger.Trade) TradeRecord {
	return TradeRecord{
		RunID:      runID,
		Seq:        tr.Seq,
		Time:       tr.Time,
		Strategy:   strategy,
		Symbol:     tr.Symbol,
		Action:     string(tr.Action),
		Quantity:   tr.Quantity.InexactFloat64(),
		Price:      tr.Price.InexactFloat64(),
		CashDelta:  tr.CashDelta.InexactFloat64(),
		RealizedPL: tr.RealizedPL.InexactFloat64(),
		IntentID:   tr.IntentID,
	}
}

func FromSnapshot(runID string, s perf.Snapshot) SnapshotRecord {
	return SnapshotRecord{
		RunID:          runID,
		Time:           s.Time,
		TotalValue:     s.TotalValue,
		Cash:           s.Cash,
		PositionsValue: s.PositionsValue,
		Peak:           s.Peak,
		Drawdown:       s.Drawdown,
	}
}

// Open returns the journal for kind ("sqlite" or "csv") at path. An empty
// kind or "none" returns a nil Journal and no error.
func Open(kind, path string) (Journal, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "none":
		return nil, nil
	case "sqlite", "sqlite3":
		j, err := NewSQLite(path)
		if err != nil {
			return nil, err
		}
		return j, nil
	case "csv":
		j, err := NewCSV(path)
		if err != nil {
			return nil, err
		}
		return j, nil
	default:
		return nil, fmt.Errorf("journal: unknown type %q (supported: sqlite, csv, none)", kind)
	}
}
