package journal

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(run_id, seq, time, strategy, symbol, action, quantity, price, cash_delta, realized_pl, intent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Seq, t.Time.UTC(), t.Strategy, t.Symbol, t.Action,
		t.Quantity, t.Price, t.CashDelta, t.RealizedPL, t.IntentID,
	)
	return err
}

func (j *SQLite) RecordSnapshot(s SnapshotRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO snapshots
		(run_id, time, total_value, cash, positions_value, peak, drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Time.UTC(), s.TotalValue, s.Cash, s.PositionsValue, s.Peak, s.Drawdown,
	)
	return err
}

func (j *SQLite) RecordRejection(r RejectionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO rejections
		(run_id, time, strategy, symbol, action, quantity, status, reason, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Time.UTC(), r.Strategy, r.Symbol, r.Action, r.Quantity, r.Status, r.Reason, r.Detail,
	)
	return err
}

// RecordRun inserts or replaces the run summary.
func (j *SQLite) RecordRun(r RunRecord) error {
	_, err := j.db.Exec(`
		INSERT OR REPLACE INTO runs
		(run_id, kind, created, strategy, symbol, start_time, end_time,
		 initial_value, final_value, total_return, max_drawdown, ratio, trades, rejections)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Kind, r.Created.UTC(), r.Strategy, r.Symbol, r.Start.UTC(), r.End.UTC(),
		r.InitialValue, r.FinalValue, r.TotalReturn, r.MaxDrawdown, r.Ratio, r.Trades, r.Rejections,
	)
	return err
}

const runColumns = `run_id, kind, created, strategy, symbol, start_time, end_time,
	initial_value, final_value, total_return, max_drawdown, ratio, trades, rejections`

func scanRun(row interface{ Scan(...any) error }) (RunRecord, error) {
	var r RunRecord
	err := row.Scan(&r.RunID, &r.Kind, &r.Created, &r.Strategy, &r.Symbol, &r.Start, &r.End,
		&r.InitialValue, &r.FinalValue, &r.TotalReturn, &r.MaxDrawdown, &r.Ratio, &r.Trades, &r.Rejections)
	return r, err
}

// GetRun returns a single run by ID.
func (j *SQLite) GetRun(runID string) (RunRecord, error) {
	r, err := scanRun(j.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run %q not found", runID)
	}
	return r, err
}

// ListRuns returns every run, newest first.
func (j *SQLite) ListRuns() ([]RunRecord, error) {
	rows, err := j.db.Query(`SELECT ` + runColumns + ` FROM runs ORDER BY created DESC, run_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListTrades returns a run's trades in booking order.
func (j *SQLite) ListTrades(runID string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, seq, time, strategy, symbol, action, quantity, price, cash_delta, realized_pl, intent_id
		FROM trades
		WHERE run_id = ?
		ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.RunID, &t.Seq, &t.Time, &t.Strategy, &t.Symbol, &t.Action,
			&t.Quantity, &t.Price, &t.CashDelta, &t.RealizedPL, &t.IntentID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListSnapshots returns a run's snapshots in time order.
func (j *SQLite) ListSnapshots(runID string) ([]SnapshotRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, total_value, cash, positions_value, peak, drawdown
		FROM snapshots
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var s SnapshotRecord
		if err := rows.Scan(&s.RunID, &s.Time, &s.TotalValue, &s.Cash, &s.PositionsValue, &s.Peak, &s.Drawdown); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (j *SQLite) ListRejections(runID string) ([]RejectionRecord, error) {
	rows, err := j.db.Query(`
		SELECT run_id, time, strategy, symbol, action, quantity, status, reason, detail
		FROM rejections
		WHERE run_id = ?
		ORDER BY time ASC, rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RejectionRecord
	for rows.Next() {
		var r RejectionRecord
		if err := rows.Scan(&r.RunID, &r.Time, &r.Strategy, &r.Symbol, &r.Action,
			&r.Quantity, &r.Status, &r.Reason, &r.Detail); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
