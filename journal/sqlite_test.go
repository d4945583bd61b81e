package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	return j, path
}

var day = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	require.NoError(t, rows.Err())

	for _, table := range []string{"runs", "trades", "snapshots", "rejections"} {
		assert.True(t, found[table], table)
	}
}

func TestSQLiteTradesRoundTrip(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	second := TradeRecord{RunID: "R1", Seq: 2, Time: day.Add(time.Hour), Strategy: "ma-cross", Symbol: "BTC",
		Action: "SELL", Quantity: 0.5, Price: 110, CashDelta: 55, RealizedPL: 5}
	first := TradeRecord{RunID: "R1", Seq: 1, Time: day, Strategy: "ma-cross", Symbol: "BTC",
		Action: "BUY", Quantity: 1, Price: 100, CashDelta: -100, IntentID: "01ABC"}

	require.NoError(t, j.RecordTrade(second))
	require.NoError(t, j.RecordTrade(first))
	require.NoError(t, j.RecordTrade(TradeRecord{RunID: "R2", Seq: 1, Time: day, Action: "BUY"}))

	got, err := j.ListTrades("R1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, 1, got[0].Seq)
	assert.Equal(t, "01ABC", got[0].IntentID)
	assert.True(t, got[0].Time.Equal(day))
	assert.InDelta(t, -100, got[0].CashDelta, 1e-9)
	assert.Equal(t, "SELL", got[1].Action)
	assert.InDelta(t, 5, got[1].RealizedPL, 1e-9)

	// (run_id, seq) is unique
	assert.Error(t, j.RecordTrade(first))
}

func TestSQLiteSnapshotsAndRejections(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	for i, v := range []float64{100, 90, 120} {
		require.NoError(t, j.RecordSnapshot(SnapshotRecord{RunID: "R1", Time: day.Add(time.Duration(i) * time.Minute), TotalValue: v}))
	}
	require.NoError(t, j.RecordRejection(RejectionRecord{RunID: "R1", Time: day, Strategy: "s", Symbol: "BTC",
		Action: "BUY", Quantity: 5, Status: "rejected", Reason: "POSITION_SIZE_EXCEEDED", Detail: "too big"}))

	snaps, err := j.ListSnapshots("R1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.InDelta(t, 90, snaps[1].TotalValue, 1e-9)

	rej, err := j.ListRejections("R1")
	require.NoError(t, err)
	require.Len(t, rej, 1)
	assert.Equal(t, "POSITION_SIZE_EXCEEDED", rej[0].Reason)
	assert.Equal(t, "too big", rej[0].Detail)

	none, err := j.ListSnapshots("missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteRuns(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	older := RunRecord{RunID: "A", Kind: "backtest", Created: day, Strategy: "noop", Symbol: "BTC",
		Start: day, End: day.Add(time.Hour), InitialValue: 1000, FinalValue: 1000}
	newer := older
	newer.RunID = "B"
	newer.Created = day.Add(time.Minute)
	newer.FinalValue = 1100
	newer.TotalReturn = 0.1
	newer.Trades = 3

	require.NoError(t, j.RecordRun(older))
	require.NoError(t, j.RecordRun(newer))

	runs, err := j.ListRuns()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "B", runs[0].RunID)
	assert.Equal(t, "A", runs[1].RunID)

	got, err := j.GetRun("B")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Trades)
	assert.InDelta(t, 0.1, got.TotalReturn, 1e-12)
	assert.True(t, got.End.Equal(day.Add(time.Hour)))

	// re-recording replaces
	newer.Trades = 4
	require.NoError(t, j.RecordRun(newer))
	got, err = j.GetRun("B")
	require.NoError(t, err)
	assert.Equal(t, 4, got.Trades)

	_, err = j.GetRun("missing")
	assert.Error(t, err)
}
