package journal

import (
	"bytes"
	"testing"
	"time"

	"github.com/noahterminal/trader/kernel"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
	"github.com/noahterminal/trader/perf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	t.Parallel()

	j, _ := newTestSQLite(t)
	t.Cleanup(func() { _ = j.Close() })

	l := ledger.New(1000)
	tr, err := l.ApplyTrade(day, "BTC", market.Buy, 2, 100)
	require.NoError(t, err)

	res := kernel.Result{
		Event: market.Event{Symbol: "BTC", Time: day, Close: 100},
		Outcomes: []kernel.Outcome{
			{Time: day, Strategy: "s", Signal: market.Signal{Action: market.Buy, Symbol: "BTC", Quantity: 2}, Status: kernel.StatusFilled, Trade: &tr},
			{Time: day, Strategy: "s", Signal: market.Signal{Action: market.Buy, Symbol: "BTC", Quantity: 50},
				Status: kernel.StatusRejected, Reason: "POSITION_SIZE_EXCEEDED", Detail: "too big"},
		},
		Snapshot: perf.Snapshot{Time: day, TotalValue: 1000, Cash: 800, PositionsValue: 200, Peak: 1000},
	}

	rec := NewRecorder(j, "R1")
	require.NoError(t, rec.Record(res))
	require.NoError(t, rec.Finish(RunRecord{RunID: "ignored", Kind: "backtest", Created: day, Start: day, End: day, Trades: 1, Rejections: 1}))

	trades, err := j.ListTrades("R1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "s", trades[0].Strategy)
	assert.InDelta(t, -200, trades[0].CashDelta, 1e-9)

	rej, err := j.ListRejections("R1")
	require.NoError(t, err)
	require.Len(t, rej, 1)
	assert.InDelta(t, 50, rej[0].Quantity, 1e-9)

	snaps, err := j.ListSnapshots("R1")
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	run, err := j.GetRun("R1")
	require.NoError(t, err)
	assert.Equal(t, "backtest", run.Kind)

	// nil journal discards
	assert.NoError(t, NewRecorder(nil, "x").Record(res))
	assert.NoError(t, NewRecorder(nil, "x").Finish(RunRecord{}))
}

func TestWriteOrg(t *testing.T) {
	t.Parallel()

	run := RunRecord{RunID: "R1", Kind: "backtest", Created: day, Strategy: "ma-cross", Symbol: "BTC",
		Start: day, End: day.Add(48 * time.Hour), InitialValue: 1000, FinalValue: 1123.4, TotalReturn: 0.1234, MaxDrawdown: 0.05, Trades: 1}
	trades := []TradeRecord{{Seq: 1, Time: day, Action: "BUY", Quantity: 0.1, Price: 100}}

	var buf bytes.Buffer
	require.NoError(t, WriteOrg(&buf, run, trades))
	out := buf.String()

	assert.Contains(t, out, "* backtest: ma-cross BTC")
	assert.Contains(t, out, ":RUN_ID:      R1")
	assert.Contains(t, out, ":END_DATE:    2024-01-04")
	assert.Contains(t, out, ":RETURN_PCT:  12.34")
	assert.Contains(t, out, ":MAX_DD_PCT:  5.00")
	assert.Contains(t, out, "| 1 | 2024-01-02 03:04:05 | BUY | 0.1 | 100.00 | 0.00 |")
}
