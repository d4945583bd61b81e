package kernel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noahterminal/trader/intent"
	"github.com/noahterminal/trader/ledger"
	"github.com/noahterminal/trader/market"
	"github.com/noahterminal/trader/risk"
	"github.com/noahterminal/trader/strategies"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 2, 5, 14, 0, 0, 0, time.UTC)

func at(minutes int) time.Time { return t0.Add(time.Duration(minutes) * time.Minute) }

func event(minutes int, close float64) market.Event {
	return market.Event{Symbol: "BTC", Time: at(minutes), Close: close}
}

func buy(q float64) market.Signal  { return market.Signal{Action: market.Buy, Symbol: "BTC", Quantity: q} }
func sell(q float64) market.Signal { return market.Signal{Action: market.Sell, Symbol: "BTC", Quantity: q} }

// scripted emits fixed signals at fixed event times.
type scripted struct {
	name  string
	plan  map[time.Time][]market.Signal
	mu    sync.Mutex
	fills []ledger.Trade
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) OnTick(ev market.Event, _ ledger.Account) []market.Signal {
	return s.plan[ev.Time]
}

func (s *scripted) OnOrderFill(tr ledger.Trade) {
	s.mu.Lock()
	s.fills = append(s.fills, tr)
	s.mu.Unlock()
}

func limits(size, loss float64, perHour int) risk.Limits {
	return risk.Limits{MaxPositionSize: size, MaxDailyLoss: loss, MaxTradesPerHour: perHour}
}

func newBacktest(cash float64, l risk.Limits) *Processor {
	return NewProcessor(NewSession(ledger.New(cash), risk.NewGate(l, risk.WithoutDecay()), nil))
}

func newLive(t *testing.T, cash float64, l risk.Limits, reg *strategies.Registry, gw *intent.SimGateway) *Processor {
	t.Helper()
	clock := func() time.Time { return t0 }
	s := NewSession(ledger.New(cash), risk.NewGate(l), nil, WithClock(clock))
	signer, err := intent.NewKeySigner("")
	require.NoError(t, err)
	pipe := intent.NewPipeline(reg, s, signer, gw, intent.WithClock(clock))
	return NewProcessor(s, WithPipeline(pipe))
}

func run(t *testing.T, p *Processor, events []market.Event, strats ...strategies.Strategy) []Outcome {
	t.Helper()
	var all []Outcome
	for _, ev := range events {
		res, err := p.Process(context.Background(), ev, strats...)
		require.NoError(t, err)
		all = append(all, res.Outcomes...)
	}
	return all
}

func TestProcess_SnapshotsReflectEarlierTradesFirst(t *testing.T) {
	t.Parallel()

	p := newBacktest(1000, limits(10, 0.5, 10))
	st := strategies.NewBuyOnce("BTC", 1)

	res, err := p.Process(context.Background(), event(0, 100), st)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, StatusFilled, res.Outcomes[0].Status)
	assert.InDelta(t, 1000, res.Snapshot.TotalValue, 1e-9)
	assert.InDelta(t, 900, res.Snapshot.Cash, 1e-9)
	assert.InDelta(t, 100, res.Snapshot.PositionsValue, 1e-9)
	assert.True(t, st.Filled())

	res, err = p.Process(context.Background(), event(1, 110), st)
	require.NoError(t, err)
	assert.Empty(t, res.Outcomes)
	assert.InDelta(t, 1010, res.Snapshot.TotalValue, 1e-9)

	snaps := p.Session().Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, at(0), snaps[0].Time)
	assert.InDelta(t, 900, snaps[0].Cash, 1e-9)

	stats := p.Session().Finalize()
	assert.InDelta(t, 0.01, stats.TotalReturn, 1e-12)
	assert.Equal(t, 1, stats.Periods)
}

func TestProcess_RiskRejectionLeavesStateAlone(t *testing.T) {
	t.Parallel()

	p := newBacktest(1_000_000, limits(0.5, 0.02, 10))
	outs := run(t, p, []market.Event{event(0, 100)}, strategies.NewBuyOnce("BTC", 1))

	require.Len(t, outs, 1)
	assert.Equal(t, StatusRejected, outs[0].Status)
	assert.Equal(t, string(risk.PositionSizeExceeded), outs[0].Reason)
	assert.True(t, errors.Is(outs[0].Err, risk.ErrRejected))
	assert.Empty(t, p.Session().Trades())
	assert.Equal(t, risk.Counters{}, p.Session().Counters())
	assert.InDelta(t, 1_000_000, p.Session().Account().Cash, 1e-9)
}

func TestProcess_LedgerRejections(t *testing.T) {
	t.Parallel()

	st := &scripted{name: "s", plan: map[time.Time][]market.Signal{
		at(0): {buy(1), sell(1), {Action: "HOLD", Symbol: "BTC", Quantity: 1}},
	}}
	p := newBacktest(50, limits(10, 0.5, 10))
	outs := run(t, p, []market.Event{event(0, 100)}, st)

	require.Len(t, outs, 3)
	assert.Equal(t, ReasonInsufficientFunds, outs[0].Reason)
	assert.Equal(t, ReasonNothingToSell, outs[1].Reason)
	assert.Equal(t, ReasonInvalidSignal, outs[2].Reason)
	for _, o := range outs {
		assert.Equal(t, StatusRejected, o.Status)
		assert.Equal(t, at(0), o.Time)
	}
	assert.Empty(t, st.fills)
}

func TestProcess_DailyLossBlocksFurtherTrades(t *testing.T) {
	t.Parallel()

	st := &scripted{name: "s", plan: map[time.Time][]market.Signal{
		at(0): {buy(1)},
		at(1): {sell(1)},
		at(2): {buy(1)},
	}}
	p := newBacktest(1000, limits(10, 0.005, 10))
	outs := run(t, p, []market.Event{event(0, 100), event(1, 90), event(2, 95)}, st)

	require.Len(t, outs, 3)
	assert.Equal(t, StatusFilled, outs[0].Status)
	assert.Equal(t, StatusFilled, outs[1].Status)
	assert.Equal(t, string(risk.DailyLossLimitExceeded), outs[2].Reason)

	// loss of 10 against a pre-trade value of 990
	c := p.Session().Counters()
	assert.InDelta(t, 10.0/990.0, c.DailyLosses, 1e-12)
	assert.Equal(t, 2, c.TradesThisHour)
	assert.Len(t, st.fills, 2)
}

func TestProcess_SellCapsAtHeld(t *testing.T) {
	t.Parallel()

	st := &scripted{name: "s", plan: map[time.Time][]market.Signal{
		at(0): {buy(2)},
		at(1): {sell(5)},
	}}
	p := newBacktest(1000, limits(10, 0.5, 10))
	outs := run(t, p, []market.Event{event(0, 100), event(1, 120)}, st)

	require.Len(t, outs, 2)
	require.NotNil(t, outs[1].Trade)
	assert.Equal(t, "2", outs[1].Trade.Quantity.String())
	assert.InDelta(t, 1040, p.Session().Account().Cash, 1e-9)
	assert.Empty(t, p.Session().Account().Positions)
}

func TestProcess_FatalEventErrors(t *testing.T) {
	t.Parallel()

	p := newBacktest(1000, risk.DefaultLimits())
	_, err := p.Process(context.Background(), market.Event{Symbol: "BTC", Time: t0}, strategies.Noop{})
	assert.True(t, errors.Is(err, ErrMalformedEvent))
	var ve *market.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = p.Process(context.Background(), event(5, 100), strategies.Noop{})
	require.NoError(t, err)
	_, err = p.Process(context.Background(), event(4, 100), strategies.Noop{})
	assert.True(t, errors.Is(err, ErrOutOfOrder))
	assert.Len(t, p.Session().Snapshots(), 1)
}

func TestSession_ConcurrentAdmissionNeverDoublePasses(t *testing.T) {
	t.Parallel()

	s := NewSession(ledger.New(1_000_000), risk.NewGate(limits(10, 0.5, 3)), nil, WithClock(func() time.Time { return t0 }))
	_, err := s.begin(event(0, 100))
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		holds  []intent.Hold
		denied atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := s.Admit("s", buy(1))
			if err != nil {
				assert.True(t, errors.Is(err, risk.ErrRejected))
				denied.Add(1)
				return
			}
			mu.Lock()
			holds = append(holds, h)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, holds, 3)
	assert.Equal(t, int32(17), denied.Load())

	for i, h := range holds {
		require.NoError(t, h.Commit(intent.Intent{ID: string(rune('a' + i))}, intent.SubmissionResult{Success: true}))
	}
	assert.Equal(t, 3, s.Counters().TradesThisHour)
	assert.Len(t, s.Trades(), 3)

	// a settled hold cannot be booked twice
	assert.Error(t, holds[0].Commit(intent.Intent{ID: "again"}, intent.SubmissionResult{Success: true}))
	assert.Len(t, s.Trades(), 3)
}

func TestSession_ReservedCashIsNotPromisedTwice(t *testing.T) {
	t.Parallel()

	s := NewSession(ledger.New(250), risk.NewGate(limits(10, 0.5, 10)), nil)
	_, err := s.begin(event(0, 100))
	require.NoError(t, err)

	h1, err := s.Admit("s", buy(1))
	require.NoError(t, err)
	_, err = s.Admit("s", buy(1))
	require.NoError(t, err)
	_, err = s.Admit("s", buy(1))
	assert.True(t, errors.Is(err, ledger.ErrInsufficientFunds))

	h1.Release()
	h1.Release()
	_, err = s.Admit("s", buy(1))
	assert.NoError(t, err)
	assert.Empty(t, s.Trades())
}

func TestProcess_BacktestAndLiveParity(t *testing.T) {
	t.Parallel()

	plan := map[time.Time][]market.Signal{
		at(1): {buy(2)},
		at(2): {sell(1), buy(20)},
		at(3): {sell(5)},
	}
	events := []market.Event{event(0, 100), event(1, 105), event(2, 95), event(3, 110)}
	l := limits(10, 0.5, 10)

	bt := newBacktest(1000, l)
	btOut := run(t, bt, events, &scripted{name: "s", plan: plan})

	reg := strategies.NewRegistry()
	liveStrat := &scripted{name: "s", plan: plan}
	require.NoError(t, reg.Register(liveStrat))
	require.NoError(t, reg.Activate("s"))
	lv := newLive(t, 1000, l, reg, intent.NewSimGateway())
	lvOut := run(t, lv, events, liveStrat)

	require.Len(t, lvOut, len(btOut))
	for i := range btOut {
		assert.Equal(t, btOut[i].Status, lvOut[i].Status, "outcome %d", i)
		assert.Equal(t, btOut[i].Reason, lvOut[i].Reason, "outcome %d", i)
	}
	assert.Equal(t, string(risk.PositionSizeExceeded), btOut[2].Reason)

	btTrades := bt.Session().Trades()
	lvTrades := lv.Session().Trades()
	require.Len(t, lvTrades, len(btTrades))
	for i := range lvTrades {
		assert.NotEmpty(t, lvTrades[i].IntentID)
		lvTrades[i].IntentID = ""
	}
	assert.Equal(t, btTrades, lvTrades)
	assert.Equal(t, bt.Session().Snapshots(), lv.Session().Snapshots())
	assert.Len(t, liveStrat.fills, 3)
}

func TestProcess_LiveVenueRejectionBooksNothing(t *testing.T) {
	t.Parallel()

	reg := strategies.NewRegistry()
	st := strategies.NewBuyOnce("BTC", 1)
	require.NoError(t, reg.Register(st))
	require.NoError(t, reg.Activate(st.Name()))

	p := newLive(t, 1000, limits(10, 0.5, 10), reg, intent.NewSimGateway(intent.WithRejectedSymbols("BTC")))
	outs := run(t, p, []market.Event{event(0, 100)}, st)

	require.Len(t, outs, 1)
	assert.Equal(t, StatusFailed, outs[0].Status)
	assert.Equal(t, ReasonVenueRejected, outs[0].Reason)
	require.NotNil(t, outs[0].Submission)
	assert.False(t, outs[0].Submission.Success)
	assert.Nil(t, outs[0].Trade)

	assert.Empty(t, p.Session().Trades())
	assert.Zero(t, p.Session().Counters().TradesThisHour)
	assert.InDelta(t, 1000, p.Session().Account().Cash, 1e-9)
	assert.False(t, st.Filled())
}

func TestProcess_LiveInactiveStrategy(t *testing.T) {
	t.Parallel()

	reg := strategies.NewRegistry()
	st := strategies.NewBuyOnce("BTC", 1)
	require.NoError(t, reg.Register(st))

	gw := intent.NewSimGateway()
	p := newLive(t, 1000, limits(10, 0.5, 10), reg, gw)
	outs := run(t, p, []market.Event{event(0, 100)}, st)

	require.Len(t, outs, 1)
	assert.Equal(t, StatusRejected, outs[0].Status)
	assert.Equal(t, ReasonStrategyInactive, outs[0].Reason)
	assert.Empty(t, gw.Submitted())
}

func TestProcess_LiveConcurrentStrategiesShareLimits(t *testing.T) {
	t.Parallel()

	reg := strategies.NewRegistry()
	a := &scripted{name: "a", plan: map[time.Time][]market.Signal{at(0): {buy(1)}}}
	b := &scripted{name: "b", plan: map[time.Time][]market.Signal{at(0): {buy(1)}}}
	for _, s := range []*scripted{a, b} {
		require.NoError(t, reg.Register(s))
		require.NoError(t, reg.Activate(s.name))
	}

	p := newLive(t, 1000, limits(10, 0.5, 1), reg, intent.NewSimGateway())
	outs := run(t, p, []market.Event{event(0, 100)}, a, b)

	require.Len(t, outs, 2)
	assert.Equal(t, "a", outs[0].Strategy)
	assert.Equal(t, "b", outs[1].Strategy)

	filled := 0
	for _, o := range outs {
		if o.Filled() {
			filled++
		} else {
			assert.Equal(t, string(risk.HourlyTradeLimitExceeded), o.Reason)
		}
	}
	assert.Equal(t, 1, filled)
	assert.Len(t, p.Session().Trades(), 1)
}
