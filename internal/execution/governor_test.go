package execution

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/risk"
	"crossguard/internal/signal"
	"crossguard/internal/store"
	"crossguard/internal/store/sqlite"
	"crossguard/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCycleLongEntryConfirmsOneTrade(t *testing.T) {
	h := newHarness(t, downThenPop)
	ctx := context.Background()

	out, err := h.gov.Cycle(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, signal.LongEntry, out.Signal)
	require.NotNil(t, out.Verdict)
	assert.True(t, out.Verdict.Allowed())
	require.NotNil(t, out.Intent)
	assert.Equal(t, types.IntentConfirmed, out.Intent.State)
	// 1000 × 0.5 × 10 / 100
	assert.InDelta(t, 50, out.Intent.FilledQty, 1e-9)

	trades, err := h.ledger.QueryTrades(ctx, store.TradeFilter{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, types.SideLong, trades[0].Side)
	assert.Equal(t, types.ActionOpenLong, trades[0].Action)
	assert.Nil(t, trades[0].RealizedPnL)
	assert.InDelta(t, 2.5, trades[0].Fee, 1e-9)

	flows, err := h.ledger.QueryFundFlows(ctx, store.FlowFilter{})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, types.FlowCommission, flows[0].Type)
	assert.InDelta(t, -2.5, flows[0].Amount, 1e-9)

	held, ok := h.gov.Tracker().Held("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 98, held.StopLoss, 1e-9)
	assert.InDelta(t, 104, held.TakeProfit, 1e-9)

	drifts, err := h.ledger.RecentDrifts(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, drifts)
	assert.Equal(t, 1, h.gw.placedCount())
	assert.Empty(t, h.gov.InFlight())
}

func TestTimeoutThenStatusFilledPlacesOnce(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.script = []placeStep{{err: exchange.Transient("create_order", context.DeadlineExceeded), accept: true}}

	intent, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentConfirmed, intent.State)
	assert.Equal(t, 1, intent.Attempts)
	assert.Equal(t, 1, h.gw.placedCount())
	assert.Equal(t, 1, h.gw.statusCalls)

	trades, err := h.ledger.QueryTrades(context.Background(), store.TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestTransientStatusRetriesQueryOnly(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.script = []placeStep{{err: exchange.Transient("create_order", errBoom), accept: true}}
	h.gw.statusErrs = []error{exchange.Transient("get_order", errBoom)}

	intent, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentConfirmed, intent.State)
	assert.Equal(t, 1, h.gw.placedCount())
	assert.Equal(t, 2, h.gw.statusCalls)
}

func TestRejectionFailsWithoutRetry(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.script = []placeStep{{err: exchange.Rejected("create_order", -2019, "Margin is insufficient.")}}

	intent, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentFailed, intent.State)
	assert.Contains(t, intent.Error, "-2019")
	assert.Equal(t, 1, h.gw.placedCount())
	assert.Zero(t, h.gw.statusCalls)

	trades, _ := h.ledger.QueryTrades(context.Background(), store.TradeFilter{})
	assert.Empty(t, trades)
}

func TestNotFoundResubmitsThenAbandons(t *testing.T) {
	h := newHarness(t, nil)
	lost := placeStep{err: exchange.Transient("create_order", errBoom)}
	h.gw.script = []placeStep{lost, lost, lost}

	intent, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentAbandoned, intent.State)
	assert.Equal(t, 3, intent.Attempts)
	assert.Equal(t, 3, h.gw.placedCount())

	for _, req := range h.gw.placed {
		assert.Equal(t, intent.ID, req.Key)
	}
	recent, err := h.ledger.RecentIntents(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, types.IntentAbandoned, recent[0].State)
}

func TestNotFoundThenResubmitSucceeds(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.script = []placeStep{{err: exchange.Transient("create_order", errBoom)}}

	intent, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenShort, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, types.IntentConfirmed, intent.State)
	assert.Equal(t, types.SideShort, intent.Side)
	assert.Equal(t, 2, h.gw.placedCount())

	trades, _ := h.ledger.QueryTrades(context.Background(), store.TradeFilter{})
	require.Len(t, trades, 1)
	assert.Equal(t, types.SideShort, trades[0].Side)
}

func TestPartialFillConfirmsFilledQuantity(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.script = []placeStep{{fraction: 0.4, status: exchange.StatusExpired}}

	intent, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, types.IntentConfirmed, intent.State)
	assert.InDelta(t, 4, intent.FilledQty, 1e-9)
	assert.Contains(t, intent.Error, "partial fill")

	held, ok := h.gov.Tracker().Held("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 4, held.Size, 1e-9)
}

func TestSingleIntentInFlightPerSymbol(t *testing.T) {
	h := newHarness(t, nil)
	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	h.gw.beforePlace = func() {
		once.Do(func() { close(entered) })
		<-gate
	}

	ctx := context.Background()
	var (
		wg    sync.WaitGroup
		first types.OrderIntent
		ferr  error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		first, ferr = h.gov.Execute(ctx, Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	}()
	<-entered

	_, err := h.gov.Execute(ctx, Request{Symbol: "btcusdt", Action: types.ActionOpenShort, Quantity: 1})
	assert.ErrorIs(t, err, ErrIntentInFlight)
	require.Len(t, h.gov.InFlight(), 1)
	assert.Equal(t, types.IntentPending, h.gov.InFlight()[0].State)

	close(gate)
	wg.Wait()
	require.NoError(t, ferr)
	assert.Equal(t, types.IntentConfirmed, first.State)
	assert.Equal(t, 1, h.gw.placedCount())
	assert.Empty(t, h.gov.InFlight())
}

func TestStopLossForcesCloseBeforeSignal(t *testing.T) {
	h := newHarness(t, steadyUp)
	h.gw.setPosition(types.Position{Symbol: "BTCUSDT", Side: types.SideLong, Size: 10, EntryPrice: 100})
	h.gw.setMark(97)
	ctx := context.Background()

	out, err := h.gov.Cycle(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.NotNil(t, out.Forced)
	assert.Equal(t, risk.TriggerStopLoss, out.Forced.Trigger)
	assert.Equal(t, signal.None, out.Signal)
	require.NotNil(t, out.Intent)
	assert.Equal(t, types.ActionClose, out.Intent.Action)
	assert.Equal(t, types.IntentConfirmed, out.Intent.State)

	flows, err := h.ledger.QueryFundFlows(ctx, store.FlowFilter{Type: types.FlowRealizedPnL})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.InDelta(t, -30, flows[0].Amount, 1e-9)

	counter, err := h.risk.Counter(ctx, h.gov.Clock().Now())
	require.NoError(t, err)
	assert.Equal(t, 1, counter.TradeCount)
	// 30 gross loss + 10 × 97 × 0.0005 close fee
	assert.InDelta(t, 30.485, counter.RealizedLoss, 1e-9)

	_, held := h.gov.Tracker().Held("BTCUSDT")
	assert.False(t, held)
	drifts, _ := h.ledger.RecentDrifts(ctx, 10)
	require.Len(t, drifts, 1)
	assert.Equal(t, types.DriftMissingLocally, drifts[0].Kind)
}

func TestRemoteOnlyPositionAdoptedThenTracked(t *testing.T) {
	h := newHarness(t, steadyUp)
	h.gw.setPosition(types.Position{Symbol: "BTCUSDT", Side: types.SideLong, Size: 1, EntryPrice: 100})
	ctx := context.Background()

	out, err := h.gov.Cycle(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, signal.None, out.Signal)
	assert.Nil(t, out.Intent)

	held, ok := h.gov.Tracker().Held("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 98, held.StopLoss, 1e-9)

	out, err = h.gov.Cycle(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, signal.None, out.Signal)
	drifts, _ := h.ledger.RecentDrifts(ctx, 10)
	assert.Len(t, drifts, 1)
	assert.Zero(t, h.gw.placedCount())
}

func TestDailyBreakerDeniesOpenAllowsClose(t *testing.T) {
	h := newHarness(t, downThenPop, func(_ *Config, l *risk.Limits) { l.DailyLossLimit = 20 })
	ctx := context.Background()
	require.NoError(t, h.ledger.SaveCounter(ctx, types.DailyRiskCounter{
		Day: types.DayKey(time.Now()), RealizedLoss: 25, TradeCount: 2, Tripped: true, UpdatedAt: time.Now(),
	}))

	out, err := h.gov.Cycle(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, signal.LongEntry, out.Signal)
	require.NotNil(t, out.Verdict)
	assert.Equal(t, risk.ReasonDailyLossLimit, out.Verdict.Reason)
	assert.Nil(t, out.Intent)
	assert.Zero(t, h.gw.placedCount())

	h.candles.closes = upThenDrop
	h.gw.setPosition(types.Position{Symbol: "BTCUSDT", Side: types.SideLong, Size: 1, EntryPrice: 100})
	out, err = h.gov.Cycle(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, signal.LongExit, out.Signal)
	require.NotNil(t, out.Intent)
	assert.Equal(t, types.IntentConfirmed, out.Intent.State)
}

func TestRecoverResolvesPendingWithoutResubmit(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	filled := types.OrderIntent{ID: "pending-filled", Symbol: "BTCUSDT", Action: types.ActionOpenLong, Side: types.SideLong,
		Quantity: 5, Leverage: 10, State: types.IntentPending, Attempts: 1, CreatedAt: now, UpdatedAt: now}
	lost := types.OrderIntent{ID: "pending-lost", Symbol: "ETHUSDT", Action: types.ActionOpenShort, Side: types.SideShort,
		Quantity: 1, Leverage: 10, State: types.IntentPending, Attempts: 1, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, h.ledger.SaveIntent(ctx, filled))
	require.NoError(t, h.ledger.SaveIntent(ctx, lost))
	h.gw.orders[filled.ID] = exchange.OrderResult{Key: filled.ID, OrderID: "1", Status: exchange.StatusFilled, FilledQty: 5, AvgPrice: 100}
	h.gw.setPosition(types.Position{Symbol: "BTCUSDT", Side: types.SideLong, Size: 5, EntryPrice: 100})

	require.NoError(t, h.gov.Recover(ctx, []string{"BTCUSDT", "ETHUSDT"}))
	assert.Zero(t, h.gw.placedCount())

	pending, err := h.ledger.PendingIntents(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	recent, err := h.ledger.RecentIntents(ctx, 10)
	require.NoError(t, err)
	states := map[string]types.IntentState{}
	for _, it := range recent {
		states[it.ID] = it.State
	}
	assert.Equal(t, types.IntentConfirmed, states[filled.ID])
	assert.Equal(t, types.IntentAbandoned, states[lost.ID])

	trades, _ := h.ledger.QueryTrades(ctx, store.TradeFilter{})
	assert.Len(t, trades, 1)
	drifts, _ := h.ledger.RecentDrifts(ctx, 10)
	assert.Empty(t, drifts)
}

type failingLedger struct {
	*sqlite.SqliteStore
}

func (failingLedger) SaveIntent(context.Context, types.OrderIntent) error { return errBoom }

func TestLedgerFailureBlocksSubmission(t *testing.T) {
	h := newHarness(t, nil)
	h.gov.ledger = failingLedger{h.ledger}

	_, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, h.gw.placedCount())
	assert.Empty(t, h.gov.InFlight())
}

func TestCloseWithoutPositionRefused(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionClose})
	assert.ErrorIs(t, err, ErrNoPosition)
}

func TestDrainRefusesNewIntents(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.gov.Drain(50*time.Millisecond))
	_, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	assert.True(t, errors.Is(err, ErrDraining))
}

func TestSizeRoundsDownToLotStep(t *testing.T) {
	h := newHarness(t, nil)
	qty, err := h.gov.size(context.Background(), "BTCUSDT", types.Balance{Available: 333.33}, 123.45)
	require.NoError(t, err)
	assert.Equal(t, 13.5, qty)

	assert.Equal(t, 0.01, roundDown(decimal.RequireFromString("0.0199"), 0.01))
	assert.Equal(t, 3.0, roundDown(decimal.RequireFromString("3.999"), 1))
}

func TestRealizedPnL(t *testing.T) {
	assert.InDelta(t, 9.5, netPnL(10, 0.5), 1e-12)
	assert.InDelta(t, 10, realizedPnL(types.SideLong, 100, 110, 1), 1e-12)
	assert.InDelta(t, -10, realizedPnL(types.SideShort, 100, 110, 1), 1e-12)
	assert.InDelta(t, 0.05, commission(1, 100, 0.0005), 1e-12)
}

func TestCandlesUnavailableSkipsCycle(t *testing.T) {
	h := newHarness(t, nil)
	h.candles.err = errBoom
	out, err := h.gov.Cycle(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, "candles unavailable", out.Note)
	assert.Len(t, h.gov.Outcomes(), 1)
}

func TestLateArrivalDuplicateKeyConfirms(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.rejectDuplicates = true
	// first status query misses the order, it lands right after; the resubmit is refused with -4116
	h.gw.script = []placeStep{{err: exchange.Transient("create_order", errBoom), late: true}}

	intent, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentConfirmed, intent.State)
	assert.Equal(t, 2, intent.Attempts)
	assert.Equal(t, 2, h.gw.placedCount())
	assert.Equal(t, 2, h.gw.statusCalls)
	for _, req := range h.gw.placed {
		assert.Equal(t, intent.ID, req.Key)
	}

	trades, err := h.ledger.QueryTrades(context.Background(), store.TradeFilter{})
	require.NoError(t, err)
	assert.Len(t, trades, 1)
	held, ok := h.gov.Tracker().Held("BTCUSDT")
	require.True(t, ok)
	assert.InDelta(t, 1, held.Size, 1e-9)
}

func TestDuplicateKeyNeverResubmits(t *testing.T) {
	h := newHarness(t, nil)
	h.gw.rejectDuplicates = true
	h.gw.script = []placeStep{{err: exchange.Transient("create_order", errBoom), accept: true}}
	nf := exchange.NotFound("get_order", "x")
	h.gw.statusErrs = []error{nf, nf, nf}

	intent, err := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentAbandoned, intent.State)
	// one original submit, one refused resubmit, then status polling only
	assert.Equal(t, 2, h.gw.placedCount())
	assert.Equal(t, 3, h.gw.statusCalls)
}

func TestNetLossIncludesCloseFee(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	_, err := h.gov.Execute(ctx, Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 10})
	require.NoError(t, err)

	h.gw.setMark(100.001)
	intent, err := h.gov.Execute(ctx, Request{Symbol: "BTCUSDT", Action: types.ActionClose, Side: types.SideLong})
	require.NoError(t, err)
	require.Equal(t, types.IntentConfirmed, intent.State)

	flows, err := h.ledger.QueryFundFlows(ctx, store.FlowFilter{Type: types.FlowRealizedPnL})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.InDelta(t, 0.01, flows[0].Amount, 1e-9)

	// gross +0.01, close fee 10 × 100.001 × 0.0005 = 0.500005
	counter, err := h.risk.Counter(ctx, h.gov.Clock().Now())
	require.NoError(t, err)
	assert.Equal(t, 1, counter.TradeCount)
	assert.InDelta(t, 0.490005, counter.RealizedLoss, 1e-9)
}

func TestShutdownBeforeSubmissionAbandons(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.gw.beforePlace = cancel
	h.gw.script = []placeStep{{err: exchange.Transient("create_order", errBoom)}}

	intent, err := h.gov.Execute(ctx, Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentAbandoned, intent.State)
	assert.Equal(t, "shutdown before submission", intent.Error)
	assert.Equal(t, 1, h.gw.placedCount())
	assert.Equal(t, 1, h.gw.statusCalls)

	trades, _ := h.ledger.QueryTrades(context.Background(), store.TradeFilter{})
	assert.Empty(t, trades)
	pending, err := h.ledger.PendingIntents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestShutdownKeepsPollingSubmittedOrder(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.gw.beforePlace = cancel
	h.gw.script = []placeStep{{err: exchange.Transient("create_order", errBoom), accept: true}}
	h.gw.statusErrs = []error{exchange.Transient("get_order", errBoom)}

	intent, err := h.gov.Execute(ctx, Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentConfirmed, intent.State)
	assert.Equal(t, 1, h.gw.placedCount())
	assert.Equal(t, 2, h.gw.statusCalls)

	trades, _ := h.ledger.QueryTrades(context.Background(), store.TradeFilter{})
	assert.Len(t, trades, 1)
}

func TestShutdownGraceExceededAbandons(t *testing.T) {
	h := newHarness(t, nil, func(c *Config, _ *risk.Limits) { c.MaxAttempts = 100 })
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks int
	h.gov.now = func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Second)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.gw.beforePlace = cancel
	h.gw.script = []placeStep{{err: exchange.Transient("create_order", errBoom), accept: true}}
	transient := exchange.Transient("get_order", errBoom)
	for i := 0; i < 10; i++ {
		h.gw.statusErrs = append(h.gw.statusErrs, transient)
	}

	intent, err := h.gov.Execute(ctx, Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, types.IntentAbandoned, intent.State)
	assert.Equal(t, "shutdown grace exceeded", intent.Error)
	assert.Less(t, intent.Attempts, 100)
	assert.Equal(t, 1, h.gw.placedCount())
}

func TestDrainWaitsForInFlightIntent(t *testing.T) {
	h := newHarness(t, nil)
	entered := make(chan struct{})
	gate := make(chan struct{})
	var once sync.Once
	h.gw.beforePlace = func() {
		once.Do(func() { close(entered) })
		<-gate
	}

	done := make(chan types.OrderIntent, 1)
	go func() {
		intent, _ := h.gov.Execute(context.Background(), Request{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 1})
		done <- intent
	}()
	<-entered

	err := h.gov.Drain(20 * time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "still in flight")

	_, err = h.gov.Execute(context.Background(), Request{Symbol: "ETHUSDT", Action: types.ActionOpenLong, Quantity: 1})
	assert.ErrorIs(t, err, ErrDraining)

	drained := make(chan error, 1)
	go func() { drained <- h.gov.Drain(2 * time.Second) }()
	close(gate)

	select {
	case err := <-drained:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not return")
	}
	intent := <-done
	assert.Equal(t, types.IntentConfirmed, intent.State)
	assert.Empty(t, h.gov.InFlight())
}

func TestEntrySkippedWhenSizeIsZero(t *testing.T) {
	cases := []struct {
		name      string
		available float64
		note      string
	}{
		{"empty balance", 0, "available balance is zero"},
		{"below lot step", 0.001, "size rounds to zero at lot step"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, downThenPop)
			h.gw.balance = types.Balance{Asset: "USDT", Total: tc.available, Available: tc.available}

			out, err := h.gov.Cycle(context.Background(), "BTCUSDT")
			require.NoError(t, err)
			assert.Equal(t, signal.LongEntry, out.Signal)
			assert.Equal(t, tc.note, out.Note)
			require.NotNil(t, out.Verdict)
			assert.False(t, out.Verdict.Allowed())
			assert.Nil(t, out.Intent)
			assert.Zero(t, h.gw.placedCount())
		})
	}
}
