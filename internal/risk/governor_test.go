package risk

import (
	"context"
	"testing"
	"time"

	"crossguard/internal/store"
	"crossguard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCounters struct {
	mock.Mock
}

func (m *mockCounters) LoadCounter(ctx context.Context, day string) (types.DailyRiskCounter, error) {
	args := m.Called(ctx, day)
	return args.Get(0).(types.DailyRiskCounter), args.Error(1)
}

func (m *mockCounters) SaveCounter(ctx context.Context, c types.DailyRiskCounter) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func defaultLimits() Limits {
	return Limits{StopLossPct: 0.02, TakeProfitPct: 0.05, MaxPositions: 2, DailyLossLimit: 100}
}

func TestEvaluate(t *testing.T) {
	g := New(defaultLimits(), nil)
	rich := types.Balance{Asset: "USDT", Total: 1000, Available: 1000}
	open := Proposal{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 0.1, Price: 50000, Leverage: 20}
	btcLong := types.Position{Symbol: "BTCUSDT", Side: types.SideLong, Size: 0.1}

	cases := []struct {
		name      string
		proposal  Proposal
		positions []types.Position
		counter   types.DailyRiskCounter
		balance   types.Balance
		want      Reason
		allowed   bool
	}{
		{"allow open", open, nil, types.DailyRiskCounter{}, rich, ReasonNone, true},
		{"loss ceiling reached", open, nil, types.DailyRiskCounter{RealizedLoss: 100}, rich, ReasonDailyLossLimit, false},
		{"tripped stays denied", open, nil, types.DailyRiskCounter{Tripped: true}, rich, ReasonDailyLossLimit, false},
		{"position exists", open, []types.Position{btcLong}, types.DailyRiskCounter{}, rich, ReasonPositionExists, false},
		{"max positions", open, []types.Position{{Symbol: "ETHUSDT"}, {Symbol: "SOLUSDT"}}, types.DailyRiskCounter{}, rich, ReasonMaxPositions, false},
		{"margin", open, nil, types.DailyRiskCounter{}, types.Balance{Available: 100}, ReasonInsufficientMargin, false},
		{"zero quantity", Proposal{Symbol: "BTCUSDT", Action: types.ActionOpenShort, Price: 1}, nil, types.DailyRiskCounter{}, rich, ReasonInsufficientMargin, false},
		{"close under breaker", Proposal{Symbol: "BTCUSDT", Action: types.ActionClose}, []types.Position{btcLong}, types.DailyRiskCounter{Tripped: true, RealizedLoss: 500}, types.Balance{}, ReasonNone, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := g.Evaluate(tc.proposal, tc.positions, tc.counter, tc.balance)
			assert.Equal(t, tc.allowed, v.Allowed(), v.String())
			assert.Equal(t, tc.want, v.Reason)
		})
	}
}

func TestEvaluateHedgeMode(t *testing.T) {
	limits := defaultLimits()
	limits.HedgeMode = true
	g := New(limits, nil)
	positions := []types.Position{{Symbol: "BTCUSDT", Side: types.SideLong, Size: 0.1}}
	bal := types.Balance{Available: 1000}
	short := Proposal{Symbol: "BTCUSDT", Action: types.ActionOpenShort, Quantity: 0.01, Price: 50000, Leverage: 20}
	assert.True(t, g.Evaluate(short, positions, types.DailyRiskCounter{}, bal).Allowed())
	short.Action = types.ActionOpenLong
	assert.Equal(t, ReasonPositionExists, g.Evaluate(short, positions, types.DailyRiskCounter{}, bal).Reason)
}

func TestCheckExits(t *testing.T) {
	g := New(defaultLimits(), nil)
	stop, take := g.Levels(types.SideLong, 100)
	assert.InDelta(t, 98.0, stop, 1e-9)
	assert.InDelta(t, 105.0, take, 1e-9)
	sStop, sTake := g.Levels(types.SideShort, 100)
	assert.InDelta(t, 102.0, sStop, 1e-9)
	assert.InDelta(t, 95.0, sTake, 1e-9)

	positions := []types.Position{
		{Symbol: "BTCUSDT", Side: types.SideLong, Size: 1, EntryPrice: 100, StopLoss: stop, TakeProfit: take},
		{Symbol: "ETHUSDT", Side: types.SideShort, Size: 1, EntryPrice: 100, StopLoss: sStop, TakeProfit: sTake},
		{Symbol: "SOLUSDT", Side: types.SideLong, Size: 1, EntryPrice: 100, StopLoss: stop, TakeProfit: take},
		{Symbol: "XRPUSDT", Side: types.SideLong, Size: 1, EntryPrice: 100, StopLoss: stop},
	}
	marks := map[string]float64{"BTCUSDT": 97.5, "ETHUSDT": 94, "SOLUSDT": 101}
	got := CheckExits(positions, marks)
	require.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT", got[0].Position.Symbol)
	assert.Equal(t, TriggerStopLoss, got[0].Trigger)
	assert.Equal(t, "ETHUSDT", got[1].Position.Symbol)
	assert.Equal(t, TriggerTakeProfit, got[1].Trigger)
}

func TestRecordCloseTripsBreaker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	counters := &mockCounters{}
	counters.On("LoadCounter", ctx, "2026-03-01").Return(types.DailyRiskCounter{Day: "2026-03-01", RealizedLoss: 60, TradeCount: 1}, nil).Once()
	counters.On("SaveCounter", ctx, mock.AnythingOfType("types.DailyRiskCounter")).Return(nil)

	var trips []types.DailyRiskCounter
	g := New(defaultLimits(), counters, WithTripHook(func(c types.DailyRiskCounter) { trips = append(trips, c) }))

	c, err := g.RecordClose(ctx, now, 25)
	require.NoError(t, err)
	assert.Equal(t, 2, c.TradeCount)
	assert.Equal(t, 60.0, c.RealizedLoss)
	assert.False(t, c.Tripped)

	c, err = g.RecordClose(ctx, now.Add(time.Hour), -45)
	require.NoError(t, err)
	assert.Equal(t, 105.0, c.RealizedLoss)
	assert.True(t, c.Tripped)
	require.Len(t, trips, 1)

	open := Proposal{Symbol: "BTCUSDT", Action: types.ActionOpenLong, Quantity: 0.001, Price: 100, Leverage: 1}
	v := g.Evaluate(open, nil, c, types.Balance{Available: 1000})
	assert.Equal(t, ReasonDailyLossLimit, v.Reason)
	assert.True(t, g.Evaluate(Proposal{Symbol: "BTCUSDT", Action: types.ActionClose}, nil, c, types.Balance{}).Allowed())

	// raising the ceiling does not clear a tripped day
	limits := defaultLimits()
	limits.DailyLossLimit = 1000
	g.UpdateLimits(limits)
	cur, err := g.Counter(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, g.Evaluate(open, nil, cur, types.Balance{Available: 1000}).Allowed())

	counters.AssertExpectations(t)
}

func TestCounterRollsOverAtDayBoundary(t *testing.T) {
	ctx := context.Background()
	counters := &mockCounters{}
	counters.On("LoadCounter", ctx, "2026-03-01").Return(types.DailyRiskCounter{}, store.ErrNotFound).Once()
	counters.On("LoadCounter", ctx, "2026-03-02").Return(types.DailyRiskCounter{}, store.ErrNotFound).Once()
	counters.On("SaveCounter", ctx, mock.Anything).Return(nil)
	g := New(defaultLimits(), counters)

	late := time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)
	c, err := g.RecordClose(ctx, late, -150)
	require.NoError(t, err)
	assert.True(t, c.Tripped)

	next, err := g.Counter(ctx, late.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", next.Day)
	assert.False(t, next.Tripped)
	assert.Zero(t, next.RealizedLoss)
	counters.AssertExpectations(t)
}
