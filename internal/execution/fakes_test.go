package execution

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/market"
	"crossguard/internal/reconcile"
	"crossguard/internal/risk"
	"crossguard/internal/signal"
	"crossguard/internal/store/sqlite"
	"crossguard/internal/types"

	"github.com/stretchr/testify/require"
)

// placeStep scripts one PlaceOrder call.
type placeStep struct {
	err error
	// accept: the order reaches the exchange even though err is returned.
	accept bool
	// late: the order reaches the exchange only after the next status query missed it.
	late bool
	// fraction of the quantity filled; 0 means full.
	fraction float64
	status   exchange.OrderStatus
}

type fakeGateway struct {
	mu          sync.Mutex
	mark        float64
	step        float64
	balance     types.Balance
	positions   map[string]types.Position
	orders      map[string]exchange.OrderResult
	script      []placeStep
	statusErrs  []error
	placed      []exchange.OrderRequest
	statusCalls int
	seq         int
	beforePlace func()
	// rejectDuplicates answers a reused key like Binance does (-4116) instead of echoing the order.
	rejectDuplicates bool
	delayed          map[string]exchange.OrderRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		mark:      100,
		step:      0.001,
		balance:   types.Balance{Asset: "USDT", Total: 1000, Available: 1000},
		positions: make(map[string]types.Position),
		orders:    make(map[string]exchange.OrderResult),
		delayed:   make(map[string]exchange.OrderRequest),
	}
}

func (f *fakeGateway) Name() string { return "fake" }

func (f *fakeGateway) setPosition(p types.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.positions[p.Symbol+"|"+string(p.Side)] = p
}

func (f *fakeGateway) setMark(v float64) {
	f.mu.Lock()
	f.mark = v
	f.mu.Unlock()
}

func (f *fakeGateway) placedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.placed)
}

func (f *fakeGateway) GetPositions(_ context.Context, symbol string) ([]types.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Position
	for _, p := range f.positions {
		if p.Symbol == symbol {
			p.MarkPrice = f.mark
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeGateway) GetBalance(context.Context) (types.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, nil
}

func (f *fakeGateway) PlaceOrder(_ context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if f.beforePlace != nil {
		f.beforePlace()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, req)
	if res, ok := f.orders[req.Key]; ok {
		if f.rejectDuplicates {
			return exchange.OrderResult{}, exchange.Duplicate("create_order", -4116, "ClientOrderId is duplicated.")
		}
		return res, nil
	}
	var st placeStep
	if len(f.script) > 0 {
		st, f.script = f.script[0], f.script[1:]
	}
	if st.late {
		f.delayed[req.Key] = req
		return exchange.OrderResult{}, st.err
	}
	if st.err != nil && !st.accept {
		return exchange.OrderResult{}, st.err
	}
	res := f.fillLocked(req, st)
	if st.err != nil {
		return exchange.OrderResult{}, st.err
	}
	return res, nil
}

func (f *fakeGateway) fillLocked(req exchange.OrderRequest, st placeStep) exchange.OrderResult {
	qty := req.Quantity
	if st.fraction > 0 {
		qty = req.Quantity * st.fraction
	}
	status := st.status
	if status == "" {
		status = exchange.StatusFilled
	}
	f.seq++
	res := exchange.OrderResult{Key: req.Key, OrderID: "ord-" + strconv.Itoa(f.seq), Status: status, FilledQty: qty, AvgPrice: f.mark}
	f.orders[req.Key] = res
	f.applyLocked(req, qty)
	return res
}

func (f *fakeGateway) applyLocked(req exchange.OrderRequest, qty float64) {
	if req.ReduceOnly {
		side := types.SideLong
		if req.Side == exchange.Buy {
			side = types.SideShort
		}
		key := req.Symbol + "|" + string(side)
		p := f.positions[key]
		p.Size -= qty
		if p.Size <= 1e-12 {
			delete(f.positions, key)
		} else {
			f.positions[key] = p
		}
		return
	}
	side := types.SideLong
	if req.Side == exchange.Sell {
		side = types.SideShort
	}
	key := req.Symbol + "|" + string(side)
	p := f.positions[key]
	p.Symbol, p.Side, p.EntryPrice = req.Symbol, side, f.mark
	p.Size += qty
	f.positions[key] = p
}

func (f *fakeGateway) GetOrderStatus(_ context.Context, _ string, key string) (exchange.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.statusErrs) > 0 {
		err := f.statusErrs[0]
		f.statusErrs = f.statusErrs[1:]
		if err != nil {
			return exchange.OrderResult{}, err
		}
	}
	res, ok := f.orders[key]
	if !ok {
		if req, late := f.delayed[key]; late {
			delete(f.delayed, key)
			f.fillLocked(req, placeStep{})
		}
		return exchange.OrderResult{Key: key}, exchange.NotFound("get_order", key)
	}
	return res, nil
}

func (f *fakeGateway) GetMarkPrice(context.Context, string) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mark, nil
}

func (f *fakeGateway) ServerTime(context.Context) (time.Time, error) { return time.Now(), nil }

func (f *fakeGateway) LotStep(context.Context, string) (float64, error) { return f.step, nil }

type fakeCandles struct {
	closes []float64
	err    error
}

func (c *fakeCandles) FetchHistory(_ context.Context, _ string, _ string, _ int) ([]market.Candle, error) {
	if c.err != nil {
		return nil, c.err
	}
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, 0, len(c.closes))
	for i, v := range c.closes {
		open := base.Add(time.Duration(i) * 15 * time.Minute)
		out = append(out, market.Candle{OpenTime: open.UnixMilli(), CloseTime: open.Add(15*time.Minute).UnixMilli() - 1, Close: v})
	}
	return out, nil
}

type harness struct {
	gw      *fakeGateway
	ledger  *sqlite.SqliteStore
	risk    *risk.Governor
	candles *fakeCandles
	gov     *Governor
}

var (
	downThenPop = []float64{100, 99, 98, 97, 96, 95, 94, 100}
	upThenDrop  = []float64{100, 101, 102, 103, 104, 105, 106, 100}
	steadyUp    = []float64{100, 101, 102, 103, 104, 105, 106, 107}
)

func testConfig() Config {
	return Config{
		Symbols:          []string{"BTCUSDT"},
		Interval:         "15m",
		KlineLimit:       50,
		Leverage:         10,
		PositionFraction: 0.5,
		CommissionRate:   0.0005,
		Asset:            "USDT",
		MaxAttempts:      3,
		RetryBackoff:     time.Millisecond,
		MaxBackoff:       time.Millisecond,
		CallTimeout:      time.Second,
		ShutdownGrace:    time.Second,
		FreshnessWindow:  time.Minute,
	}
}

func newHarness(t *testing.T, closes []float64, mutate ...func(*Config, *risk.Limits)) *harness {
	t.Helper()
	st, err := sqlite.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	cfg := testConfig()
	limits := risk.Limits{StopLossPct: 0.02, TakeProfitPct: 0.04, MaxPositions: 2, DailyLossLimit: 100}
	for _, m := range mutate {
		m(&cfg, &limits)
	}
	rg := risk.New(limits, st)
	tracker := reconcile.NewTracker(reconcile.New(rg.Levels, cfg.HedgeMode))
	gw := newFakeGateway()
	candles := &fakeCandles{closes: closes}
	gov := New(cfg, gw, st, rg, tracker, signal.New(signal.Params{EMAPeriod: 2, MAPeriod: 4}), candles)
	gov.sleep = func(context.Context, time.Duration) bool { return true }
	return &harness{gw: gw, ledger: st, risk: rg, candles: candles, gov: gov}
}

var errBoom = errors.New("boom")
