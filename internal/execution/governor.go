package execution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/gateway/notifier"
	"crossguard/internal/logger"
	"crossguard/internal/market"
	"crossguard/internal/reconcile"
	"crossguard/internal/risk"
	"crossguard/internal/signal"
	"crossguard/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrIntentInFlight = errors.New("execution: intent already in flight for symbol")
	ErrNoPosition     = errors.New("execution: no open position to close")
	ErrDraining       = errors.New("execution: governor is draining")
)

// Ledger is the slice of the ledger the governor writes to.
type Ledger interface {
	SaveIntent(ctx context.Context, intent types.OrderIntent) error
	PendingIntents(ctx context.Context) ([]types.OrderIntent, error)
	RecordFill(ctx context.Context, intent types.OrderIntent, trade *types.TradeRecord, flows []types.FundFlowRecord) error
	AppendDrift(ctx context.Context, ev types.DriftEvent) error
}

// CandleSource provides closed-bar history for the signal.
type CandleSource interface {
	FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error)
}

// Request asks the governor for one exchange action.
type Request struct {
	Symbol string
	Action types.Action
	// Side selects the position for CLOSE in hedge mode; ignored for opens.
	Side types.Side
	// Quantity for CLOSE may be zero to close the whole position.
	Quantity float64
	Reason   string
}

type Option func(*Governor)

func WithNotifier(n notifier.TextNotifier) Option {
	return func(g *Governor) { g.notifier = n }
}

func WithCandleCache(c *market.Cache) Option {
	return func(g *Governor) { g.cache = c }
}

// Governor 是每个交易对的执行状态机：IDLE → INTENT_PENDING → 终态 → IDLE。
type Governor struct {
	cfg      Config
	gw       exchange.Gateway
	ledger   Ledger
	risk     *risk.Governor
	tracker  *reconcile.Tracker
	signals  *signal.Evaluator
	candles  CandleSource
	cache    *market.Cache
	clock    *ServerClock
	notifier notifier.TextNotifier

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu       sync.Mutex
	inflight map[string]types.OrderIntent
	outcomes map[string]Outcome
	draining bool
	wg       sync.WaitGroup

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

func New(cfg Config, gw exchange.Gateway, ledger Ledger, rg *risk.Governor, tracker *reconcile.Tracker, signals *signal.Evaluator, candles CandleSource, opts ...Option) *Governor {
	g := &Governor{
		cfg:      cfg.withDefaults(),
		gw:       gw,
		ledger:   ledger,
		risk:     rg,
		tracker:  tracker,
		signals:  signals,
		candles:  candles,
		clock:    NewServerClock(),
		locks:    make(map[string]*sync.Mutex),
		inflight: make(map[string]types.OrderIntent),
		outcomes: make(map[string]Outcome),
		now:      time.Now,
		sleep:    sleepWithContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Governor) Config() Config              { return g.cfg }
func (g *Governor) Tracker() *reconcile.Tracker { return g.tracker }
func (g *Governor) Clock() *ServerClock         { return g.clock }
func (g *Governor) Risk() *risk.Governor        { return g.risk }
func (g *Governor) Gateway() exchange.Gateway   { return g.gw }

// Positions returns the reconciled local book.
func (g *Governor) Positions() []types.Position { return g.tracker.All() }

// RiskCounter returns today's counter on the exchange clock.
func (g *Governor) RiskCounter(ctx context.Context) (types.DailyRiskCounter, error) {
	return g.risk.Counter(ctx, g.clock.Now())
}

func (g *Governor) RiskLimits() risk.Limits { return g.risk.Limits() }

func normSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func (g *Governor) symbolLock(symbol string) *sync.Mutex {
	g.locksMu.Lock()
	defer g.locksMu.Unlock()
	l, ok := g.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		g.locks[symbol] = l
	}
	return l
}

// InFlight returns the non-terminal intents keyed by symbol.
func (g *Governor) InFlight() []types.OrderIntent {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]types.OrderIntent, 0, len(g.inflight))
	for _, it := range g.inflight {
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (g *Governor) reserve(intent types.OrderIntent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.draining {
		return ErrDraining
	}
	if cur, ok := g.inflight[intent.Symbol]; ok {
		return fmt.Errorf("%w: %s (%s)", ErrIntentInFlight, intent.Symbol, cur.ID)
	}
	g.inflight[intent.Symbol] = intent
	g.wg.Add(1)
	return nil
}

func (g *Governor) release(symbol string) {
	g.mu.Lock()
	delete(g.inflight, symbol)
	g.mu.Unlock()
	g.wg.Done()
}

func (g *Governor) track(intent types.OrderIntent) {
	g.mu.Lock()
	if _, ok := g.inflight[intent.Symbol]; ok {
		g.inflight[intent.Symbol] = intent
	}
	g.mu.Unlock()
}

func (g *Governor) heldFor(symbol string, side types.Side) (types.Position, bool) {
	for _, p := range g.tracker.Positions(symbol) {
		if side == "" || p.Side == side {
			return p, true
		}
	}
	return types.Position{}, false
}

// Execute persists a PENDING intent and drives it to a terminal state.
// Exchange failures become intent states; the error is reserved for refusals and ledger failures.
func (g *Governor) Execute(ctx context.Context, req Request) (types.OrderIntent, error) {
	symbol := normSymbol(req.Symbol)
	intent := types.OrderIntent{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Action:   req.Action,
		Quantity: req.Quantity,
		Leverage: g.cfg.Leverage,
		State:    types.IntentPending,
		Reason:   req.Reason,
		DryRun:   g.cfg.DryRun,
	}
	switch req.Action {
	case types.ActionClose:
		held, ok := g.heldFor(symbol, req.Side)
		if !ok {
			return intent, fmt.Errorf("%w: %s", ErrNoPosition, symbol)
		}
		intent.Side = held.Side
		intent.EntryPrice = held.EntryPrice
		if intent.Quantity <= 0 || intent.Quantity > held.Size {
			intent.Quantity = held.Size
		}
	case types.ActionOpenLong, types.ActionOpenShort:
		intent.Side = req.Action.Side()
		if intent.Quantity <= 0 {
			return intent, fmt.Errorf("execution: quantity must be > 0 for %s", req.Action)
		}
	default:
		return intent, fmt.Errorf("execution: unknown action %q", req.Action)
	}
	now := g.now().UTC()
	intent.CreatedAt, intent.UpdatedAt = now, now

	if err := g.reserve(intent); err != nil {
		return intent, err
	}
	defer g.release(symbol)

	if err := g.save(ctx, &intent); err != nil {
		return intent, fmt.Errorf("persist intent %s: %w", intent.ID, err)
	}
	logger.Infof("下单意图 %s %s %s qty=%s reason=%s", intent.ID, symbol, intent.Action, fmtQty(intent.Quantity), intent.Reason)
	return g.drive(ctx, intent, g.orderRequest(intent), true)
}

func (g *Governor) orderRequest(intent types.OrderIntent) exchange.OrderRequest {
	req := exchange.OrderRequest{
		Key:      intent.ID,
		Symbol:   intent.Symbol,
		Side:     exchange.OrderSideFor(intent.Action, intent.Side),
		Type:     exchange.OrderTypeMarket,
		Quantity: intent.Quantity,
	}
	if g.cfg.HedgeMode {
		req.PositionSide = intent.Side
	} else {
		req.ReduceOnly = intent.Action == types.ActionClose
	}
	return req
}

// drive submits and, on any ambiguous outcome, queries status before deciding to resubmit.
// After ctx is cancelled only status queries run, bounded by ShutdownGrace.
func (g *Governor) drive(ctx context.Context, intent types.OrderIntent, req exchange.OrderRequest, allowSubmit bool) (types.OrderIntent, error) {
	run := context.WithoutCancel(ctx)
	maxAttempts := g.cfg.MaxAttempts
	if !allowSubmit {
		maxAttempts += intent.Attempts
	}
	var (
		submit   = allowSubmit
		last     exchange.OrderResult
		lastErr  error
		delay    = g.cfg.RetryBackoff
		deadline time.Time
		// the exchange reported the key as taken: never resubmit, only poll
		known bool
	)
	for {
		if ctx.Err() != nil {
			if deadline.IsZero() {
				deadline = g.now().Add(g.cfg.ShutdownGrace)
			}
			if submit {
				return g.finish(run, intent, last, "shutdown before submission")
			}
			if g.now().After(deadline) {
				return g.finish(run, intent, last, "shutdown grace exceeded")
			}
		}
		if intent.Attempts >= maxAttempts {
			return g.finish(run, intent, last, errText(lastErr, "max attempts reached"))
		}
		intent.Attempts++
		intent.UpdatedAt = g.now().UTC()
		if err := g.save(run, &intent); err != nil {
			return intent, fmt.Errorf("persist intent %s: %w", intent.ID, err)
		}

		if submit {
			res, err := g.place(run, req)
			switch {
			case err == nil && res.Status.Done():
				return g.settle(run, intent, res)
			case errors.Is(err, exchange.ErrRejected):
				return g.fail(run, intent, err)
			case errors.Is(err, exchange.ErrDuplicateKey):
				lastErr = err
				known = true
				logger.Warnf("下单 key 已存在 %s attempt=%d，查询订单状态: %v", intent.ID, intent.Attempts, err)
			case err != nil:
				lastErr = err
				logger.Warnf("下单结果未知 %s attempt=%d: %v", intent.ID, intent.Attempts, err)
			default:
				last = res
			}
		}

		res, err := g.status(run, req.Symbol, req.Key)
		switch {
		case err == nil && res.Status.Done():
			return g.settle(run, intent, res)
		case err == nil:
			last = res
			submit = false
		case errors.Is(err, exchange.ErrOrderNotFound):
			lastErr = err
			if !allowSubmit {
				return g.abandon(run, intent, "order not found on exchange")
			}
			submit = !known
		default:
			lastErr = err
			submit = false
		}
		g.sleep(run, delay)
		delay = nextDelay(delay, g.cfg.MaxBackoff)
	}
}

func errText(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	return err.Error()
}

func (g *Governor) place(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	return g.gw.PlaceOrder(callCtx, req)
}

func (g *Governor) status(ctx context.Context, symbol, key string) (exchange.OrderResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	return g.gw.GetOrderStatus(callCtx, symbol, key)
}

func (g *Governor) save(ctx context.Context, intent *types.OrderIntent) error {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	if err := g.ledger.SaveIntent(callCtx, *intent); err != nil {
		return err
	}
	g.track(*intent)
	return nil
}

// finish ends an intent whose outcome could not be settled: a partial fill confirms, anything else is abandoned.
func (g *Governor) finish(ctx context.Context, intent types.OrderIntent, last exchange.OrderResult, why string) (types.OrderIntent, error) {
	if last.FilledQty > 0 {
		return g.confirm(ctx, intent, last)
	}
	return g.abandon(ctx, intent, why)
}

func (g *Governor) settle(ctx context.Context, intent types.OrderIntent, res exchange.OrderResult) (types.OrderIntent, error) {
	switch {
	case res.FilledQty > 0:
		return g.confirm(ctx, intent, res)
	case res.Status == exchange.StatusRejected:
		return g.fail(ctx, intent, exchange.Rejected("order_status", 0, "rejected by exchange"))
	default:
		return g.abandon(ctx, intent, fmt.Sprintf("order %s without fill", res.Status))
	}
}

func (g *Governor) fail(ctx context.Context, intent types.OrderIntent, cause error) (types.OrderIntent, error) {
	intent.State = types.IntentFailed
	intent.Error = errText(cause, "rejected")
	intent.UpdatedAt = g.now().UTC()
	logger.Errorf("下单被拒绝 %s %s %s: %s", intent.ID, intent.Symbol, intent.Action, intent.Error)
	if err := g.save(ctx, &intent); err != nil {
		return intent, fmt.Errorf("persist intent %s: %w", intent.ID, err)
	}
	g.notifyTerminal(intent)
	return intent, nil
}

func (g *Governor) abandon(ctx context.Context, intent types.OrderIntent, why string) (types.OrderIntent, error) {
	intent.State = types.IntentAbandoned
	intent.Error = why
	intent.UpdatedAt = g.now().UTC()
	logger.Warnf("放弃下单意图 %s %s %s: %s", intent.ID, intent.Symbol, intent.Action, why)
	if err := g.save(ctx, &intent); err != nil {
		return intent, fmt.Errorf("persist intent %s: %w", intent.ID, err)
	}
	g.notifyTerminal(intent)
	return intent, nil
}

// confirm records the fill. A fill smaller than requested is confirmed for the filled part only.
func (g *Governor) confirm(ctx context.Context, intent types.OrderIntent, res exchange.OrderResult) (types.OrderIntent, error) {
	filled := res.FilledQty
	price := res.AvgPrice
	if price <= 0 {
		if mark, err := g.markPrice(ctx, intent.Symbol); err == nil {
			price = mark
		}
	}
	if filled+1e-12 < intent.Quantity {
		intent.Error = fmt.Sprintf("partial fill %s/%s, remainder abandoned", fmtQty(filled), fmtQty(intent.Quantity))
		logger.Warnf("部分成交 %s %s: %s", intent.ID, intent.Symbol, intent.Error)
	}
	intent.State = types.IntentConfirmed
	intent.FilledQty = filled
	intent.AvgPrice = price
	intent.UpdatedAt = g.now().UTC()

	fee := res.Fee
	if fee <= 0 {
		fee = commission(filled, price, g.cfg.CommissionRate)
	}
	ts := g.clock.Now()
	trade := types.TradeRecord{
		ID:        intent.ID,
		IntentID:  intent.ID,
		Symbol:    intent.Symbol,
		Side:      intent.Side,
		Action:    intent.Action,
		Quantity:  filled,
		Price:     price,
		Notional:  notional(filled, price),
		Fee:       fee,
		Leverage:  intent.Leverage,
		DryRun:    intent.DryRun,
		Timestamp: ts,
	}
	closing := intent.Action == types.ActionClose
	var pnl float64
	if closing {
		pnl = realizedPnL(intent.Side, intent.EntryPrice, price, filled)
		trade.RealizedPnL = &pnl
	}
	bal := g.balanceAfterFill(ctx)
	flows := []types.FundFlowRecord{{
		ID:          intent.ID + ":fee",
		Type:        types.FlowCommission,
		Asset:       g.cfg.Asset,
		Amount:      -fee,
		Balance:     bal.Total,
		TradeID:     trade.ID,
		Description: fmt.Sprintf("%s %s commission", intent.Symbol, intent.Action),
		Timestamp:   ts,
	}}
	if closing {
		flows = append(flows, types.FundFlowRecord{
			ID:          intent.ID + ":pnl",
			Type:        types.FlowRealizedPnL,
			Asset:       g.cfg.Asset,
			Amount:      pnl,
			Balance:     bal.Total,
			TradeID:     trade.ID,
			Description: fmt.Sprintf("%s %s closed @ %.4f (entry %.4f)", intent.Symbol, intent.Side, price, intent.EntryPrice),
			Timestamp:   ts,
		})
	}

	if closing {
		g.tracker.Reduce(intent.Symbol, intent.Side, filled)
	} else {
		stop, take := g.risk.Levels(intent.Side, price)
		g.tracker.Record(types.Position{
			Symbol:     intent.Symbol,
			Side:       intent.Side,
			Size:       filled,
			EntryPrice: price,
			MarkPrice:  price,
			Leverage:   intent.Leverage,
			OpenedAt:   ts,
			StopLoss:   stop,
			TakeProfit: take,
			ExchangeID: res.OrderID,
		})
	}

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	err := g.ledger.RecordFill(callCtx, intent, &trade, flows)
	cancel()
	if err != nil {
		logger.Errorf("成交记录写入失败 %s: %v", intent.ID, err)
		return intent, fmt.Errorf("record fill %s: %w", intent.ID, err)
	}
	g.track(intent)
	logger.Infof("成交确认 %s %s %s qty=%s price=%.4f fee=%.4f", intent.ID, intent.Symbol, intent.Action, fmtQty(filled), price, fee)

	if closing {
		// 日内亏损按扣除平仓手续费后的净盈亏累计
		if _, err := g.risk.RecordClose(ctx, ts, netPnL(pnl, fee)); err != nil {
			return intent, fmt.Errorf("record close %s: %w", intent.ID, err)
		}
	}
	g.notifyFill(intent, trade)

	if _, err := g.Sync(ctx, intent.Symbol); err != nil {
		logger.Warnf("成交后对账失败 %s: %v", intent.Symbol, err)
	}
	return intent, nil
}

func (g *Governor) balanceAfterFill(ctx context.Context) types.Balance {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	bal, err := g.gw.GetBalance(callCtx)
	if err != nil {
		logger.Warnf("查询余额失败: %v", err)
	}
	return bal
}

func (g *Governor) markPrice(ctx context.Context, symbol string) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	return g.gw.GetMarkPrice(callCtx, symbol)
}

// Sync pulls the exchange positions for symbol, reconciles the local book and records drift.
func (g *Governor) Sync(ctx context.Context, symbol string) ([]types.Position, error) {
	symbol = normSymbol(symbol)
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	remote, err := g.gw.GetPositions(callCtx, symbol)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("get positions %s: %w", symbol, err)
	}
	corrected, drifts := g.tracker.Sync(symbol, remote, g.now())
	for _, d := range drifts {
		logger.Warnf("持仓漂移 %s %s %s local=%s remote=%s", d.Kind, d.Symbol, d.Side, fmtQty(d.LocalSize), fmtQty(d.RemoteSize))
		wctx, wcancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
		err := g.ledger.AppendDrift(wctx, d)
		wcancel()
		if err != nil {
			return corrected, fmt.Errorf("append drift %s: %w", d.ID, err)
		}
		g.notifyDrift(d)
	}
	return corrected, nil
}

func netPnL(pnl, fee float64) float64 {
	return decimal.NewFromFloat(pnl).Sub(decimal.NewFromFloat(fee)).InexactFloat64()
}

func realizedPnL(side types.Side, entry, exit, qty float64) float64 {
	diff := decimal.NewFromFloat(exit).Sub(decimal.NewFromFloat(entry))
	if side == types.SideShort {
		diff = diff.Neg()
	}
	v, _ := diff.Mul(decimal.NewFromFloat(qty)).Float64()
	return v
}

func commission(qty, price, rate float64) float64 {
	v, _ := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price)).Mul(decimal.NewFromFloat(rate)).Float64()
	return v
}

func notional(qty, price float64) float64 {
	v, _ := decimal.NewFromFloat(qty).Mul(decimal.NewFromFloat(price)).Float64()
	return v
}

func fmtQty(v float64) string {
	return decimal.NewFromFloat(v).String()
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
