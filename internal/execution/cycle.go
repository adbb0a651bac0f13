package execution

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"time"

	"crossguard/internal/logger"
	"crossguard/internal/market"
	"crossguard/internal/risk"
	"crossguard/internal/scheduler"
	"crossguard/internal/signal"
	"crossguard/internal/types"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Outcome describes what one decision cycle did for a symbol.
type Outcome struct {
	Symbol   string             `json:"symbol"`
	At       time.Time          `json:"at"`
	Signal   signal.Kind        `json:"signal"`
	Snapshot signal.Snapshot    `json:"snapshot"`
	Forced   *risk.ForcedClose  `json:"forced,omitempty"`
	Verdict  *risk.Verdict      `json:"verdict,omitempty"`
	Intent   *types.OrderIntent `json:"intent,omitempty"`
	Note     string             `json:"note,omitempty"`
}

// Outcomes returns the last cycle outcome per symbol.
func (g *Governor) Outcomes() []Outcome {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Outcome, 0, len(g.outcomes))
	for _, o := range g.outcomes {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func (g *Governor) remember(o Outcome) {
	g.mu.Lock()
	g.outcomes[o.Symbol] = o
	g.mu.Unlock()
}

// RunCycles runs one cycle per symbol in parallel. A failing symbol never stops the others.
func (g *Governor) RunCycles(ctx context.Context, symbols []string) []Outcome {
	outs := make([]Outcome, len(symbols))
	var eg errgroup.Group
	for i, sym := range symbols {
		eg.Go(func() error {
			out, err := g.Cycle(ctx, sym)
			if err != nil {
				logger.Errorf("决策周期失败 %s: %v", sym, err)
			}
			outs[i] = out
			return nil
		})
	}
	_ = eg.Wait()
	return outs
}

// Cycle holds the symbol lock for one full pass:
// reconcile → forced exits → signal → risk → execute. At most one action is taken.
func (g *Governor) Cycle(ctx context.Context, symbol string) (out Outcome, err error) {
	symbol = normSymbol(symbol)
	lock := g.symbolLock(symbol)
	lock.Lock()
	defer lock.Unlock()

	out = Outcome{Symbol: symbol, At: g.now().UTC(), Signal: signal.None}
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("决策周期 panic %s: %v", symbol, r)
			debug.PrintStack()
			err = fmt.Errorf("panic: %v", r)
		}
		g.remember(out)
	}()
	if ctx.Err() != nil {
		return out, ctx.Err()
	}
	g.maybeResyncClock(ctx)

	if _, serr := g.Sync(ctx, symbol); serr != nil {
		logger.Warnf("同步持仓失败 %s: %v", symbol, serr)
		out.Note = "sync failed"
	}

	if positions := g.tracker.Positions(symbol); len(positions) > 0 {
		mark, merr := g.markPrice(ctx, symbol)
		if merr != nil {
			logger.Warnf("获取标记价格失败 %s: %v", symbol, merr)
		} else if forced := risk.CheckExits(positions, map[string]float64{symbol: mark}); len(forced) > 0 {
			fc := forced[0]
			out.Forced = &fc
			logger.Infof("%s 触发 %s: mark=%.4f stop=%.4f take=%.4f", symbol, fc.Trigger, mark, fc.Position.StopLoss, fc.Position.TakeProfit)
			intent, xerr := g.Execute(ctx, Request{Symbol: symbol, Action: types.ActionClose, Side: fc.Position.Side, Reason: string(fc.Trigger)})
			out.Intent = &intent
			return out, xerr
		}
	}

	closes, err := g.closes(ctx, symbol)
	if err != nil {
		out.Note = "candles unavailable"
		return out, err
	}
	held, hasPos := g.heldFor(symbol, "")
	var heldSide *types.Side
	if hasPos {
		s := held.Side
		heldSide = &s
	}
	out.Snapshot = g.signals.Inspect(closes)
	out.Signal = signal.Decide(out.Snapshot, heldSide)
	logger.Debugf("%s signal=%s close=%.4f ema=%.4f ma=%.4f", symbol, out.Signal, out.Snapshot.Close, out.Snapshot.EMA, out.Snapshot.MA)

	switch {
	case out.Signal.IsExit():
		intent, xerr := g.Execute(ctx, Request{Symbol: symbol, Action: types.ActionClose, Side: held.Side, Reason: string(out.Signal)})
		out.Intent = &intent
		return out, xerr
	case out.Signal.IsEntry():
		side := out.Signal.EntrySide()
		if hasPos && held.Side != side && !g.cfg.HedgeMode {
			// close now, the reverse entry is re-evaluated on a later cycle
			intent, xerr := g.Execute(ctx, Request{Symbol: symbol, Action: types.ActionClose, Side: held.Side, Reason: "flip:" + string(out.Signal)})
			out.Intent = &intent
			return out, xerr
		}
		return g.open(ctx, out, side)
	default:
		return out, nil
	}
}

func (g *Governor) open(ctx context.Context, out Outcome, side types.Side) (Outcome, error) {
	symbol := out.Symbol
	if !g.tracker.Fresh(symbol, g.cfg.FreshnessWindow, g.now()) {
		out.Note = "position book stale, entry skipped"
		logger.Warnf("%s 持仓同步过期 (last=%s)，跳过开仓", symbol, g.tracker.LastSync(symbol).Format(time.RFC3339))
		return out, nil
	}
	price := out.Snapshot.Close
	if mark, err := g.markPrice(ctx, symbol); err == nil && mark > 0 {
		price = mark
	}
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	bal, err := g.gw.GetBalance(callCtx)
	cancel()
	if err != nil {
		out.Note = "balance unavailable"
		return out, fmt.Errorf("get balance: %w", err)
	}
	qty, err := g.size(ctx, symbol, bal, price)
	if err != nil {
		out.Note = "sizing failed"
		return out, err
	}
	if qty <= 0 {
		// 余额为零或不足一个最小下单单位，交给风控给出拒绝结论
		if bal.Available <= 0 {
			out.Note = "available balance is zero"
		} else {
			out.Note = "size rounds to zero at lot step"
		}
		logger.Warnf("%s 开仓数量为 0 (available=%.4f price=%.4f): %s", symbol, bal.Available, price, out.Note)
	}
	counter, err := g.risk.Counter(ctx, g.clock.Now())
	if err != nil {
		out.Note = "risk counter unavailable"
		return out, err
	}
	action := types.OpenAction(side)
	verdict := g.risk.Evaluate(risk.Proposal{
		Symbol:   symbol,
		Action:   action,
		Quantity: qty,
		Price:    price,
		Leverage: g.cfg.Leverage,
	}, g.tracker.All(), counter, bal)
	out.Verdict = &verdict
	if !verdict.Allowed() {
		logger.Infof("%s %s 被风控拒绝: %s", symbol, action, verdict)
		return out, nil
	}
	intent, err := g.Execute(ctx, Request{Symbol: symbol, Action: action, Quantity: qty, Reason: string(out.Signal)})
	out.Intent = &intent
	return out, err
}

// size = available × fraction × leverage / price, rounded down to the lot step.
func (g *Governor) size(ctx context.Context, symbol string, bal types.Balance, price float64) (float64, error) {
	if price <= 0 || bal.Available <= 0 {
		return 0, nil
	}
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	step, err := g.gw.LotStep(callCtx, symbol)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("lot step %s: %w", symbol, err)
	}
	raw := decimal.NewFromFloat(bal.Available).
		Mul(decimal.NewFromFloat(g.cfg.PositionFraction)).
		Mul(decimal.NewFromInt(int64(g.cfg.Leverage))).
		Div(decimal.NewFromFloat(price))
	return roundDown(raw, step), nil
}

func roundDown(q decimal.Decimal, step float64) float64 {
	if step <= 0 {
		v, _ := q.Truncate(8).Float64()
		return v
	}
	s := decimal.NewFromFloat(step)
	v, _ := q.Div(s).Floor().Mul(s).Float64()
	return v
}

func (g *Governor) closes(ctx context.Context, symbol string) ([]float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	candles, err := g.candles.FetchHistory(callCtx, symbol, g.cfg.Interval, g.cfg.KlineLimit)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, g.cfg.Interval, err)
	}
	if d, ok := scheduler.ParseIntervalDuration(g.cfg.Interval); ok {
		candles = scheduler.DropUnclosed(candles, d, g.clock.Now())
	}
	if g.cache != nil {
		_ = g.cache.Set(ctx, symbol, g.cfg.Interval, candles)
	}
	if n := len(candles); n > 0 {
		logger.Debugf("%s klines=%d last_close=%s", symbol, n, candles[n-1].TimeString())
	}
	return market.Closes(candles), nil
}

func (g *Governor) maybeResyncClock(ctx context.Context) {
	if !g.clock.Stale(g.cfg.ClockResync) {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, g.cfg.CallTimeout)
	defer cancel()
	if err := g.clock.Sync(callCtx, g.gw.ServerTime); err != nil {
		logger.Warnf("同步服务器时间失败: %v", err)
		return
	}
	logger.Debugf("server clock offset=%s", g.clock.Offset())
}
