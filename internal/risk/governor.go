package risk

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"crossguard/internal/logger"
	"crossguard/internal/store"
	"crossguard/internal/types"
)

type Decision string

const (
	Allow Decision = "ALLOW"
	Deny  Decision = "DENY"
)

// Reason 拒绝原因。
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonMaxPositions       Reason = "MAX_POSITIONS"
	ReasonDailyLossLimit     Reason = "DAILY_LOSS_LIMIT"
	ReasonInsufficientMargin Reason = "INSUFFICIENT_MARGIN"
	ReasonPositionExists     Reason = "POSITION_EXISTS"
)

// Proposal is an action the execution layer wants to take.
type Proposal struct {
	Symbol   string
	Action   types.Action
	Quantity float64
	Price    float64
	Leverage int
}

func (p Proposal) Notional() float64 {
	return p.Quantity * p.Price
}

type Verdict struct {
	Decision Decision `json:"decision"`
	Reason   Reason   `json:"reason,omitempty"`
	Detail   string   `json:"detail,omitempty"`
}

func (v Verdict) Allowed() bool { return v.Decision == Allow }

func (v Verdict) String() string {
	if v.Allowed() {
		return string(Allow)
	}
	if v.Detail == "" {
		return fmt.Sprintf("DENY(%s)", v.Reason)
	}
	return fmt.Sprintf("DENY(%s: %s)", v.Reason, v.Detail)
}

func allow() Verdict { return Verdict{Decision: Allow} }

func deny(reason Reason, format string, args ...any) Verdict {
	return Verdict{Decision: Deny, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Limits 风控参数，可热更新。
type Limits struct {
	StopLossPct    float64
	TakeProfitPct  float64
	MaxPositions   int
	DailyLossLimit float64
	HedgeMode      bool
}

// CounterStore persists the daily risk counter.
type CounterStore interface {
	LoadCounter(ctx context.Context, day string) (types.DailyRiskCounter, error)
	SaveCounter(ctx context.Context, counter types.DailyRiskCounter) error
}

type Option func(*Governor)

// WithTripHook is invoked once per trading day when the loss breaker trips.
func WithTripHook(fn func(types.DailyRiskCounter)) Option {
	return func(g *Governor) { g.onTrip = fn }
}

// Governor 负责开仓前的风控判断以及每日亏损熔断计数。
type Governor struct {
	mu      sync.Mutex
	limits  Limits
	store   CounterStore
	current types.DailyRiskCounter
	loaded  bool
	onTrip  func(types.DailyRiskCounter)
}

func New(limits Limits, counters CounterStore, opts ...Option) *Governor {
	g := &Governor{limits: limits, store: counters}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

func (g *Governor) Limits() Limits {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limits
}

// UpdateLimits swaps limits in place. A tripped counter stays tripped for the day.
func (g *Governor) UpdateLimits(l Limits) {
	g.mu.Lock()
	prev := g.limits
	g.limits = l
	g.mu.Unlock()
	if prev != l {
		logger.Infof("风控参数已更新: stop=%.4f take=%.4f max_positions=%d daily_loss=%.2f",
			l.StopLossPct, l.TakeProfitPct, l.MaxPositions, l.DailyLossLimit)
	}
}

// Evaluate judges a proposal against the current book, counter and balance.
// CLOSE is never blocked.
func (g *Governor) Evaluate(p Proposal, positions []types.Position, counter types.DailyRiskCounter, balance types.Balance) Verdict {
	if p.Action == types.ActionClose {
		return allow()
	}
	limits := g.Limits()
	if counter.Tripped || (limits.DailyLossLimit > 0 && counter.RealizedLoss >= limits.DailyLossLimit) {
		return deny(ReasonDailyLossLimit, "day %s loss %.2f >= %.2f", counter.Day, counter.RealizedLoss, limits.DailyLossLimit)
	}
	side := p.Action.Side()
	for _, pos := range positions {
		if !strings.EqualFold(pos.Symbol, p.Symbol) {
			continue
		}
		if !limits.HedgeMode || pos.Side == side {
			return deny(ReasonPositionExists, "%s %s already open", pos.Symbol, pos.Side)
		}
	}
	if limits.MaxPositions > 0 && len(positions) >= limits.MaxPositions {
		return deny(ReasonMaxPositions, "%d/%d open", len(positions), limits.MaxPositions)
	}
	leverage := p.Leverage
	if leverage <= 0 {
		leverage = 1
	}
	capacity := balance.Available * float64(leverage)
	if p.Quantity <= 0 || p.Price <= 0 || p.Notional() > capacity {
		return deny(ReasonInsufficientMargin, "notional %.4f > available %.4f x%d", p.Notional(), balance.Available, leverage)
	}
	return allow()
}

// Trigger names the threshold that forced a close.
type Trigger string

const (
	TriggerStopLoss   Trigger = "STOP_LOSS"
	TriggerTakeProfit Trigger = "TAKE_PROFIT"
)

// ForcedClose is a CLOSE proposal synthesized from a stop/take crossing.
type ForcedClose struct {
	Position types.Position
	Mark     float64
	Trigger  Trigger
}

// CheckExits compares marks against stored stop/take levels. Positions without a mark are skipped.
func CheckExits(positions []types.Position, marks map[string]float64) []ForcedClose {
	var out []ForcedClose
	for _, pos := range positions {
		mark, ok := marks[pos.Symbol]
		if !ok || mark <= 0 {
			continue
		}
		if trig, hit := crossed(pos, mark); hit {
			out = append(out, ForcedClose{Position: pos, Mark: mark, Trigger: trig})
		}
	}
	return out
}

func crossed(pos types.Position, mark float64) (Trigger, bool) {
	switch pos.Side {
	case types.SideLong:
		if pos.StopLoss > 0 && mark <= pos.StopLoss {
			return TriggerStopLoss, true
		}
		if pos.TakeProfit > 0 && mark >= pos.TakeProfit {
			return TriggerTakeProfit, true
		}
	case types.SideShort:
		if pos.StopLoss > 0 && mark >= pos.StopLoss {
			return TriggerStopLoss, true
		}
		if pos.TakeProfit > 0 && mark <= pos.TakeProfit {
			return TriggerTakeProfit, true
		}
	}
	return "", false
}

// Levels derives stop-loss and take-profit prices from the configured percentages.
func (g *Governor) Levels(side types.Side, entry float64) (stop, take float64) {
	l := g.Limits()
	return levels(side, entry, l.StopLossPct, l.TakeProfitPct)
}

func levels(side types.Side, entry, stopPct, takePct float64) (stop, take float64) {
	if entry <= 0 {
		return 0, 0
	}
	sign := 1.0
	if side == types.SideShort {
		sign = -1.0
	}
	if stopPct > 0 {
		stop = entry * (1 - sign*stopPct)
	}
	if takePct > 0 {
		take = entry * (1 + sign*takePct)
	}
	return stop, take
}

// Counter returns the counter for the trading day containing now, loading it on first use.
func (g *Governor) Counter(ctx context.Context, now time.Time) (types.DailyRiskCounter, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counterLocked(ctx, now)
}

func (g *Governor) counterLocked(ctx context.Context, now time.Time) (types.DailyRiskCounter, error) {
	day := types.DayKey(now)
	if g.loaded && g.current.Day == day {
		return g.current, nil
	}
	counter := types.DailyRiskCounter{Day: day}
	if g.store != nil {
		stored, err := g.store.LoadCounter(ctx, day)
		switch {
		case err == nil:
			counter = stored
			counter.Day = day
		case errors.Is(err, store.ErrNotFound):
		default:
			return types.DailyRiskCounter{}, fmt.Errorf("load risk counter %s: %w", day, err)
		}
	}
	g.current = counter
	g.loaded = true
	return counter, nil
}

// RecordClose adds a confirmed close to the day's counter and persists it.
func (g *Governor) RecordClose(ctx context.Context, now time.Time, realizedPnL float64) (types.DailyRiskCounter, error) {
	g.mu.Lock()
	counter, err := g.counterLocked(ctx, now)
	if err != nil {
		g.mu.Unlock()
		return counter, err
	}
	counter.TradeCount++
	if realizedPnL < 0 {
		counter.RealizedLoss += math.Abs(realizedPnL)
	}
	tripped := false
	if !counter.Tripped && g.limits.DailyLossLimit > 0 && counter.RealizedLoss >= g.limits.DailyLossLimit {
		counter.Tripped = true
		tripped = true
	}
	counter.UpdatedAt = now.UTC()
	g.current = counter
	hook := g.onTrip
	g.mu.Unlock()

	if g.store != nil {
		if err := g.store.SaveCounter(ctx, counter); err != nil {
			return counter, fmt.Errorf("save risk counter %s: %w", counter.Day, err)
		}
	}
	if tripped {
		logger.Warnf("每日亏损熔断触发: day=%s loss=%.2f trades=%d", counter.Day, counter.RealizedLoss, counter.TradeCount)
		if hook != nil {
			hook(counter)
		}
	}
	return counter, nil
}
