// Package paper simulates a futures account locally for dry runs.
// Prices, server time and lot steps come from the live market; fills happen at mark price.
package paper

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/logger"
	"crossguard/internal/types"

	"github.com/shopspring/decimal"
)

// Market is the read-only market data the simulator needs.
type Market interface {
	GetMarkPrice(ctx context.Context, symbol string) (float64, error)
	ServerTime(ctx context.Context) (time.Time, error)
	LotStep(ctx context.Context, symbol string) (float64, error)
}

type Config struct {
	Balance        float64
	Asset          string
	CommissionRate float64
	Leverage       int
	HedgeMode      bool
}

type position struct {
	side     types.Side
	size     decimal.Decimal
	entry    decimal.Decimal
	mark     decimal.Decimal
	leverage int
	openedAt time.Time
}

// Gateway 模拟盘：本地撮合，按 key 幂等。
type Gateway struct {
	cfg    Config
	market Market

	mu        sync.Mutex
	wallet    decimal.Decimal
	positions map[string]*position
	orders    map[string]exchange.OrderResult
	leverage  map[string]int
	seq       int64
	now       func() time.Time
}

func New(cfg Config, market Market) *Gateway {
	if cfg.Balance <= 0 {
		cfg.Balance = 1000
	}
	if cfg.Asset == "" {
		cfg.Asset = "USDT"
	}
	if cfg.Leverage <= 0 {
		cfg.Leverage = 1
	}
	return &Gateway{
		cfg:       cfg,
		market:    market,
		wallet:    decimal.NewFromFloat(cfg.Balance),
		positions: make(map[string]*position),
		orders:    make(map[string]exchange.OrderResult),
		leverage:  make(map[string]int),
		now:       time.Now,
	}
}

func (g *Gateway) Name() string { return "paper" }

func posKey(symbol string, side types.Side) string {
	return symbol + "|" + string(side)
}

func normSymbol(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

func (g *Gateway) GetPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	symbol = normSymbol(symbol)
	mark, err := g.market.GetMarkPrice(ctx, symbol)
	if err != nil {
		return nil, exchange.Transient("paper_positions", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []types.Position
	for _, side := range []types.Side{types.SideLong, types.SideShort} {
		p, ok := g.positions[posKey(symbol, side)]
		if !ok {
			continue
		}
		if mark > 0 {
			p.mark = decimal.NewFromFloat(mark)
		}
		out = append(out, p.view(symbol))
	}
	return out, nil
}

func (p *position) view(symbol string) types.Position {
	size, _ := p.size.Float64()
	entry, _ := p.entry.Float64()
	mark, _ := p.mark.Float64()
	return types.Position{
		Symbol:     symbol,
		Side:       p.side,
		Size:       size,
		EntryPrice: entry,
		MarkPrice:  mark,
		Leverage:   p.leverage,
		OpenedAt:   p.openedAt,
	}
}

func (p *position) unrealized() decimal.Decimal {
	diff := p.mark.Sub(p.entry)
	if p.side == types.SideShort {
		diff = diff.Neg()
	}
	return diff.Mul(p.size)
}

func (p *position) margin() decimal.Decimal {
	lev := p.leverage
	if lev <= 0 {
		lev = 1
	}
	return p.size.Mul(p.entry).Div(decimal.NewFromInt(int64(lev)))
}

func (g *Gateway) GetBalance(context.Context) (types.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balanceLocked(), nil
}

func (g *Gateway) balanceLocked() types.Balance {
	used := decimal.Zero
	upnl := decimal.Zero
	for _, p := range g.positions {
		used = used.Add(p.margin())
		upnl = upnl.Add(p.unrealized())
	}
	avail := g.wallet.Sub(used)
	if upnl.IsNegative() {
		avail = avail.Add(upnl)
	}
	if avail.IsNegative() {
		avail = decimal.Zero
	}
	total, _ := g.wallet.Float64()
	a, _ := avail.Float64()
	u, _ := upnl.Float64()
	return types.Balance{Asset: g.cfg.Asset, Total: total, Available: a, UnrealizedPnL: u, UpdatedAt: g.now().UTC()}
}

// PlaceOrder fills immediately at mark price. A repeated key returns the original result.
func (g *Gateway) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	g.mu.Lock()
	if res, ok := g.orders[req.Key]; ok {
		g.mu.Unlock()
		return res, nil
	}
	g.mu.Unlock()
	if req.Quantity <= 0 {
		return exchange.OrderResult{Key: req.Key}, exchange.Rejected("paper_order", -4003, "quantity less than or equal to zero")
	}
	symbol := normSymbol(req.Symbol)
	mark, err := g.market.GetMarkPrice(ctx, symbol)
	if err != nil {
		return exchange.OrderResult{Key: req.Key}, exchange.Transient("paper_order", err)
	}
	if mark <= 0 {
		return exchange.OrderResult{Key: req.Key}, exchange.Transient("paper_order", fmt.Errorf("no mark price for %s", symbol))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if res, ok := g.orders[req.Key]; ok {
		return res, nil
	}
	price := decimal.NewFromFloat(mark)
	qty := decimal.NewFromFloat(req.Quantity)
	side, closing, err := g.resolveLocked(symbol, req)
	if err != nil {
		return exchange.OrderResult{Key: req.Key}, err
	}
	var filled decimal.Decimal
	if closing {
		filled = g.closeLocked(symbol, side, qty, price)
	} else {
		filled, err = g.openLocked(symbol, side, qty, price)
		if err != nil {
			return exchange.OrderResult{Key: req.Key}, err
		}
	}
	fee := filled.Mul(price).Mul(decimal.NewFromFloat(g.cfg.CommissionRate))
	g.wallet = g.wallet.Sub(fee)
	g.seq++
	fq, _ := filled.Float64()
	ff, _ := fee.Float64()
	res := exchange.OrderResult{
		Key:       req.Key,
		OrderID:   "paper-" + strconv.FormatInt(g.seq, 10),
		Status:    exchange.StatusFilled,
		FilledQty: fq,
		AvgPrice:  mark,
		Fee:       ff,
	}
	g.orders[req.Key] = res
	logger.Infof("[paper] %s %s %s qty=%s @ %.4f fee=%.6f wallet=%s", symbol, req.Side, side, filled.String(), mark, ff, g.wallet.StringFixed(4))
	return res, nil
}

// resolveLocked decides which position the order touches and whether it reduces it.
func (g *Gateway) resolveLocked(symbol string, req exchange.OrderRequest) (types.Side, bool, error) {
	if req.PositionSide != "" {
		closing := (req.PositionSide == types.SideLong && req.Side == exchange.Sell) ||
			(req.PositionSide == types.SideShort && req.Side == exchange.Buy)
		if closing {
			if _, ok := g.positions[posKey(symbol, req.PositionSide)]; !ok {
				return "", false, exchange.Rejected("paper_order", -2022, "ReduceOnly Order is rejected.")
			}
		}
		return req.PositionSide, closing, nil
	}
	opposite := types.SideShort
	target := types.SideLong
	if req.Side == exchange.Sell {
		opposite, target = types.SideLong, types.SideShort
	}
	if _, ok := g.positions[posKey(symbol, opposite)]; ok {
		return opposite, true, nil
	}
	if req.ReduceOnly {
		return "", false, exchange.Rejected("paper_order", -2022, "ReduceOnly Order is rejected.")
	}
	return target, false, nil
}

func (g *Gateway) openLocked(symbol string, side types.Side, qty, price decimal.Decimal) (decimal.Decimal, error) {
	lev := g.leverageFor(symbol)
	need := qty.Mul(price).Div(decimal.NewFromInt(int64(lev)))
	bal := g.balanceLocked()
	if need.GreaterThan(decimal.NewFromFloat(bal.Available)) {
		return decimal.Zero, exchange.Rejected("paper_order", -2019, "Margin is insufficient.")
	}
	key := posKey(symbol, side)
	p, ok := g.positions[key]
	if !ok {
		g.positions[key] = &position{side: side, size: qty, entry: price, mark: price, leverage: lev, openedAt: g.now().UTC()}
		return qty, nil
	}
	total := p.size.Add(qty)
	p.entry = p.entry.Mul(p.size).Add(price.Mul(qty)).Div(total)
	p.size = total
	p.mark = price
	return qty, nil
}

func (g *Gateway) closeLocked(symbol string, side types.Side, qty, price decimal.Decimal) decimal.Decimal {
	key := posKey(symbol, side)
	p := g.positions[key]
	if qty.GreaterThan(p.size) {
		qty = p.size
	}
	diff := price.Sub(p.entry)
	if side == types.SideShort {
		diff = diff.Neg()
	}
	g.wallet = g.wallet.Add(diff.Mul(qty))
	p.size = p.size.Sub(qty)
	p.mark = price
	if !p.size.IsPositive() {
		delete(g.positions, key)
	}
	return qty
}

func (g *Gateway) leverageFor(symbol string) int {
	if lev, ok := g.leverage[symbol]; ok && lev > 0 {
		return lev
	}
	return g.cfg.Leverage
}

func (g *Gateway) GetOrderStatus(_ context.Context, _ string, key string) (exchange.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	res, ok := g.orders[key]
	if !ok {
		return exchange.OrderResult{Key: key}, exchange.NotFound("paper_status", key)
	}
	return res, nil
}

func (g *Gateway) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	return g.market.GetMarkPrice(ctx, symbol)
}

func (g *Gateway) ServerTime(ctx context.Context) (time.Time, error) {
	return g.market.ServerTime(ctx)
}

func (g *Gateway) LotStep(ctx context.Context, symbol string) (float64, error) {
	return g.market.LotStep(ctx, symbol)
}

func (g *Gateway) SetLeverage(_ context.Context, symbol string, leverage int) error {
	if leverage <= 0 {
		return exchange.Rejected("paper_leverage", -4028, "leverage must be positive")
	}
	g.mu.Lock()
	g.leverage[normSymbol(symbol)] = leverage
	g.mu.Unlock()
	return nil
}

var (
	_ exchange.Gateway        = (*Gateway)(nil)
	_ exchange.LeverageSetter = (*Gateway)(nil)
)
