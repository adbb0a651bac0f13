package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/types"

	"github.com/adshao/go-binance/v2/futures"
)

func (c *Client) GetPositions(ctx context.Context, symbol string) ([]types.Position, error) {
	sym := toSymbol(symbol)
	var risks []*futures.PositionRisk
	err := c.call(ctx, "position_risk", func(ctx context.Context) error {
		var err error
		risks, err = c.client.NewGetPositionRiskService().Symbol(sym).Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(risks))
	for _, r := range risks {
		if p, ok := convertPosition(r); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// convertPosition skips flat entries; one-way mode reports side by the sign of positionAmt.
func convertPosition(r *futures.PositionRisk) (types.Position, bool) {
	if r == nil {
		return types.Position{}, false
	}
	amt := parseFloat(r.PositionAmt)
	if amt == 0 {
		return types.Position{}, false
	}
	var side types.Side
	switch strings.ToUpper(r.PositionSide) {
	case string(futures.PositionSideTypeLong):
		side = types.SideLong
	case string(futures.PositionSideTypeShort):
		side = types.SideShort
	default:
		side = types.SideLong
		if amt < 0 {
			side = types.SideShort
		}
	}
	if amt < 0 {
		amt = -amt
	}
	lev, _ := strconv.Atoi(strings.TrimSpace(r.Leverage))
	return types.Position{
		Symbol:     strings.ToUpper(r.Symbol),
		Side:       side,
		Size:       amt,
		EntryPrice: parseFloat(r.EntryPrice),
		MarkPrice:  parseFloat(r.MarkPrice),
		Leverage:   lev,
	}, true
}

func (c *Client) GetBalance(ctx context.Context) (types.Balance, error) {
	var balances []*futures.Balance
	err := c.call(ctx, "balance", func(ctx context.Context) error {
		var err error
		balances, err = c.client.NewGetBalanceService().Do(ctx)
		return err
	})
	if err != nil {
		return types.Balance{}, err
	}
	for _, b := range balances {
		if b == nil || !strings.EqualFold(b.Asset, c.cfg.Asset) {
			continue
		}
		return types.Balance{
			Asset:         c.cfg.Asset,
			Total:         parseFloat(b.Balance),
			Available:     parseFloat(b.AvailableBalance),
			UnrealizedPnL: parseFloat(b.CrossUnPnl),
			UpdatedAt:     time.UnixMilli(b.UpdateTime).UTC(),
		}, nil
	}
	return types.Balance{Asset: c.cfg.Asset, UpdatedAt: time.Now().UTC()}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req exchange.OrderRequest) (exchange.OrderResult, error) {
	if req.Quantity <= 0 {
		return exchange.OrderResult{}, exchange.Rejected("create_order", 0, "quantity must be > 0")
	}
	sym := toSymbol(req.Symbol)
	svc := c.client.NewCreateOrderService().
		Symbol(sym).
		Side(futures.SideType(req.Side)).
		Type(futures.OrderTypeMarket).
		Quantity(formatQty(req.Quantity)).
		NewClientOrderID(req.Key).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT)
	switch req.PositionSide {
	case types.SideLong:
		svc = svc.PositionSide(futures.PositionSideTypeLong)
	case types.SideShort:
		svc = svc.PositionSide(futures.PositionSideTypeShort)
	default:
		if req.ReduceOnly {
			svc = svc.ReduceOnly(true)
		}
	}
	var resp *futures.CreateOrderResponse
	err := c.call(ctx, "create_order", func(ctx context.Context) error {
		var err error
		resp, err = svc.Do(ctx)
		return err
	})
	if err != nil {
		return exchange.OrderResult{Key: req.Key}, err
	}
	if resp == nil {
		return exchange.OrderResult{Key: req.Key}, exchange.Transient("create_order", fmt.Errorf("empty response"))
	}
	executed := parseFloat(resp.ExecutedQuantity)
	return exchange.OrderResult{
		Key:       req.Key,
		OrderID:   strconv.FormatInt(resp.OrderID, 10),
		Status:    exchange.ParseOrderStatus(string(resp.Status)),
		FilledQty: executed,
		AvgPrice:  avgPrice(resp.AvgPrice, resp.CumQuote, executed),
	}, nil
}

func (c *Client) GetOrderStatus(ctx context.Context, symbol, key string) (exchange.OrderResult, error) {
	sym := toSymbol(symbol)
	var order *futures.Order
	err := c.call(ctx, "get_order", func(ctx context.Context) error {
		var err error
		order, err = c.client.NewGetOrderService().Symbol(sym).OrigClientOrderID(key).Do(ctx)
		return err
	})
	if err != nil {
		return exchange.OrderResult{Key: key}, err
	}
	if order == nil {
		return exchange.OrderResult{Key: key}, exchange.NotFound("get_order", key)
	}
	executed := parseFloat(order.ExecutedQuantity)
	return exchange.OrderResult{
		Key:       key,
		OrderID:   strconv.FormatInt(order.OrderID, 10),
		Status:    exchange.ParseOrderStatus(string(order.Status)),
		FilledQty: executed,
		AvgPrice:  avgPrice(order.AvgPrice, order.CumQuote, executed),
	}, nil
}

func avgPrice(avg, cumQuote string, executed float64) float64 {
	if p := parseFloat(avg); p > 0 {
		return p
	}
	if executed > 0 {
		return parseFloat(cumQuote) / executed
	}
	return 0
}

func (c *Client) GetMarkPrice(ctx context.Context, symbol string) (float64, error) {
	sym := toSymbol(symbol)
	var res []*futures.PremiumIndex
	err := c.call(ctx, "premium_index", func(ctx context.Context) error {
		var err error
		res, err = c.client.NewPremiumIndexService().Symbol(sym).Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	for _, entry := range res {
		if entry != nil && strings.EqualFold(entry.Symbol, sym) {
			return parseFloat(entry.MarkPrice), nil
		}
	}
	return 0, exchange.Transient("premium_index", fmt.Errorf("mark price not available for %s", sym))
}

func (c *Client) ServerTime(ctx context.Context) (time.Time, error) {
	var ms int64
	err := c.call(ctx, "server_time", func(ctx context.Context) error {
		var err error
		ms, err = c.client.NewServerTimeService().Do(ctx)
		return err
	})
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// LotStep returns the LOT_SIZE step for symbol; exchange info is loaded once and cached.
func (c *Client) LotStep(ctx context.Context, symbol string) (float64, error) {
	sym := toSymbol(symbol)
	c.stepMu.RLock()
	step, ok := c.steps[sym]
	c.stepMu.RUnlock()
	if ok {
		return step, nil
	}
	var info *futures.ExchangeInfo
	err := c.call(ctx, "exchange_info", func(ctx context.Context) error {
		var err error
		info, err = c.client.NewExchangeInfoService().Do(ctx)
		return err
	})
	if err != nil {
		return 0, err
	}
	steps := lotSteps(info)
	c.stepMu.Lock()
	for k, v := range steps {
		c.steps[k] = v
	}
	c.stepMu.Unlock()
	step, ok = steps[sym]
	if !ok {
		return 0, exchange.Rejected("exchange_info", 0, "unknown symbol "+sym)
	}
	return step, nil
}

func lotSteps(info *futures.ExchangeInfo) map[string]float64 {
	out := make(map[string]float64)
	if info == nil {
		return out
	}
	for _, s := range info.Symbols {
		for _, f := range s.Filters {
			if ft, _ := f["filterType"].(string); ft != "LOT_SIZE" {
				continue
			}
			if raw, ok := f["stepSize"].(string); ok {
				out[strings.ToUpper(s.Symbol)] = parseFloat(raw)
			}
		}
	}
	return out
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	sym := toSymbol(symbol)
	return c.call(ctx, "change_leverage", func(ctx context.Context) error {
		_, err := c.client.NewChangeLeverageService().Symbol(sym).Leverage(leverage).Do(ctx)
		return err
	})
}

var (
	_ exchange.Gateway        = (*Client)(nil)
	_ exchange.LeverageSetter = (*Client)(nil)
)
