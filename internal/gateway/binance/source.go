package binance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crossguard/internal/market"
	"crossguard/internal/types"

	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1500

func (c *Client) FetchHistory(ctx context.Context, symbol, interval string, limit int) ([]market.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	sym := toSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	var kls []*futures.Kline
	err := c.call(ctx, "klines", func(ctx context.Context) error {
		var err error
		kls, err = c.client.NewKlinesService().Symbol(sym).Interval(interval).Limit(limit).Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		out = append(out, market.Candle{
			OpenTime:  kl.OpenTime,
			CloseTime: kl.CloseTime,
			Open:      parseFloat(kl.Open),
			High:      parseFloat(kl.High),
			Low:       parseFloat(kl.Low),
			Close:     parseFloat(kl.Close),
			Volume:    parseFloat(kl.Volume),
			Trades:    kl.TradeNum,
		})
	}
	return out, nil
}

// FundingFees returns FUNDING_FEE income since the given time as fund flows keyed by the exchange transaction id.
func (c *Client) FundingFees(ctx context.Context, since time.Time) ([]types.FundFlowRecord, error) {
	var items []*futures.IncomeHistory
	err := c.call(ctx, "income_history", func(ctx context.Context) error {
		var err error
		items, err = c.client.NewGetIncomeHistoryService().
			IncomeType("FUNDING_FEE").
			StartTime(since.UnixMilli()).
			Limit(1000).
			Do(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.FundFlowRecord, 0, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		out = append(out, types.FundFlowRecord{
			ID:          fmt.Sprintf("funding:%d", it.TranID),
			Type:        types.FlowFundingFee,
			Asset:       strings.ToUpper(it.Asset),
			Amount:      parseFloat(it.Income),
			Description: "funding fee " + strings.ToUpper(it.Symbol),
			Timestamp:   time.UnixMilli(it.Time).UTC(),
		})
	}
	return out, nil
}

var _ market.Source = (*Client)(nil)
