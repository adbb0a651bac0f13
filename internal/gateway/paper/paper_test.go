package paper

import (
	"context"
	"testing"
	"time"

	"crossguard/internal/gateway/exchange"
	"crossguard/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedMarket struct {
	price float64
}

func (m *fixedMarket) GetMarkPrice(context.Context, string) (float64, error) { return m.price, nil }
func (m *fixedMarket) ServerTime(context.Context) (time.Time, error)         { return time.Now(), nil }
func (m *fixedMarket) LotStep(context.Context, string) (float64, error)      { return 0.001, nil }

func TestOpenThenCloseRealizesPnL(t *testing.T) {
	m := &fixedMarket{price: 100}
	g := New(Config{Balance: 1000, CommissionRate: 0.0005, Leverage: 10}, m)
	ctx := context.Background()

	res, err := g.PlaceOrder(ctx, exchange.OrderRequest{Key: "k1", Symbol: "BTCUSDT", Side: exchange.Buy, Type: exchange.OrderTypeMarket, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, exchange.StatusFilled, res.Status)
	assert.InDelta(t, 0.5, res.Fee, 1e-9)

	positions, err := g.GetPositions(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, types.SideLong, positions[0].Side)
	assert.InDelta(t, 10, positions[0].Size, 1e-9)

	m.price = 110
	_, err = g.PlaceOrder(ctx, exchange.OrderRequest{Key: "k2", Symbol: "BTCUSDT", Side: exchange.Sell, Type: exchange.OrderTypeMarket, Quantity: 10, ReduceOnly: true})
	require.NoError(t, err)
	positions, err = g.GetPositions(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Empty(t, positions)

	bal, err := g.GetBalance(ctx)
	require.NoError(t, err)
	// 1000 - 0.5 + 100 - 0.55
	assert.InDelta(t, 1098.95, bal.Total, 1e-9)
}

func TestSameKeyIsIdempotent(t *testing.T) {
	g := New(Config{Balance: 1000, Leverage: 5}, &fixedMarket{price: 50})
	ctx := context.Background()
	req := exchange.OrderRequest{Key: "dup", Symbol: "ETHUSDT", Side: exchange.Sell, Quantity: 1}
	first, err := g.PlaceOrder(ctx, req)
	require.NoError(t, err)
	second, err := g.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)

	positions, _ := g.GetPositions(ctx, "ETHUSDT")
	require.Len(t, positions, 1)
	assert.Equal(t, types.SideShort, positions[0].Side)
	assert.InDelta(t, 1, positions[0].Size, 1e-9)

	status, err := g.GetOrderStatus(ctx, "ETHUSDT", "dup")
	require.NoError(t, err)
	assert.Equal(t, first, status)
	_, err = g.GetOrderStatus(ctx, "ETHUSDT", "missing")
	assert.ErrorIs(t, err, exchange.ErrOrderNotFound)
}

func TestRejections(t *testing.T) {
	g := New(Config{Balance: 100, Leverage: 2}, &fixedMarket{price: 100})
	ctx := context.Background()
	_, err := g.PlaceOrder(ctx, exchange.OrderRequest{Key: "big", Symbol: "BTCUSDT", Side: exchange.Buy, Quantity: 5})
	assert.ErrorIs(t, err, exchange.ErrRejected)
	_, err = g.PlaceOrder(ctx, exchange.OrderRequest{Key: "ro", Symbol: "BTCUSDT", Side: exchange.Sell, Quantity: 1, ReduceOnly: true})
	assert.ErrorIs(t, err, exchange.ErrRejected)
}
