package exchange

import (
	"context"
	"time"

	"crossguard/internal/types"
)

// Gateway is the contract the execution core needs from a futures exchange.
// Implementations classify failures with ErrTransient / ErrRejected / ErrOrderNotFound.
type Gateway interface {
	Name() string

	GetPositions(ctx context.Context, symbol string) ([]types.Position, error)

	GetBalance(ctx context.Context) (types.Balance, error)

	// PlaceOrder submits a market order keyed by req.Key; resubmitting the same key must not create a second order.
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)

	GetOrderStatus(ctx context.Context, symbol, key string) (OrderResult, error)

	GetMarkPrice(ctx context.Context, symbol string) (float64, error)

	ServerTime(ctx context.Context) (time.Time, error)

	LotStep(ctx context.Context, symbol string) (float64, error)
}

// LeverageSetter is implemented by gateways that can change symbol leverage.
type LeverageSetter interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
