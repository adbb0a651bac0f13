package exchange

import (
	"errors"
	"fmt"
	"testing"

	"crossguard/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	err := fmt.Errorf("place order: %w", Transient("create_order", errors.New("i/o timeout")))
	assert.ErrorIs(t, err, ErrTransient)
	assert.NotErrorIs(t, err, ErrRejected)

	rej := Rejected("create_order", -2019, "Margin is insufficient.")
	assert.ErrorIs(t, rej, ErrRejected)
	var exErr *Error
	assert.True(t, errors.As(rej, &exErr))
	assert.Equal(t, int64(-2019), exErr.Code)
	assert.Contains(t, rej.Error(), "Margin is insufficient")

	assert.ErrorIs(t, NotFound("get_order", "k1"), ErrOrderNotFound)

	dup := Duplicate("create_order", -4116, "ClientOrderId is duplicated.")
	assert.ErrorIs(t, dup, ErrDuplicateKey)
	assert.NotErrorIs(t, dup, ErrRejected)
}

func TestOrderSideFor(t *testing.T) {
	assert.Equal(t, Buy, OrderSideFor(types.ActionOpenLong, ""))
	assert.Equal(t, Sell, OrderSideFor(types.ActionOpenShort, ""))
	assert.Equal(t, Sell, OrderSideFor(types.ActionClose, types.SideLong))
	assert.Equal(t, Buy, OrderSideFor(types.ActionClose, types.SideShort))
}

func TestParseOrderStatus(t *testing.T) {
	assert.Equal(t, StatusFilled, ParseOrderStatus("filled"))
	assert.Equal(t, StatusCanceled, ParseOrderStatus("CANCELLED"))
	assert.Equal(t, StatusNew, ParseOrderStatus("???"))
	assert.True(t, StatusExpired.Done())
	assert.False(t, StatusPartiallyFilled.Done())
}
