// Package exchange defines the order/position contract between the execution core and exchange adapters.
package exchange

import (
	"errors"
	"fmt"
	"strings"

	"crossguard/internal/types"
)

var (
	// ErrTransient: the outcome is unknown (timeout, 5xx, rate limit); query status before retrying.
	ErrTransient = errors.New("exchange: transient failure")
	// ErrRejected: the exchange authoritatively refused the order.
	ErrRejected = errors.New("exchange: order rejected")
	// ErrOrderNotFound: no order exists for the given key.
	ErrOrderNotFound = errors.New("exchange: order not found")
	// ErrDuplicateKey: an order with this key already exists; its status decides the outcome.
	ErrDuplicateKey = errors.New("exchange: duplicate order key")
)

// Error carries the exchange's own code next to the classification sentinel.
type Error struct {
	Kind error
	Code int64
	Msg  string
	Op   string
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: %v (code=%d %s)", e.Op, e.Kind, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func Transient(op string, err error) error {
	return &Error{Kind: ErrTransient, Op: op, Msg: errString(err)}
}

func Rejected(op string, code int64, msg string) error {
	return &Error{Kind: ErrRejected, Op: op, Code: code, Msg: msg}
}

func Duplicate(op string, code int64, msg string) error {
	return &Error{Kind: ErrDuplicateKey, Op: op, Code: code, Msg: msg}
}

func NotFound(op, key string) error {
	return &Error{Kind: ErrOrderNotFound, Op: op, Msg: key}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

type OrderType string

const OrderTypeMarket OrderType = "MARKET"

// OrderSideFor maps an intent action on a position side to the order side.
func OrderSideFor(action types.Action, side types.Side) OrderSide {
	switch action {
	case types.ActionOpenLong:
		return Buy
	case types.ActionOpenShort:
		return Sell
	}
	if side == types.SideShort {
		return Buy
	}
	return Sell
}

type OrderRequest struct {
	Key        string
	Symbol     string
	Side       OrderSide
	Type       OrderType
	Quantity   float64
	ReduceOnly bool
	// PositionSide is set only in hedge mode.
	PositionSide types.Side
}

type OrderStatus string

const (
	StatusNew             OrderStatus = "NEW"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
	StatusExpired         OrderStatus = "EXPIRED"
)

// ParseOrderStatus normalizes exchange status strings.
func ParseOrderStatus(raw string) OrderStatus {
	s := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusNew, StatusPartiallyFilled, StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return s
	case "CANCELLED":
		return StatusCanceled
	default:
		return StatusNew
	}
}

// Done reports whether the exchange will not fill any more of the order.
func (s OrderStatus) Done() bool {
	return s == StatusFilled || s == StatusCanceled || s == StatusRejected || s == StatusExpired
}

type OrderResult struct {
	Key       string
	OrderID   string
	Status    OrderStatus
	FilledQty float64
	AvgPrice  float64
	// Fee is set when the adapter knows the actual commission; otherwise zero.
	Fee float64
}
