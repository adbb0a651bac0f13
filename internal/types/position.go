package types

import (
	"strings"
	"time"
)

// Side is the direction of an open position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// ParseSide accepts LONG/SHORT in any case; anything else yields "".
func ParseSide(raw string) Side {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "LONG":
		return SideLong
	case "SHORT":
		return SideShort
	default:
		return ""
	}
}

// Position 是本地对交易所持仓的认知（可由交易所数据重建的缓存）。
type Position struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Size       float64   `json:"size"`
	EntryPrice float64   `json:"entry_price"`
	MarkPrice  float64   `json:"mark_price,omitempty"`
	Leverage   int       `json:"leverage"`
	OpenedAt   time.Time `json:"opened_at"`
	StopLoss   float64   `json:"stop_loss,omitempty"`
	TakeProfit float64   `json:"take_profit,omitempty"`
	// ExchangeID stays empty until the exchange has confirmed the position.
	ExchangeID string `json:"exchange_id,omitempty"`
}

// Key identifies the position slot. In net mode there is one slot per symbol.
func (p Position) Key(hedge bool) string {
	if hedge {
		return p.Symbol + "#" + string(p.Side)
	}
	return p.Symbol
}

// Notional is size × entry price.
func (p Position) Notional() float64 {
	return p.Size * p.EntryPrice
}

// UnrealizedPnL at the given mark price (falls back to MarkPrice when mark <= 0).
func (p Position) UnrealizedPnL(mark float64) float64 {
	if mark <= 0 {
		mark = p.MarkPrice
	}
	if mark <= 0 || p.EntryPrice <= 0 {
		return 0
	}
	diff := mark - p.EntryPrice
	if p.Side == SideShort {
		diff = -diff
	}
	return diff * p.Size
}

// Balance 账户余额快照。
type Balance struct {
	Asset         string    `json:"asset"`
	Total         float64   `json:"total"`
	Available     float64   `json:"available"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AccountSnapshot is what the periodic snapshot loop persists.
type AccountSnapshot struct {
	Balance   Balance    `json:"balance"`
	Positions []Position `json:"positions"`
	TakenAt   time.Time  `json:"taken_at"`
}
