package types

import "time"

// DayLayout is the trading-day key format.
const DayLayout = "2006-01-02"

// DayKey returns the UTC trading-day key for t.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// DailyRiskCounter 按交易日累计的已实现亏损与成交次数，日内只增不减。
type DailyRiskCounter struct {
	Day          string    `json:"day"`
	RealizedLoss float64   `json:"realized_loss"`
	TradeCount   int       `json:"trade_count"`
	Tripped      bool      `json:"tripped"`
	UpdatedAt    time.Time `json:"updated_at"`
}
