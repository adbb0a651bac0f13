package types

import "time"

// TradeRecord is an immutable fill fact. RealizedPnL is nil for opening fills.
type TradeRecord struct {
	ID          string    `json:"id"`
	IntentID    string    `json:"intent_id"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Action      Action    `json:"action"`
	Quantity    float64   `json:"quantity"`
	Price       float64   `json:"price"`
	Notional    float64   `json:"notional"`
	RealizedPnL *float64  `json:"realized_pnl,omitempty"`
	Fee         float64   `json:"fee"`
	Leverage    int       `json:"leverage"`
	DryRun      bool      `json:"dry_run"`
	Timestamp   time.Time `json:"timestamp"`
}

type FundFlowType string

const (
	FlowRealizedPnL FundFlowType = "REALIZED_PNL"
	FlowCommission  FundFlowType = "COMMISSION"
	FlowFundingFee  FundFlowType = "FUNDING_FEE"
)

// FundFlowRecord 资金流水：任何影响余额的事件。
type FundFlowRecord struct {
	ID          string       `json:"id"`
	Type        FundFlowType `json:"type"`
	Asset       string       `json:"asset"`
	Amount      float64      `json:"amount"`
	Balance     float64      `json:"balance"`
	TradeID     string       `json:"trade_id,omitempty"`
	Description string       `json:"description,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

type DriftKind string

const (
	DriftMissingLocally  DriftKind = "MISSING_LOCALLY"
	DriftMissingRemotely DriftKind = "MISSING_REMOTELY"
	DriftSizeMismatch    DriftKind = "SIZE_MISMATCH"
)

// DriftEvent records a local/remote position mismatch that was corrected.
type DriftEvent struct {
	ID          string    `json:"id"`
	Kind        DriftKind `json:"kind"`
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	LocalSize   float64   `json:"local_size"`
	RemoteSize  float64   `json:"remote_size"`
	RemoteEntry float64   `json:"remote_entry"`
	DetectedAt  time.Time `json:"detected_at"`
}

// DailyStats 汇总一天内的平仓统计。
type DailyStats struct {
	Day        string  `json:"day"`
	Trades     int     `json:"trades"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	PnL        float64 `json:"pnl"`
	Commission float64 `json:"commission"`
	Volume     float64 `json:"volume"`
	WinRate    float64 `json:"win_rate"`
}
