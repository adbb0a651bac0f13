package model

import (
	"gorm.io/datatypes"
)

// TradeModel maps to 'trades'. Rows are never updated.
type TradeModel struct {
	ID          string   `gorm:"column:id;primaryKey"`
	IntentID    string   `gorm:"column:intent_id;index"`
	Symbol      string   `gorm:"column:symbol;index:idx_trades_symbol_ts,priority:1"`
	Side        string   `gorm:"column:side"`
	Action      string   `gorm:"column:action"`
	Quantity    float64  `gorm:"column:quantity"`
	Price       float64  `gorm:"column:price"`
	Notional    float64  `gorm:"column:notional"`
	RealizedPnL *float64 `gorm:"column:realized_pnl"`
	Fee         float64  `gorm:"column:fee"`
	Leverage    int      `gorm:"column:leverage"`
	IsSimulated int      `gorm:"column:is_simulated"`
	Day         string   `gorm:"column:day;index"`
	Timestamp   int64    `gorm:"column:timestamp;index:idx_trades_symbol_ts,priority:2"`
}

func (TradeModel) TableName() string { return "trades" }

// FundFlowModel maps to 'fund_flows'.
type FundFlowModel struct {
	ID          string  `gorm:"column:id;primaryKey"`
	Type        string  `gorm:"column:type;index"`
	Asset       string  `gorm:"column:asset"`
	Amount      float64 `gorm:"column:amount"`
	Balance     float64 `gorm:"column:balance"`
	TradeID     string  `gorm:"column:trade_id;index"`
	Description string  `gorm:"column:description"`
	Day         string  `gorm:"column:day;index"`
	Timestamp   int64   `gorm:"column:timestamp;index"`
}

func (FundFlowModel) TableName() string { return "fund_flows" }

// OrderIntentModel maps to 'order_intents'; id doubles as the exchange client order id.
type OrderIntentModel struct {
	ID            string  `gorm:"column:id;primaryKey"`
	Symbol        string  `gorm:"column:symbol;index"`
	Action        string  `gorm:"column:action"`
	Side          string  `gorm:"column:side"`
	Quantity      float64 `gorm:"column:quantity"`
	EntryPrice    float64 `gorm:"column:entry_price"`
	Leverage      int     `gorm:"column:leverage"`
	State         string  `gorm:"column:state;index"`
	Attempts      int     `gorm:"column:attempts"`
	FilledQty     float64 `gorm:"column:filled_qty"`
	AvgPrice      float64 `gorm:"column:avg_price"`
	Reason        string  `gorm:"column:reason"`
	Error         string  `gorm:"column:error"`
	IsSimulated   int     `gorm:"column:is_simulated"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (OrderIntentModel) TableName() string { return "order_intents" }

// DriftEventModel maps to 'drift_events'.
type DriftEventModel struct {
	ID          string  `gorm:"column:id;primaryKey"`
	Kind        string  `gorm:"column:kind"`
	Symbol      string  `gorm:"column:symbol;index"`
	Side        string  `gorm:"column:side"`
	LocalSize   float64 `gorm:"column:local_size"`
	RemoteSize  float64 `gorm:"column:remote_size"`
	RemoteEntry float64 `gorm:"column:remote_entry"`
	DetectedAt  int64   `gorm:"column:detected_at;index"`
}

func (DriftEventModel) TableName() string { return "drift_events" }

// RiskCounterModel maps to 'daily_risk_counters', one row per trading day.
type RiskCounterModel struct {
	Day           string  `gorm:"column:day;primaryKey"`
	RealizedLoss  float64 `gorm:"column:realized_loss"`
	TradeCount    int     `gorm:"column:trade_count"`
	Tripped       int     `gorm:"column:tripped"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (RiskCounterModel) TableName() string { return "daily_risk_counters" }

// SnapshotModel maps to 'snapshots' (positions and balance history).
type SnapshotModel struct {
	ID        string         `gorm:"column:id;primaryKey"`
	Kind      string         `gorm:"column:kind;index:idx_snapshots_kind_ts,priority:1"`
	Payload   datatypes.JSON `gorm:"column:payload;type:TEXT"`
	Timestamp int64          `gorm:"column:timestamp;index:idx_snapshots_kind_ts,priority:2"`
}

func (SnapshotModel) TableName() string { return "snapshots" }

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&TradeModel{},
		&FundFlowModel{},
		&OrderIntentModel{},
		&DriftEventModel{},
		&RiskCounterModel{},
		&SnapshotModel{},
	}
}
