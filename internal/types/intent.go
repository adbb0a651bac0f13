package types

import "time"

// Action is what an order intent asks the exchange to do.
type Action string

const (
	ActionOpenLong  Action = "OPEN_LONG"
	ActionOpenShort Action = "OPEN_SHORT"
	ActionClose     Action = "CLOSE"
)

// IsOpen reports whether the action increases risk.
func (a Action) IsOpen() bool {
	return a == ActionOpenLong || a == ActionOpenShort
}

// Side returns the position side an open action creates.
func (a Action) Side() Side {
	switch a {
	case ActionOpenLong:
		return SideLong
	case ActionOpenShort:
		return SideShort
	default:
		return ""
	}
}

// OpenAction maps a side to its opening action.
func OpenAction(side Side) Action {
	if side == SideShort {
		return ActionOpenShort
	}
	return ActionOpenLong
}

// IntentState is the lifecycle state of an OrderIntent.
type IntentState string

const (
	IntentPending   IntentState = "PENDING"
	IntentConfirmed IntentState = "CONFIRMED"
	IntentFailed    IntentState = "FAILED"
	IntentAbandoned IntentState = "ABANDONED"
)

func (s IntentState) Terminal() bool {
	return s == IntentConfirmed || s == IntentFailed || s == IntentAbandoned
}

// OrderIntent 是已请求但尚未被交易所确认的动作；ID 同时作为幂等键。
type OrderIntent struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Action   Action  `json:"action"`
	Side     Side    `json:"side"`
	Quantity float64 `json:"quantity"`
	// EntryPrice of the position being closed; zero for opens.
	EntryPrice float64     `json:"entry_price,omitempty"`
	Leverage   int         `json:"leverage,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Attempts   int         `json:"attempts"`
	State      IntentState `json:"state"`
	FilledQty  float64     `json:"filled_qty,omitempty"`
	AvgPrice   float64     `json:"avg_price,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Error      string      `json:"error,omitempty"`
	DryRun     bool        `json:"dry_run,omitempty"`
}
