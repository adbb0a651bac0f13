package store

import (
	"context"
	"errors"
	"time"

	"crossguard/internal/types"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("store: not found")

// Snapshot kinds written by the periodic snapshot loop.
const (
	SnapshotPositions = "positions"
	SnapshotBalance   = "balance"
)

// TradeFilter narrows trade queries. Zero values mean no constraint.
type TradeFilter struct {
	Symbol string
	Since  time.Time
	Limit  int
}

// FlowFilter narrows fund flow queries.
type FlowFilter struct {
	Type  types.FundFlowType
	Since time.Time
	Limit int
}

// SnapshotRecord is a stored periodic snapshot.
type SnapshotRecord struct {
	ID        string
	Kind      string
	Payload   []byte
	Timestamp time.Time
}

// UnitOfWork defines a transaction scope.
type UnitOfWork interface {
	Commit() error
	Rollback() error

	Trades() TradeRepository
	FundFlows() FundFlowRepository
	Intents() IntentRepository
	Drifts() DriftRepository
	Counters() CounterRepository
	Snapshots() SnapshotRepository
}

// Store is the entry point for database access.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
	Ping(ctx context.Context) error
	Close() error
}

// TradeRepository is append-only; appending an existing ID is a no-op.
type TradeRepository interface {
	Append(ctx context.Context, rec types.TradeRecord) error
	Query(ctx context.Context, filter TradeFilter) ([]types.TradeRecord, error)
	DailyStats(ctx context.Context, since time.Time) ([]types.DailyStats, error)
}

// FundFlowRepository is append-only; appending an existing ID is a no-op.
type FundFlowRepository interface {
	Append(ctx context.Context, rec types.FundFlowRecord) error
	Query(ctx context.Context, filter FlowFilter) ([]types.FundFlowRecord, error)
	CommissionByDay(ctx context.Context, since time.Time) (map[string]float64, error)
}

// IntentRepository stores order intents keyed by intent ID.
type IntentRepository interface {
	Save(ctx context.Context, intent types.OrderIntent) error
	Find(ctx context.Context, id string) (types.OrderIntent, error)
	Pending(ctx context.Context) ([]types.OrderIntent, error)
	Recent(ctx context.Context, limit int) ([]types.OrderIntent, error)
}

type DriftRepository interface {
	Append(ctx context.Context, ev types.DriftEvent) error
	Recent(ctx context.Context, limit int) ([]types.DriftEvent, error)
}

type CounterRepository interface {
	Load(ctx context.Context, day string) (types.DailyRiskCounter, error)
	Save(ctx context.Context, counter types.DailyRiskCounter) error
}

type SnapshotRepository interface {
	Append(ctx context.Context, rec SnapshotRecord) error
	Latest(ctx context.Context, kind string) (SnapshotRecord, error)
	Range(ctx context.Context, kind string, since time.Time, limit int) ([]SnapshotRecord, error)
}

// Ledger is the durable append/query surface used by the trading core and the dashboard.
type Ledger interface {
	AppendTrade(ctx context.Context, rec types.TradeRecord) error
	AppendFundFlow(ctx context.Context, rec types.FundFlowRecord) error
	AppendSnapshot(ctx context.Context, kind string, payload any, ts time.Time) error
	LatestSnapshot(ctx context.Context, kind string) (SnapshotRecord, error)
	SnapshotRange(ctx context.Context, kind string, since time.Time, limit int) ([]SnapshotRecord, error)
	QueryTrades(ctx context.Context, filter TradeFilter) ([]types.TradeRecord, error)
	QueryFundFlows(ctx context.Context, filter FlowFilter) ([]types.FundFlowRecord, error)

	SaveIntent(ctx context.Context, intent types.OrderIntent) error
	PendingIntents(ctx context.Context) ([]types.OrderIntent, error)
	RecentIntents(ctx context.Context, limit int) ([]types.OrderIntent, error)
	// RecordFill writes the terminal intent together with its trade and fund flows atomically.
	RecordFill(ctx context.Context, intent types.OrderIntent, trade *types.TradeRecord, flows []types.FundFlowRecord) error

	AppendDrift(ctx context.Context, ev types.DriftEvent) error
	RecentDrifts(ctx context.Context, limit int) ([]types.DriftEvent, error)

	LoadCounter(ctx context.Context, day string) (types.DailyRiskCounter, error)
	SaveCounter(ctx context.Context, counter types.DailyRiskCounter) error

	DailyStats(ctx context.Context, days int, now time.Time) ([]types.DailyStats, error)
	Ping(ctx context.Context) error
}
