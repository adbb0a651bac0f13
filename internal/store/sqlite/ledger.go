package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"crossguard/internal/store"
	"crossguard/internal/types"

	"github.com/google/uuid"
)

var _ store.Ledger = (*SqliteStore)(nil)

func (s *SqliteStore) AppendTrade(ctx context.Context, rec types.TradeRecord) error {
	return NewTradeRepo(s.db).Append(ctx, rec)
}

func (s *SqliteStore) AppendFundFlow(ctx context.Context, rec types.FundFlowRecord) error {
	return NewFundFlowRepo(s.db).Append(ctx, rec)
}

// AppendSnapshot stores payload as JSON under kind.
func (s *SqliteStore) AppendSnapshot(ctx context.Context, kind string, payload any, ts time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s snapshot: %w", kind, err)
	}
	return NewSnapshotRepo(s.db).Append(ctx, store.SnapshotRecord{
		ID:        uuid.NewString(),
		Kind:      kind,
		Payload:   raw,
		Timestamp: ts,
	})
}

func (s *SqliteStore) LatestSnapshot(ctx context.Context, kind string) (store.SnapshotRecord, error) {
	return NewSnapshotRepo(s.db).Latest(ctx, kind)
}

func (s *SqliteStore) SnapshotRange(ctx context.Context, kind string, since time.Time, limit int) ([]store.SnapshotRecord, error) {
	return NewSnapshotRepo(s.db).Range(ctx, kind, since, limit)
}

func (s *SqliteStore) QueryTrades(ctx context.Context, filter store.TradeFilter) ([]types.TradeRecord, error) {
	return NewTradeRepo(s.db).Query(ctx, filter)
}

func (s *SqliteStore) QueryFundFlows(ctx context.Context, filter store.FlowFilter) ([]types.FundFlowRecord, error) {
	return NewFundFlowRepo(s.db).Query(ctx, filter)
}

func (s *SqliteStore) SaveIntent(ctx context.Context, intent types.OrderIntent) error {
	return NewIntentRepo(s.db).Save(ctx, intent)
}

func (s *SqliteStore) PendingIntents(ctx context.Context) ([]types.OrderIntent, error) {
	return NewIntentRepo(s.db).Pending(ctx)
}

func (s *SqliteStore) RecentIntents(ctx context.Context, limit int) ([]types.OrderIntent, error) {
	return NewIntentRepo(s.db).Recent(ctx, limit)
}

func (s *SqliteStore) RecordFill(ctx context.Context, intent types.OrderIntent, trade *types.TradeRecord, flows []types.FundFlowRecord) (err error) {
	uow, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = uow.Rollback()
		}
	}()
	if err = uow.Intents().Save(ctx, intent); err != nil {
		return fmt.Errorf("save intent %s: %w", intent.ID, err)
	}
	if trade != nil {
		if err = uow.Trades().Append(ctx, *trade); err != nil {
			return fmt.Errorf("append trade %s: %w", trade.ID, err)
		}
	}
	for _, flow := range flows {
		if err = uow.FundFlows().Append(ctx, flow); err != nil {
			return fmt.Errorf("append fund flow %s: %w", flow.ID, err)
		}
	}
	return uow.Commit()
}

func (s *SqliteStore) AppendDrift(ctx context.Context, ev types.DriftEvent) error {
	return NewDriftRepo(s.db).Append(ctx, ev)
}

func (s *SqliteStore) RecentDrifts(ctx context.Context, limit int) ([]types.DriftEvent, error) {
	return NewDriftRepo(s.db).Recent(ctx, limit)
}

func (s *SqliteStore) LoadCounter(ctx context.Context, day string) (types.DailyRiskCounter, error) {
	return NewCounterRepo(s.db).Load(ctx, day)
}

func (s *SqliteStore) SaveCounter(ctx context.Context, counter types.DailyRiskCounter) error {
	return NewCounterRepo(s.db).Save(ctx, counter)
}

// DailyStats returns per-day statistics for the last `days` UTC days including today.
func (s *SqliteStore) DailyStats(ctx context.Context, days int, now time.Time) ([]types.DailyStats, error) {
	if days <= 0 {
		days = 7
	}
	today := now.UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(days - 1))
	stats, err := NewTradeRepo(s.db).DailyStats(ctx, since)
	if err != nil {
		return nil, err
	}
	fees, err := NewFundFlowRepo(s.db).CommissionByDay(ctx, since)
	if err != nil {
		return nil, err
	}
	for i := range stats {
		stats[i].Commission = fees[stats[i].Day]
	}
	return stats, nil
}
