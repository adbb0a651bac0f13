package sqlite

import (
	"context"
	"sort"
	"time"

	"crossguard/internal/store"
	"crossguard/internal/store/model"
	"crossguard/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type tradeRepo struct {
	db *gorm.DB
}

func NewTradeRepo(db *gorm.DB) *tradeRepo {
	return &tradeRepo{db: db}
}

// Append inserts the record; an existing id is left untouched.
func (r *tradeRepo) Append(ctx context.Context, rec types.TradeRecord) error {
	m := model.FromTrade(rec)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (r *tradeRepo) Query(ctx context.Context, filter store.TradeFilter) ([]types.TradeRecord, error) {
	q := r.db.WithContext(ctx).Model(&model.TradeModel{})
	if filter.Symbol != "" {
		q = q.Where("symbol = ?", filter.Symbol)
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since.UnixMilli())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var rows []model.TradeModel
	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.TradeRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToRecord())
	}
	return out, nil
}

// DailyStats aggregates trades since the given time per UTC day, newest first.
// Commission is filled in by the caller from fund flows.
func (r *tradeRepo) DailyStats(ctx context.Context, since time.Time) ([]types.DailyStats, error) {
	var rows []model.TradeModel
	if err := r.db.WithContext(ctx).
		Where("timestamp >= ?", since.UnixMilli()).
		Order("timestamp ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byDay := make(map[string]*types.DailyStats)
	for _, row := range rows {
		st, ok := byDay[row.Day]
		if !ok {
			st = &types.DailyStats{Day: row.Day}
			byDay[row.Day] = st
		}
		st.Volume += row.Notional
		if row.RealizedPnL == nil {
			continue
		}
		pnl := *row.RealizedPnL
		st.Trades++
		st.PnL += pnl
		switch {
		case pnl > 0:
			st.Wins++
		case pnl < 0:
			st.Losses++
		}
	}
	out := make([]types.DailyStats, 0, len(byDay))
	for _, st := range byDay {
		if st.Trades > 0 {
			st.WinRate = float64(st.Wins) / float64(st.Trades)
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	return out, nil
}
