package sqlite

import (
	"context"
	"time"

	"crossguard/internal/store"
	"crossguard/internal/store/model"
	"crossguard/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type fundFlowRepo struct {
	db *gorm.DB
}

func NewFundFlowRepo(db *gorm.DB) *fundFlowRepo {
	return &fundFlowRepo{db: db}
}

func (r *fundFlowRepo) Append(ctx context.Context, rec types.FundFlowRecord) error {
	m := model.FromFundFlow(rec)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (r *fundFlowRepo) Query(ctx context.Context, filter store.FlowFilter) ([]types.FundFlowRecord, error) {
	q := r.db.WithContext(ctx).Model(&model.FundFlowModel{})
	if filter.Type != "" {
		q = q.Where("type = ?", string(filter.Type))
	}
	if !filter.Since.IsZero() {
		q = q.Where("timestamp >= ?", filter.Since.UnixMilli())
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var rows []model.FundFlowModel
	if err := q.Order("timestamp DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.FundFlowRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToRecord())
	}
	return out, nil
}

// CommissionByDay returns total commission paid per UTC day as a positive number.
func (r *fundFlowRepo) CommissionByDay(ctx context.Context, since time.Time) (map[string]float64, error) {
	type dayTotal struct {
		Day   string
		Total float64
	}
	var rows []dayTotal
	if err := r.db.WithContext(ctx).
		Model(&model.FundFlowModel{}).
		Select("day, SUM(amount) AS total").
		Where("type = ? AND timestamp >= ?", string(types.FlowCommission), since.UnixMilli()).
		Group("day").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.Day] = -row.Total
	}
	return out, nil
}
