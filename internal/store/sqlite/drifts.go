package sqlite

import (
	"context"

	"crossguard/internal/store/model"
	"crossguard/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type driftRepo struct {
	db *gorm.DB
}

func NewDriftRepo(db *gorm.DB) *driftRepo {
	return &driftRepo{db: db}
}

func (r *driftRepo) Append(ctx context.Context, ev types.DriftEvent) error {
	m := model.FromDrift(ev)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (r *driftRepo) Recent(ctx context.Context, limit int) ([]types.DriftEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.DriftEventModel
	if err := r.db.WithContext(ctx).
		Order("detected_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.DriftEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToEvent())
	}
	return out, nil
}
