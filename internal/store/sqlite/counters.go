package sqlite

import (
	"context"
	"errors"

	"crossguard/internal/store"
	"crossguard/internal/store/model"
	"crossguard/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type counterRepo struct {
	db *gorm.DB
}

func NewCounterRepo(db *gorm.DB) *counterRepo {
	return &counterRepo{db: db}
}

func (r *counterRepo) Load(ctx context.Context, day string) (types.DailyRiskCounter, error) {
	var m model.RiskCounterModel
	err := r.db.WithContext(ctx).Where("day = ?", day).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.DailyRiskCounter{}, store.ErrNotFound
	}
	if err != nil {
		return types.DailyRiskCounter{}, err
	}
	return m.ToCounter(), nil
}

func (r *counterRepo) Save(ctx context.Context, counter types.DailyRiskCounter) error {
	if counter.Day == "" {
		return errors.New("counter day cannot be empty")
	}
	m := model.FromCounter(counter)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		UpdateAll: true,
	}).Create(&m).Error
}
