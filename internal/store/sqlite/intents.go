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

type intentRepo struct {
	db *gorm.DB
}

func NewIntentRepo(db *gorm.DB) *intentRepo {
	return &intentRepo{db: db}
}

// Save upserts the intent by id.
func (r *intentRepo) Save(ctx context.Context, intent types.OrderIntent) error {
	if intent.ID == "" {
		return errors.New("intent id cannot be empty")
	}
	m := model.FromIntent(intent)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&m).Error
}

func (r *intentRepo) Find(ctx context.Context, id string) (types.OrderIntent, error) {
	var m model.OrderIntentModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return types.OrderIntent{}, store.ErrNotFound
	}
	if err != nil {
		return types.OrderIntent{}, err
	}
	return m.ToIntent(), nil
}

func (r *intentRepo) Pending(ctx context.Context) ([]types.OrderIntent, error) {
	var rows []model.OrderIntentModel
	if err := r.db.WithContext(ctx).
		Where("state = ?", string(types.IntentPending)).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toIntents(rows), nil
}

func (r *intentRepo) Recent(ctx context.Context, limit int) ([]types.OrderIntent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.OrderIntentModel
	if err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return toIntents(rows), nil
}

func toIntents(rows []model.OrderIntentModel) []types.OrderIntent {
	out := make([]types.OrderIntent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ToIntent())
	}
	return out
}
