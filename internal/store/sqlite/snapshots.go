package sqlite

import (
	"context"
	"errors"
	"time"

	"crossguard/internal/store"
	"crossguard/internal/store/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type snapshotRepo struct {
	db *gorm.DB
}

func NewSnapshotRepo(db *gorm.DB) *snapshotRepo {
	return &snapshotRepo{db: db}
}

func (r *snapshotRepo) Append(ctx context.Context, rec store.SnapshotRecord) error {
	m := model.SnapshotModel{
		ID:        rec.ID,
		Kind:      rec.Kind,
		Payload:   datatypes.JSON(rec.Payload),
		Timestamp: rec.Timestamp.UnixMilli(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&m).Error
}

func (r *snapshotRepo) Latest(ctx context.Context, kind string) (store.SnapshotRecord, error) {
	var m model.SnapshotModel
	err := r.db.WithContext(ctx).Where("kind = ?", kind).Order("timestamp DESC").First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return store.SnapshotRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.SnapshotRecord{}, err
	}
	return toSnapshot(m), nil
}

func (r *snapshotRepo) Range(ctx context.Context, kind string, since time.Time, limit int) ([]store.SnapshotRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	var rows []model.SnapshotModel
	if err := r.db.WithContext(ctx).
		Where("kind = ? AND timestamp >= ?", kind, since.UnixMilli()).
		Order("timestamp ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]store.SnapshotRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, toSnapshot(row))
	}
	return out, nil
}

func toSnapshot(m model.SnapshotModel) store.SnapshotRecord {
	return store.SnapshotRecord{
		ID:        m.ID,
		Kind:      m.Kind,
		Payload:   []byte(m.Payload),
		Timestamp: time.UnixMilli(m.Timestamp).UTC(),
	}
}
