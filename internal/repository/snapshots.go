package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"FareWatch/internal/model"
	"FareWatch/pkg/snowflake"
)

// SnapshotRepository 价格快照存取，只有插入和按行程查询，没有更新。
type SnapshotRepository struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Save 写入一条快照。ID 为空时由 snowflake 生成。
func (r *SnapshotRepository) Save(ctx context.Context, snap *model.PriceSnapshot) error {
	if snap.ID == 0 {
		id, err := snowflake.NextID()
		if err != nil {
			return fmt.Errorf("failed to generate snapshot id: %w", err)
		}
		snap.ID = id
	}

	if err := r.db.WithContext(ctx).Create(snap).Error; err != nil {
		return fmt.Errorf("failed to save snapshot for trip %d: %w", snap.TripID, err)
	}

	return nil
}

// ListByTrip 按时间倒序返回行程的快照历史。
func (r *SnapshotRepository) ListByTrip(ctx context.Context, tripID int64, limit int) ([]model.PriceSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	var snaps []model.PriceSnapshot
	err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("created_at DESC").
		Limit(limit).
		Find(&snaps).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots for trip %d: %w", tripID, err)
	}

	return snaps, nil
}
