package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"FareWatch/internal/model"
	"FareWatch/pkg/errors"
)

// TripRepository 行程读取，工作流侧只读。
type TripRepository struct {
	db *gorm.DB
}

func NewTripRepository(db *gorm.DB) *TripRepository {
	return &TripRepository{db: db}
}

// LoadTripDetails 加载行程与两份偏好的只读快照。
// 行程不存在（含软删除）时返回 errors.TripNotFound。
// 偏好缺失不算错误，按零值偏好处理（等价于"不限"）。
func (r *TripRepository) LoadTripDetails(ctx context.Context, tripID int64) (*model.TripDetails, error) {
	var trip model.Trip
	if err := r.db.WithContext(ctx).First(&trip, tripID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("trip %d: %w", tripID, errors.TripNotFound)
		}
		return nil, fmt.Errorf("failed to load trip %d: %w", tripID, err)
	}

	details := &model.TripDetails{Trip: trip}

	if err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		First(&details.FlightPrefs).Error; err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load flight prefs for trip %d: %w", tripID, err)
	}

	if err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		First(&details.HotelPrefs).Error; err != nil && err != gorm.ErrRecordNotFound {
		return nil, fmt.Errorf("failed to load hotel prefs for trip %d: %w", tripID, err)
	}

	return details, nil
}

// ListActiveTripIDs 返回用户所有非 paused 行程的 id，供全量刷新枚举。
func (r *TripRepository) ListActiveTripIDs(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Trip{}).
		Where("user_id = ?", userID).
		Where("status <> ?", model.TripStatusPaused).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active trips for user %d: %w", userID, err)
	}

	return ids, nil
}

// ListUserIDsWithActiveTrips 返回至少有一条活跃行程的用户 id，供调度器扫描。
func (r *TripRepository) ListUserIDsWithActiveTrips(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.Trip{}).
		Where("status <> ?", model.TripStatusPaused).
		Distinct().
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list users with active trips: %w", err)
	}

	return ids, nil
}
