package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"FareWatch/internal/model"
	"FareWatch/pkg/snowflake"
)

// RunRepository 价格检查执行记录的存取。
type RunRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// FindOrCreate 按 workflow_id 找回已有执行记录，不存在则新建 pending 记录。
// workflow_id 上的唯一索引兜底并发创建：冲突时重查一次。
func (r *RunRepository) FindOrCreate(ctx context.Context, workflowID string, tripID int64) (*model.PriceCheckRun, error) {
	var run model.PriceCheckRun
	err := r.db.WithContext(ctx).
		Where("workflow_id = ?", workflowID).
		First(&run).Error
	if err == nil {
		return &run, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to find run %s: %w", workflowID, err)
	}

	id, err := snowflake.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}

	run = model.PriceCheckRun{
		ID:         id,
		WorkflowID: workflowID,
		TripID:     tripID,
		Step:       model.RunStepPending,
	}

	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		// 并发创建撞唯一索引，重查
		var existing model.PriceCheckRun
		if ferr := r.db.WithContext(ctx).
			Where("workflow_id = ?", workflowID).
			First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, fmt.Errorf("failed to create run %s: %w", workflowID, err)
	}

	return &run, nil
}

// Update 保存执行记录的最新状态。
func (r *RunRepository) Update(ctx context.Context, run *model.PriceCheckRun) error {
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return fmt.Errorf("failed to update run %s: %w", run.WorkflowID, err)
	}
	return nil
}
