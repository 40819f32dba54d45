package repository

import (
	"context"

	"cronfetch/internal/model"

	"gorm.io/gorm"
)

type TaskLogRepository interface {
	Create(ctx context.Context, log *model.TaskLog) error
	CountByTask(ctx context.Context, taskID string) (int64, error)
	FindOldestByTask(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error)
	FindRecentByTask(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error)
	DeleteByID(ctx context.Context, id uint) error
	DeleteByTask(ctx context.Context, taskID string) (int64, error)
}

type taskLogRepository struct {
	db *gorm.DB
}

func NewTaskLogRepository(db *gorm.DB) TaskLogRepository {
	return &taskLogRepository{db: db}
}

func (r *taskLogRepository) Create(ctx context.Context, log *model.TaskLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *taskLogRepository) CountByTask(ctx context.Context, taskID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TaskLog{}).
		Where("task_id = ?", taskID).
		Count(&count).Error
	return count, err
}

func (r *taskLogRepository) FindOldestByTask(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	var logs []model.TaskLog
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *taskLogRepository) FindRecentByTask(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	var logs []model.TaskLog
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&logs).Error
	if err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *taskLogRepository) DeleteByID(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.TaskLog{}, id).Error
}

func (r *taskLogRepository) DeleteByTask(ctx context.Context, taskID string) (int64, error) {
	result := r.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&model.TaskLog{})
	return result.RowsAffected, result.Error
}
