package repository

import (
	"context"
	"errors"
	"time"

	"cronfetch/internal/model"

	"gorm.io/gorm"
)

type TaskRepository interface {
	Create(ctx context.Context, task *model.Task) error
	Update(ctx context.Context, task *model.Task) error
	FindOne(ctx context.Context, param *model.GetTaskParam) (*model.Task, error)
	FindOneOrFail(ctx context.Context, id string) (*model.Task, error)
	FindOneUnscoped(ctx context.Context, id string) (*model.Task, error)
	FindMany(ctx context.Context, param *model.GetTaskParam) ([]model.Task, string, error)
	FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]model.Task, error)
	Count(ctx context.Context, param *model.GetTaskParam) (int64, error)
	SoftDelete(ctx context.Context, id string) error
	HardDelete(ctx context.Context, id string) error
}

type taskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Create(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Create(task).Error
}

func (r *taskRepository) Update(ctx context.Context, task *model.Task) error {
	return r.db.WithContext(ctx).Save(task).Error
}

func (r *taskRepository) FindOne(ctx context.Context, param *model.GetTaskParam) (*model.Task, error) {
	var task model.Task
	err := r.applyParam(r.db.WithContext(ctx), param).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) FindOneOrFail(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindOneUnscoped also sees soft-deleted rows. Hard deletion and the sweep
// need it; everything else stays behind the soft-delete scope.
func (r *taskRepository) FindOneUnscoped(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Unscoped().Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindMany pages with an id keyset cursor. The returned cursor is empty once
// the scan is exhausted.
func (r *taskRepository) FindMany(ctx context.Context, param *model.GetTaskParam) ([]model.Task, string, error) {
	var tasks []model.Task

	db := r.applyParam(r.db.WithContext(ctx), param)
	if param.Cursor != "" {
		db = db.Where("id > ?", param.Cursor)
	}
	limit := param.Limit
	if limit <= 0 {
		limit = 100
	}

	if err := db.Order("id ASC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(tasks) == limit {
		nextCursor = tasks[len(tasks)-1].ID
	}
	return tasks, nextCursor, nil
}

func (r *taskRepository) FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *taskRepository) Count(ctx context.Context, param *model.GetTaskParam) (int64, error) {
	var count int64
	err := r.applyParam(r.db.WithContext(ctx).Model(&model.Task{}), param).Count(&count).Error
	return count, err
}

func (r *taskRepository) SoftDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Task{}).Error
}

func (r *taskRepository) HardDelete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Unscoped().Where("id = ?", id).Delete(&model.Task{}).Error
}

func (r *taskRepository) applyParam(db *gorm.DB, param *model.GetTaskParam) *gorm.DB {
	if param == nil {
		return db
	}
	if param.UserID != nil {
		db = db.Where("user_id = ?", *param.UserID)
	}
	if param.IsEnable != nil {
		db = db.Where("is_enable = ?", *param.IsEnable)
	}
	if param.Name != nil {
		db = db.Where("name = ?", *param.Name)
	}
	return db
}
