package repository

import (
	"gorm.io/gorm"
)

type Repository struct {
	TaskRepo    TaskRepository
	TaskLogRepo TaskLogRepository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		TaskRepo:    NewTaskRepository(db),
		TaskLogRepo: NewTaskLogRepository(db),
	}
}
