package service

import (
	"context"
	"fmt"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/internal/repository"
	"cronfetch/pkg/logger"
	"cronfetch/pkg/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskService is the contract the API layer drives: every mutation validates
// first, persists second, and touches the live schedule last.
type TaskService interface {
	Create(ctx context.Context, task *model.Task) (*model.Task, error)
	Update(ctx context.Context, task *model.Task) (*model.Task, error)
	SoftDelete(ctx context.Context, userID, id string) error
	HardDelete(ctx context.Context, userID, id string) error
	Disable(ctx context.Context, taskID string) (*model.Task, error)
	Get(ctx context.Context, userID, id string) (*model.Task, error)
	List(ctx context.Context, param *model.GetTaskParam) ([]model.Task, string, error)
	ListLogs(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error)
}

type taskService struct {
	cfg       *config.Config
	log       *logger.Logger
	taskRepo  repository.TaskRepository
	logRepo   repository.TaskLogRepository
	validator *CronValidator
	registrar ScheduleRegistrar
}

func NewTaskService(cfg *config.Config, log *logger.Logger, taskRepo repository.TaskRepository, logRepo repository.TaskLogRepository, validator *CronValidator, registrar ScheduleRegistrar) TaskService {
	return &taskService{
		cfg:       cfg,
		log:       log,
		taskRepo:  taskRepo,
		logRepo:   logRepo,
		validator: validator,
		registrar: registrar,
	}
}

func (s *taskService) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	if err := s.validator.Validate(task.Cron, task.Timezone); err != nil {
		return nil, err
	}
	if err := s.checkNameConflict(ctx, task.UserID, task.Name, ""); err != nil {
		return nil, err
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	task.CronHistory = nil

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if task.IsEnable {
		if err := s.registrar.Start(ctx, task); err != nil {
			return nil, fmt.Errorf("task created but schedule registration failed: %w", err)
		}
	}

	s.log.InfoContext(ctx, "Task created",
		logger.StringField("task_id", task.ID),
		logger.StringField("user_id", task.UserID),
		logger.BoolField("enabled", task.IsEnable),
	)
	return task, nil
}

func (s *taskService) Update(ctx context.Context, task *model.Task) (*model.Task, error) {
	if err := s.validator.Validate(task.Cron, task.Timezone); err != nil {
		return nil, err
	}

	oldTask, err := s.taskRepo.FindOneOrFail(ctx, task.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	// a caller acting as another user must not see the task exists
	if task.UserID != "" && task.UserID != oldTask.UserID {
		return nil, gorm.ErrRecordNotFound
	}

	if task.Name != oldTask.Name {
		if err := s.checkNameConflict(ctx, oldTask.UserID, task.Name, task.ID); err != nil {
			return nil, err
		}
	}

	task.UserID = oldTask.UserID
	task.CreatedAt = oldTask.CreatedAt
	task.CronHistory = nextCronHistory(oldTask, task.Cron)

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if err := s.registrar.Reconcile(ctx, oldTask, task); err != nil {
		return nil, fmt.Errorf("task updated but schedule reconcile failed: %w", err)
	}

	s.log.InfoContext(ctx, "Task updated",
		logger.StringField("task_id", task.ID),
	)
	return task, nil
}

func (s *taskService) SoftDelete(ctx context.Context, userID, id string) error {
	task, err := s.taskRepo.FindOneOrFail(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	if task.UserID != userID {
		return gorm.ErrRecordNotFound
	}

	if err := s.taskRepo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to soft-delete task: %w", err)
	}

	if _, err := s.registrar.Stop(ctx, task); err != nil {
		return fmt.Errorf("task deleted but schedule removal failed: %w", err)
	}

	s.log.InfoContext(ctx, "Task soft-deleted",
		logger.StringField("task_id", id),
	)
	return nil
}

func (s *taskService) HardDelete(ctx context.Context, userID, id string) error {
	task, err := s.taskRepo.FindOneUnscoped(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load task: %w", err)
	}
	if task.UserID != userID {
		return gorm.ErrRecordNotFound
	}

	if _, err := s.logRepo.DeleteByTask(ctx, id); err != nil {
		return fmt.Errorf("failed to delete task logs: %w", err)
	}
	if err := s.taskRepo.HardDelete(ctx, id); err != nil {
		return fmt.Errorf("failed to hard-delete task: %w", err)
	}
	if _, err := s.registrar.Stop(ctx, task); err != nil {
		return fmt.Errorf("task purged but schedule removal failed: %w", err)
	}

	s.log.InfoContext(ctx, "Task hard-deleted",
		logger.StringField("task_id", id),
	)
	return nil
}

// Disable flips the task off and removes its schedule entry. Driven by the
// failure-streak tracker when a threshold is crossed.
func (s *taskService) Disable(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.taskRepo.FindOneOrFail(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load task: %w", err)
	}
	if !task.IsEnable {
		return task, nil
	}

	task.IsEnable = false
	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to persist disable: %w", err)
	}

	if _, err := s.registrar.Stop(ctx, task); err != nil {
		return nil, fmt.Errorf("task disabled but schedule removal failed: %w", err)
	}
	return task, nil
}

func (s *taskService) Get(ctx context.Context, userID, id string) (*model.Task, error) {
	task, err := s.taskRepo.FindOneOrFail(ctx, id)
	if err != nil {
		return nil, err
	}
	// scope by owner as well, a bare id lookup would leak other users' tasks
	if task.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return task, nil
}

func (s *taskService) List(ctx context.Context, param *model.GetTaskParam) ([]model.Task, string, error) {
	return s.taskRepo.FindMany(ctx, param)
}

func (s *taskService) ListLogs(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	if limit <= 0 || limit > s.cfg.Retention.MaxLogsPerTask {
		limit = s.cfg.Retention.MaxLogsPerTask
	}
	return s.logRepo.FindRecentByTask(ctx, taskID, limit)
}

func (s *taskService) checkNameConflict(ctx context.Context, userID, name, excludeID string) error {
	existing, err := s.taskRepo.FindOne(ctx, &model.GetTaskParam{
		UserID: utils.ToPointer(userID),
		Name:   utils.ToPointer(name),
	})
	if err != nil {
		return fmt.Errorf("failed to check name conflict: %w", err)
	}
	if existing != nil && existing.ID != excludeID {
		return fmt.Errorf("%w: %q", ErrTaskNameConflict, name)
	}
	return nil
}

// nextCronHistory carries forward the old history, records the previous cron
// when the expression changed, and never contains the current one.
func nextCronHistory(oldTask *model.Task, newCron string) []string {
	history := make([]string, 0, len(oldTask.CronHistory)+1)
	seen := make(map[string]struct{})
	for _, p := range append([]string(oldTask.CronHistory), oldTask.Cron) {
		if p == "" || p == newCron {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		history = append(history, p)
	}
	return history
}
