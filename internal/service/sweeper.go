package service

import (
	"context"
	"fmt"
	"time"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/internal/queue"
	"cronfetch/internal/repository"
	"cronfetch/pkg/common"
	"cronfetch/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Sweeper permanently removes tasks soft-deleted beyond the retention
// threshold, cascading to their logs and any lingering schedule entries.
type Sweeper struct {
	cfg        *config.Config
	log        *logger.Logger
	taskRepo   repository.TaskRepository
	logRepo    repository.TaskLogRepository
	registrar  ScheduleRegistrar
	sweepQueue queue.Queue
}

func NewSweeper(cfg *config.Config, log *logger.Logger, taskRepo repository.TaskRepository, logRepo repository.TaskLogRepository, registrar ScheduleRegistrar, sweepQueue queue.Queue) *Sweeper {
	return &Sweeper{
		cfg:        cfg,
		log:        log,
		taskRepo:   taskRepo,
		logRepo:    logRepo,
		registrar:  registrar,
		sweepQueue: sweepQueue,
	}
}

// RegisterSchedule installs the daily sweep as a repeatable entry under a
// fixed job id, making re-registration at every startup idempotent.
func (s *Sweeper) RegisterSchedule(ctx context.Context) error {
	return s.sweepQueue.Add(ctx, common.JobClearDeleted, nil, queue.JobOptions{
		JobID: common.SweeperJobID,
		Repeat: &queue.RepeatOptions{
			Pattern: s.cfg.Sweeper.Cron,
		},
		Attempts:         1,
		RemoveOnComplete: true,
		RemoveOnFail:     true,
	})
}

func (s *Sweeper) Handle(ctx context.Context, job *queue.Job) error {
	switch job.Name {
	case common.JobClearDeleted:
		return s.Execute(ctx)
	default:
		return fmt.Errorf("%w: %s", queue.ErrNotImplementedJob, job.Name)
	}
}

// Execute hard-deletes every task soft-deleted longer ago than the retention
// window. Tasks are swept in parallel; a per-task failure is logged and does
// not abort the rest of the sweep.
func (s *Sweeper) Execute(ctx context.Context) error {
	retentionDays := s.cfg.Sweeper.RetentionDays
	if retentionDays <= 0 {
		retentionDays = 30
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	tasks, err := s.taskRepo.FindDeletedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to find expired deleted tasks: %w", err)
	}
	if len(tasks) == 0 {
		s.log.InfoContext(ctx, "No expired deleted tasks to sweep")
		return nil
	}

	s.log.InfoContext(ctx, "Sweeping expired deleted tasks",
		logger.IntField("task_count", len(tasks)),
	)

	maxConcurrency := s.cfg.Sweeper.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i := range tasks {
		task := tasks[i]
		g.Go(func() error {
			if err := s.sweepOne(gctx, &task); err != nil {
				s.log.ErrorContextWithAlert(gctx, "Failed to sweep deleted task",
					logger.ErrorField(err),
					logger.StringField("task_id", task.ID),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

func (s *Sweeper) sweepOne(ctx context.Context, task *model.Task) error {
	deleted, err := s.logRepo.DeleteByTask(ctx, task.ID)
	if err != nil {
		return fmt.Errorf("failed to delete logs: %w", err)
	}

	if err := s.taskRepo.HardDelete(ctx, task.ID); err != nil {
		return fmt.Errorf("failed to hard-delete task: %w", err)
	}

	if _, err := s.registrar.Stop(ctx, task); err != nil {
		return fmt.Errorf("failed to stop lingering schedule: %w", err)
	}

	s.log.InfoContext(ctx, "Task purged",
		logger.StringField("task_id", task.ID),
		logger.IntField("logs_deleted", int(deleted)),
	)
	return nil
}
