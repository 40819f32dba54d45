package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/internal/queue"
	"cronfetch/internal/repository"
	"cronfetch/pkg/common"
	"cronfetch/pkg/logger"
	"cronfetch/pkg/utils"
)

const (
	restoreJobPriority = 10
	restoreJobAttempts = 3
	restoreJobBackoff  = 3 * time.Second
)

// StartupReconciler re-asserts the schedule entries of every enabled,
// non-deleted task after a restart, healing any divergence between the store
// and the queue (e.g. a crash between a DB write and a queue mutation).
type StartupReconciler struct {
	cfg          *config.Config
	log          *logger.Logger
	taskRepo     repository.TaskRepository
	restoreQueue queue.Queue
	registrar    ScheduleRegistrar
}

func NewStartupReconciler(cfg *config.Config, log *logger.Logger, taskRepo repository.TaskRepository, restoreQueue queue.Queue, registrar ScheduleRegistrar) *StartupReconciler {
	return &StartupReconciler{
		cfg:          cfg,
		log:          log,
		taskRepo:     taskRepo,
		restoreQueue: restoreQueue,
		registrar:    registrar,
	}
}

// Run cursor-paginates all enabled tasks and enqueues one restore job per
// task. The restore consumer does the actual stop+start so a slow store scan
// never blocks startup.
func (r *StartupReconciler) Run(ctx context.Context) error {
	pageSize := r.cfg.Schedule.RestorePageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	total := 0
	cursor := ""
	for {
		if !utils.ShouldContinue(ctx, r.log) {
			return ctx.Err()
		}

		tasks, nextCursor, err := r.taskRepo.FindMany(ctx, &model.GetTaskParam{
			IsEnable: utils.ToPointer(true),
			Cursor:   cursor,
			Limit:    pageSize,
		})
		if err != nil {
			return fmt.Errorf("failed to scan tasks for restore: %w", err)
		}

		for i := range tasks {
			if err := r.enqueueRestore(ctx, &tasks[i]); err != nil {
				r.log.ErrorContext(ctx, "Failed to enqueue restore job",
					logger.ErrorField(err),
					logger.StringField("task_id", tasks[i].ID),
				)
				continue
			}
			total++
		}

		if nextCursor == "" {
			break
		}
		cursor = nextCursor
	}

	r.log.InfoContext(ctx, "Startup reconciliation enqueued",
		logger.IntField("task_count", total),
	)
	return nil
}

func (r *StartupReconciler) enqueueRestore(ctx context.Context, task *model.Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task snapshot: %w", err)
	}
	return r.restoreQueue.Add(ctx, common.JobRestore, payload, queue.JobOptions{
		JobID:            task.ID,
		Priority:         restoreJobPriority,
		Attempts:         restoreJobAttempts,
		Backoff:          restoreJobBackoff,
		RemoveOnComplete: true,
		RemoveOnFail:     true,
	})
}

// Handle consumes restore jobs: an unconditional stop-then-start per task,
// an idempotent re-assertion rather than a diff.
func (r *StartupReconciler) Handle(ctx context.Context, job *queue.Job) error {
	switch job.Name {
	case common.JobRestore:
		return r.restore(ctx, job)
	default:
		return fmt.Errorf("%w: %s", queue.ErrNotImplementedJob, job.Name)
	}
}

func (r *StartupReconciler) restore(ctx context.Context, job *queue.Job) error {
	var task model.Task
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		return fmt.Errorf("failed to unmarshal task snapshot: %w", err)
	}

	if _, err := r.registrar.Stop(ctx, &task); err != nil {
		return fmt.Errorf("failed to stop schedule during restore: %w", err)
	}
	if err := r.registrar.Start(ctx, &task); err != nil {
		return fmt.Errorf("failed to start schedule during restore: %w", err)
	}

	r.log.DebugContext(ctx, "Schedule restored",
		logger.StringField("task_id", task.ID),
	)
	return nil
}
