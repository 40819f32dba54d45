package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/internal/queue"
	"cronfetch/pkg/common"
	"cronfetch/pkg/logger"
)

const (
	fetchJobPriority = 10
	fetchJobAttempts = 3
	fetchJobBackoff  = 3 * time.Second
)

// ScheduleRegistrar owns the mapping from a task to its repeatable queue
// entries. All live-schedule mutation goes through Start, Stop and Reconcile.
type ScheduleRegistrar interface {
	Start(ctx context.Context, task *model.Task) error
	Stop(ctx context.Context, task *model.Task) (bool, error)
	Reconcile(ctx context.Context, oldTask, newTask *model.Task) error
}

type scheduleRegistrar struct {
	cfg        *config.Config
	log        *logger.Logger
	tasksQueue queue.Queue
}

func NewScheduleRegistrar(cfg *config.Config, log *logger.Logger, tasksQueue queue.Queue) ScheduleRegistrar {
	return &scheduleRegistrar{
		cfg:        cfg,
		log:        log,
		tasksQueue: tasksQueue,
	}
}

// Start registers a repeatable fetch entry keyed by the task id. A deleted
// task must never be (re)started: any live entries are stopped and the call
// fails.
func (r *scheduleRegistrar) Start(ctx context.Context, task *model.Task) error {
	if task.IsDeleted() {
		if _, err := r.Stop(ctx, task); err != nil {
			r.log.ErrorContext(ctx, "Failed to stop schedule for deleted task",
				logger.ErrorField(err),
				logger.StringField("task_id", task.ID),
			)
		}
		return fmt.Errorf("%w: task %s", ErrTaskDeletedConflict, task.ID)
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task snapshot: %w", err)
	}

	err = r.tasksQueue.Add(ctx, common.JobFetch, payload, queue.JobOptions{
		JobID: task.ID,
		Repeat: &queue.RepeatOptions{
			Pattern:  task.Cron,
			Timezone: task.Timezone,
		},
		Priority:         fetchJobPriority,
		Attempts:         fetchJobAttempts,
		Backoff:          fetchJobBackoff,
		RemoveOnComplete: true,
		RemoveOnFail:     true,
	})
	if err != nil {
		return fmt.Errorf("failed to register schedule entry: %w", err)
	}

	r.log.InfoContext(ctx, "Schedule started",
		logger.StringField("task_id", task.ID),
		logger.StringField("cron", task.Cron),
	)
	return nil
}

// Stop removes the repeatable entry for the current cron and for every
// pattern in the cron history; a task rescheduled multiple times may still
// hold stale entries for older patterns. Reports whether at least one entry
// was removed.
func (r *scheduleRegistrar) Stop(ctx context.Context, task *model.Task) (bool, error) {
	removedAny := false
	for _, pattern := range task.AllCronPatterns() {
		removed, err := r.tasksQueue.RemoveRepeatable(ctx, common.JobFetch, pattern, task.ID)
		if err != nil {
			return removedAny, fmt.Errorf("failed to remove schedule entry for pattern %q: %w", pattern, err)
		}
		removedAny = removedAny || removed
	}

	r.log.InfoContext(ctx, "Schedule stopped",
		logger.StringField("task_id", task.ID),
		logger.BoolField("removed_any", removedAny),
	)
	return removedAny, nil
}

// Reconcile applies an update to the live schedule. Any change to a field
// baked into the job payload forces a full stop+start cycle; there is no
// in-place modification of a repeatable entry.
func (r *scheduleRegistrar) Reconcile(ctx context.Context, oldTask, newTask *model.Task) error {
	if !oldTask.ScheduleFieldsChanged(newTask) {
		return nil
	}

	if oldTask.IsEnable {
		if _, err := r.Stop(ctx, oldTask); err != nil {
			return err
		}
	}
	if newTask.IsEnable {
		return r.Start(ctx, newTask)
	}
	return nil
}
