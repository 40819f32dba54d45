package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/pkg/cache"
	"cronfetch/pkg/common"
	"cronfetch/pkg/logger"
	"cronfetch/pkg/notify"
)

// disableClaimTTL bounds how long a crashed claimant can block a re-disable.
const disableClaimTTL = time.Minute

// TaskDisabler flips a task off and removes its schedule entry. Implemented
// by the task service.
type TaskDisabler interface {
	Disable(ctx context.Context, taskID string) (*model.Task, error)
}

// FailStreakTracker maintains the per-task consecutive-failure counter and
// auto-disables a task when its threshold is crossed. Tracking only applies
// to tasks that opted in with a positive threshold.
type FailStreakTracker interface {
	OnSuccess(ctx context.Context, task *model.Task) error
	OnFailure(ctx context.Context, task *model.Task) error
}

type failStreakTracker struct {
	cfg      *config.Config
	log      *logger.Logger
	store    cache.Cache
	disabler TaskDisabler
	notifier *notify.Notifier
}

func NewFailStreakTracker(cfg *config.Config, log *logger.Logger, store cache.Cache, disabler TaskDisabler, notifier *notify.Notifier) FailStreakTracker {
	return &failStreakTracker{
		cfg:      cfg,
		log:      log,
		store:    store,
		disabler: disabler,
		notifier: notifier,
	}
}

// OnSuccess clears the task's streak counter. A single success resets the
// streak regardless of how high it was.
func (t *failStreakTracker) OnSuccess(ctx context.Context, task *model.Task) error {
	if task.StopAfterFailures <= 0 {
		return nil
	}

	key := common.FailStreakKey(task.UserID, task.ID)
	if _, found := t.store.Get(key); found {
		t.store.Delete(key)
		t.log.DebugContext(ctx, "Failure streak reset",
			logger.StringField("task_id", task.ID),
		)
	}
	return nil
}

// OnFailure bumps the counter atomically. When the threshold is crossed,
// exactly one concurrent executor claims the disable step and performs
// disable + notify + reset; notification failure never blocks or rolls back
// the disable.
func (t *failStreakTracker) OnFailure(ctx context.Context, task *model.Task) error {
	if task.StopAfterFailures <= 0 {
		return nil
	}

	key := common.FailStreakKey(task.UserID, task.ID)
	count, err := t.store.IncrementInt(key, 1)
	if err != nil {
		return fmt.Errorf("failed to increment failure streak: %w", err)
	}

	t.log.DebugContext(ctx, "Failure streak incremented",
		logger.StringField("task_id", task.ID),
		logger.IntField("count", count),
		logger.IntField("threshold", task.StopAfterFailures),
	)

	if count < task.StopAfterFailures {
		return nil
	}

	claimKey := common.DisableClaimKey(task.UserID, task.ID)
	if !t.store.SetIfAbsent(claimKey, true, disableClaimTTL) {
		// another executor already owns the disable step
		return nil
	}

	var (
		wg         sync.WaitGroup
		disableErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := t.disabler.Disable(ctx, task.ID); err != nil {
			disableErr = fmt.Errorf("failed to disable task %s: %w", task.ID, err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := t.notifier.NotifyDisabled(ctx, task, count); err != nil {
			t.log.ErrorContext(ctx, "Failed to notify task owner",
				logger.ErrorField(err),
				logger.StringField("task_id", task.ID),
			)
		}
	}()
	wg.Wait()

	t.store.Delete(key)
	t.store.Delete(claimKey)

	if disableErr != nil {
		return disableErr
	}

	t.log.WarnContext(ctx, "Task auto-disabled after failure streak",
		logger.StringField("task_id", task.ID),
		logger.StringField("user_id", task.UserID),
		logger.IntField("failures", count),
	)
	return nil
}
