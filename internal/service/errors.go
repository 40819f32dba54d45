package service

import "errors"

var (
	// ErrInvalidCron marks a cron expression or timezone that cannot be parsed.
	ErrInvalidCron = errors.New("invalid cron expression")
	// ErrTooFrequent marks a schedule firing faster than the platform floor.
	ErrTooFrequent = errors.New("cron schedule is too frequent")
	// ErrTaskNameConflict marks a task name already used by the same user.
	ErrTaskNameConflict = errors.New("task name already exists")
	// ErrTaskDeletedConflict marks an attempt to schedule a deleted task.
	ErrTaskDeletedConflict = errors.New("task is deleted and cannot be scheduled")
	// ErrFetchStatus marks a response classified as failure by status code.
	// An unreachable or erroring endpoint is a failure regardless of HTTP
	// semantics.
	ErrFetchStatus = errors.New("endpoint returned failure status")
)
