package common

import "fmt"

// Queue names. Job identity for repeatable entries is always the task id,
// keeping at most one live entry per (task, pattern) pair.
const (
	QueueTasks             = "tasks"
	QueueTaskLogs          = "task-logs"
	QueueClearDeletedTasks = "clear-deleted-tasks"
	QueueRestoreTasks      = "restore-tasks"
)

// Job names dispatched on the queues above.
const (
	JobFetch        = "fetch"
	JobWriteLog     = "write-log"
	JobClearDeleted = "clear-deleted"
	JobRestore      = "restore"
)

// Fixed job id for the daily sweep so re-registration at startup stays
// idempotent.
const SweeperJobID = "clear-deleted-tasks"

const (
	KEY_FAIL_STREAK   = "streak:%s:%s"
	KEY_DISABLE_CLAIM = "streak_disable:%s:%s"
)

const KEY_LOG_HOOK_SEND_ALERT = "send_alert"

func FailStreakKey(userID, taskID string) string {
	return fmt.Sprintf(KEY_FAIL_STREAK, userID, taskID)
}

func DisableClaimKey(userID, taskID string) string {
	return fmt.Sprintf(KEY_DISABLE_CLAIM, userID, taskID)
}
