package service

import (
	"context"
	"encoding/json"
	"fmt"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/internal/queue"
	"cronfetch/internal/repository"
	"cronfetch/pkg/common"
	"cronfetch/pkg/logger"
)

// LogWriter persists execution logs under the rolling per-task retention
// cap. The cap is approximate under concurrent writers — two simultaneous
// inserts can momentarily exceed it by one, which self-corrects on the next
// write. Acceptable for an operational log.
type LogWriter struct {
	cfg     *config.Config
	log     *logger.Logger
	logRepo repository.TaskLogRepository
}

func NewLogWriter(cfg *config.Config, log *logger.Logger, logRepo repository.TaskLogRepository) *LogWriter {
	return &LogWriter{
		cfg:     cfg,
		log:     log,
		logRepo: logRepo,
	}
}

func (w *LogWriter) Handle(ctx context.Context, job *queue.Job) error {
	switch job.Name {
	case common.JobWriteLog:
		var taskLog model.TaskLog
		if err := json.Unmarshal(job.Payload, &taskLog); err != nil {
			return fmt.Errorf("failed to unmarshal execution log: %w", err)
		}
		return w.Persist(ctx, &taskLog)
	default:
		return fmt.Errorf("%w: %s", queue.ErrNotImplementedJob, job.Name)
	}
}

// Persist evicts the oldest log once the task is at the cap, then inserts
// the new one, keeping a bounded FIFO window per task.
func (w *LogWriter) Persist(ctx context.Context, taskLog *model.TaskLog) error {
	maxLogs := w.cfg.Retention.MaxLogsPerTask
	if maxLogs <= 0 {
		maxLogs = 10
	}

	existing, err := w.logRepo.FindOldestByTask(ctx, taskLog.TaskID, maxLogs)
	if err != nil {
		return fmt.Errorf("failed to load existing logs: %w", err)
	}

	if len(existing) >= maxLogs {
		if err := w.logRepo.DeleteByID(ctx, existing[0].ID); err != nil {
			return fmt.Errorf("failed to evict oldest log: %w", err)
		}
		w.log.DebugContext(ctx, "Evicted oldest execution log",
			logger.StringField("task_id", taskLog.TaskID),
			logger.IntField("log_id", int(existing[0].ID)),
		)
	}

	if err := w.logRepo.Create(ctx, taskLog); err != nil {
		return fmt.Errorf("failed to insert execution log: %w", err)
	}
	return nil
}
