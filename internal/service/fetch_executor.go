package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/internal/queue"
	"cronfetch/pkg/common"
	"cronfetch/pkg/httpclient"
	"cronfetch/pkg/logger"
	"cronfetch/pkg/utils"

	"gorm.io/datatypes"
)

const (
	writeLogAttempts = 3
	writeLogBackoff  = 3 * time.Second
)

// FetchExecutor consumes due fetch jobs: it performs the HTTP call with
// timing capture, classifies the outcome, and dispatches the log write and
// the streak update.
type FetchExecutor struct {
	cfg       *config.Config
	log       *logger.Logger
	client    httpclient.HTTPClient
	logsQueue queue.Queue
	streak    FailStreakTracker
	workerID  string
}

func NewFetchExecutor(cfg *config.Config, log *logger.Logger, client httpclient.HTTPClient, logsQueue queue.Queue, streak FailStreakTracker) *FetchExecutor {
	return &FetchExecutor{
		cfg:       cfg,
		log:       log,
		client:    client,
		logsQueue: logsQueue,
		streak:    streak,
		workerID:  utils.WorkerIdentity(),
	}
}

func (e *FetchExecutor) Handle(ctx context.Context, job *queue.Job) error {
	switch job.Name {
	case common.JobFetch:
		return e.execute(ctx, job)
	default:
		return fmt.Errorf("%w: %s", queue.ErrNotImplementedJob, job.Name)
	}
}

func (e *FetchExecutor) execute(ctx context.Context, job *queue.Job) error {
	var task model.Task
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		return fmt.Errorf("failed to unmarshal task snapshot: %w", err)
	}

	executedAt := time.Now()
	req := &httpclient.Request{
		Method:  task.Method,
		URL:     task.URL,
		Headers: mergeHeaders(e.cfg.Fetch.DefaultHeaders, task.Headers.Data()),
		Body:    task.Body,
	}

	resp, err := e.client.Do(ctx, req)

	bodyCap := e.cfg.Fetch.MaxBodyLogBytes
	taskLog := &model.TaskLog{
		TaskID:      task.ID,
		Method:      task.Method,
		URL:         task.URL,
		ScheduledAt: job.ScheduledAt,
		ExecutedAt:  executedAt,
		WorkerID:    e.workerID,
		RequestBody: utils.BodyForLog([]byte(task.Body), bodyCap),
	}
	if resp != nil {
		taskLog.StatusCode = resp.StatusCode
		taskLog.DurationMs = resp.Duration.Milliseconds()
		taskLog.ResponseSize = int64(len(resp.Body))
		taskLog.ResponseBody = utils.BodyForLog(resp.Body, bodyCap)
		taskLog.Timings = datatypes.NewJSONType(phaseTimings(resp.Trace))
	}

	fetchErr := err
	if fetchErr == nil && isFailureStatus(resp.StatusCode) {
		fetchErr = fmt.Errorf("%w: %d", ErrFetchStatus, resp.StatusCode)
	}
	if fetchErr != nil {
		taskLog.ErrorMessage = fetchErr.Error()
	}

	// Log emission and streak update are independent side effects; run them
	// concurrently. Logging must never be skipped on the error path.
	done := make(chan struct{}, 2)
	go func() {
		defer func() { done <- struct{}{} }()
		if err := e.enqueueLog(ctx, taskLog); err != nil {
			e.log.ErrorContext(ctx, "Failed to enqueue execution log",
				logger.ErrorField(err),
				logger.StringField("task_id", task.ID),
			)
		}
	}()
	go func() {
		defer func() { done <- struct{}{} }()
		var streakErr error
		if fetchErr == nil {
			streakErr = e.streak.OnSuccess(ctx, &task)
		} else {
			streakErr = e.streak.OnFailure(ctx, &task)
		}
		if streakErr != nil {
			e.log.ErrorContext(ctx, "Failed to update failure streak",
				logger.ErrorField(streakErr),
				logger.StringField("task_id", task.ID),
			)
		}
	}()
	<-done
	<-done

	if fetchErr != nil {
		// re-raise so the queue's own retry policy applies independently of
		// the business-level streak
		return fetchErr
	}

	e.log.InfoContext(ctx, "Fetch completed",
		logger.StringField("task_id", task.ID),
		logger.IntField("status", taskLog.StatusCode),
		logger.DurationField("jitter", taskLog.Jitter()),
	)
	return nil
}

func (e *FetchExecutor) enqueueLog(ctx context.Context, taskLog *model.TaskLog) error {
	payload, err := json.Marshal(taskLog)
	if err != nil {
		return fmt.Errorf("failed to marshal execution log: %w", err)
	}
	return e.logsQueue.Add(ctx, common.JobWriteLog, payload, queue.JobOptions{
		JobID:            taskLog.TaskID,
		Attempts:         writeLogAttempts,
		Backoff:          writeLogBackoff,
		RemoveOnComplete: true,
		RemoveOnFail:     true,
	})
}

// isFailureStatus classifies 4xx/5xx responses as failures even though the
// transport did not error: an erroring endpoint is a failure regardless of
// HTTP semantics.
func isFailureStatus(status int) bool {
	return status >= 400 && status < 599
}

// mergeHeaders combines defaults with task-supplied headers. Keys are
// case-normalized; task headers win on collision.
func mergeHeaders(defaults, taskHeaders map[string]string) map[string]string {
	merged := make(map[string]string, len(defaults)+len(taskHeaders))
	for k, v := range defaults {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range taskHeaders {
		merged[http.CanonicalHeaderKey(k)] = v
	}
	return merged
}

func phaseTimings(t httpclient.Trace) model.PhaseTimings {
	return model.PhaseTimings{
		DNS:       t.DNS.Milliseconds(),
		TCP:       t.TCP.Milliseconds(),
		TLS:       t.TLS.Milliseconds(),
		Wait:      t.Wait.Milliseconds(),
		Request:   t.Request.Milliseconds(),
		FirstByte: t.FirstByte.Milliseconds(),
		Download:  t.Download.Milliseconds(),
		Total:     t.Total.Milliseconds(),
	}
}
