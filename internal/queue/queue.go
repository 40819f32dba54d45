package queue

import (
	"context"
	"errors"
	"time"
)

// ErrNotImplementedJob is returned by a handler that received a job name it
// does not know. Such jobs are never retried since they can never succeed.
var ErrNotImplementedJob = errors.New("job name not implemented")

// Job is one unit of work delivered to a queue handler. Payload carries the
// snapshot taken at enqueue time, not a live re-read.
type Job struct {
	Name        string
	ID          string
	Payload     []byte
	Attempt     int
	MaxAttempts int
	Pattern     string
	ScheduledAt time.Time
	EnqueuedAt  time.Time
}

type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// RepeatOptions turns an Add into a repeatable entry fired per the cron
// pattern instead of a single delivery.
type RepeatOptions struct {
	Pattern  string
	Timezone string
}

type JobOptions struct {
	JobID            string
	Repeat           *RepeatOptions
	Priority         int
	Attempts         int
	Backoff          time.Duration
	Delay            time.Duration
	RemoveOnComplete bool
	RemoveOnFail     bool
}

// Queue is the job-queue collaborator boundary: at-least-once delivery of
// delayed one-shot jobs and cron-repeatable entries, with bounded retries.
// Repeatable identity is (jobID, pattern); re-adding the same pair replaces
// the live entry.
type Queue interface {
	Name() string
	Add(ctx context.Context, jobName string, payload []byte, opts JobOptions) error
	RemoveRepeatable(ctx context.Context, jobName, pattern, jobID string) (bool, error)
	Process(handler Handler)
	Start(ctx context.Context) error
	Stop()
}
