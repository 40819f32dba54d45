package queue

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cronfetch/pkg/logger"

	"github.com/robfig/cron/v3"
)

// memQueue is an in-process Queue: repeatable entries ride a robfig cron
// runner, one-shot and retried jobs wait in a delayed heap until due, then
// move to a priority-ordered ready heap drained by a bounded worker pool.
type memQueue struct {
	name        string
	log         *logger.Logger
	concurrency int
	handler     Handler
	cronRunner  *cron.Cron
	parser      cron.Parser

	mu          sync.Mutex
	repeatables map[string]cron.EntryID
	delayed     delayedHeap
	ready       readyHeap
	seq         uint64

	wake    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewMemoryQueue(name string, concurrency int, log *logger.Logger) Queue {
	if concurrency < 1 {
		concurrency = 1
	}
	parser := cron.NewParser(
		cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &memQueue{
		name:        name,
		log:         log,
		concurrency: concurrency,
		cronRunner:  cron.New(cron.WithParser(parser)),
		parser:      parser,
		repeatables: make(map[string]cron.EntryID),
		wake:        make(chan struct{}, 1),
	}
}

func (q *memQueue) Name() string {
	return q.name
}

func (q *memQueue) Process(handler Handler) {
	q.handler = handler
}

func (q *memQueue) Start(ctx context.Context) error {
	if q.handler == nil {
		return fmt.Errorf("queue %s: no handler registered", q.name)
	}
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return nil
	}
	q.started = true
	q.mu.Unlock()

	q.ctx, q.cancel = context.WithCancel(ctx)
	q.cronRunner.Start()
	for i := 0; i < q.concurrency; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.log.Info("Queue started",
		logger.StringField("queue", q.name),
		logger.IntField("workers", q.concurrency),
	)
	return nil
}

func (q *memQueue) Stop() {
	q.mu.Lock()
	if !q.started {
		q.mu.Unlock()
		return
	}
	q.started = false
	q.mu.Unlock()

	<-q.cronRunner.Stop().Done()
	q.cancel()
	q.wg.Wait()
	q.log.Info("Queue stopped", logger.StringField("queue", q.name))
}

func (q *memQueue) Add(ctx context.Context, jobName string, payload []byte, opts JobOptions) error {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	if opts.Repeat != nil {
		return q.addRepeatable(jobName, payload, opts)
	}

	now := time.Now()
	job := &Job{
		Name:        jobName,
		ID:          opts.JobID,
		Payload:     payload,
		Attempt:     1,
		MaxAttempts: opts.Attempts,
		ScheduledAt: now.Add(opts.Delay),
		EnqueuedAt:  now,
	}

	q.mu.Lock()
	q.pushLocked(job, opts, now.Add(opts.Delay))
	q.mu.Unlock()
	q.signal()
	return nil
}

func (q *memQueue) addRepeatable(jobName string, payload []byte, opts JobOptions) error {
	pattern := opts.Repeat.Pattern
	spec := pattern
	if opts.Repeat.Timezone != "" && !strings.HasPrefix(pattern, "CRON_TZ=") {
		spec = fmt.Sprintf("CRON_TZ=%s %s", opts.Repeat.Timezone, pattern)
	}

	schedule, err := q.parser.Parse(spec)
	if err != nil {
		return fmt.Errorf("queue %s: invalid repeat pattern %q: %w", q.name, pattern, err)
	}

	key := repeatKey(jobName, opts.JobID, pattern)

	q.mu.Lock()
	defer q.mu.Unlock()

	// At most one live entry per (jobID, pattern); re-adding replaces it so
	// the payload snapshot stays fresh.
	if existing, ok := q.repeatables[key]; ok {
		q.cronRunner.Remove(existing)
	}

	entryID := q.cronRunner.Schedule(schedule, cron.FuncJob(func() {
		now := time.Now()
		job := &Job{
			Name:        jobName,
			ID:          opts.JobID,
			Payload:     payload,
			Attempt:     1,
			MaxAttempts: opts.Attempts,
			Pattern:     pattern,
			ScheduledAt: now,
			EnqueuedAt:  now,
		}
		q.mu.Lock()
		q.pushLocked(job, opts, now)
		q.mu.Unlock()
		q.signal()
	}))
	q.repeatables[key] = entryID
	return nil
}

func (q *memQueue) RemoveRepeatable(ctx context.Context, jobName, pattern, jobID string) (bool, error) {
	key := repeatKey(jobName, jobID, pattern)

	q.mu.Lock()
	defer q.mu.Unlock()

	entryID, ok := q.repeatables[key]
	if !ok {
		return false, nil
	}
	q.cronRunner.Remove(entryID)
	delete(q.repeatables, key)
	return true, nil
}

// RepeatableCount reports the number of live repeatable entries. Used by
// health reporting and tests.
func (q *memQueue) RepeatableCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.repeatables)
}

func (q *memQueue) worker() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		q.promoteDueLocked(time.Now())

		if q.ready.Len() > 0 {
			pj := heap.Pop(&q.ready).(*pendingJob)
			more := q.ready.Len() > 0
			q.mu.Unlock()
			if more {
				q.signal()
			}
			q.run(pj)
			continue
		}

		var timerCh <-chan time.Time
		var timer *time.Timer
		if q.delayed.Len() > 0 {
			wait := time.Until(q.delayed[0].readyAt)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerCh = timer.C
		}
		q.mu.Unlock()

		select {
		case <-q.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-q.wake:
		case <-timerCh:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (q *memQueue) run(pj *pendingJob) {
	job := pj.job
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in job handler: %v", r)
			}
		}()
		return q.handler.Handle(q.ctx, job)
	}()
	if err == nil {
		return
	}

	if errors.Is(err, ErrNotImplementedJob) {
		q.log.Error("Dropping job with unknown name",
			logger.StringField("queue", q.name),
			logger.StringField("job_name", job.Name),
			logger.StringField("job_id", job.ID),
		)
		return
	}

	if job.Attempt >= job.MaxAttempts {
		q.log.Error("Job attempts exhausted",
			logger.ErrorField(err),
			logger.StringField("queue", q.name),
			logger.StringField("job_name", job.Name),
			logger.StringField("job_id", job.ID),
			logger.IntField("attempts", job.Attempt),
		)
		return
	}

	backoff := pj.opts.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}
	backoff <<= uint(job.Attempt - 1)

	retry := *job
	retry.Attempt++

	q.log.Warn("Retrying job",
		logger.ErrorField(err),
		logger.StringField("queue", q.name),
		logger.StringField("job_name", job.Name),
		logger.StringField("job_id", job.ID),
		logger.IntField("attempt", retry.Attempt),
		logger.DurationField("backoff", backoff),
	)

	q.mu.Lock()
	q.pushLocked(&retry, pj.opts, time.Now().Add(backoff))
	q.mu.Unlock()
	q.signal()
}

func (q *memQueue) pushLocked(job *Job, opts JobOptions, readyAt time.Time) {
	q.seq++
	pj := &pendingJob{
		job:      job,
		opts:     opts,
		readyAt:  readyAt,
		priority: opts.Priority,
		seq:      q.seq,
	}
	if !readyAt.After(time.Now()) {
		heap.Push(&q.ready, pj)
		return
	}
	heap.Push(&q.delayed, pj)
}

func (q *memQueue) promoteDueLocked(now time.Time) {
	for q.delayed.Len() > 0 && !q.delayed[0].readyAt.After(now) {
		pj := heap.Pop(&q.delayed).(*pendingJob)
		heap.Push(&q.ready, pj)
	}
}

func (q *memQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func repeatKey(jobName, jobID, pattern string) string {
	return jobName + "|" + jobID + "|" + pattern
}

type pendingJob struct {
	job      *Job
	opts     JobOptions
	readyAt  time.Time
	priority int
	seq      uint64
	index    int
}

// delayedHeap orders by due time.
type delayedHeap []*pendingJob

func (h delayedHeap) Len() int { return len(h) }
func (h delayedHeap) Less(i, j int) bool {
	if !h[i].readyAt.Equal(h[j].readyAt) {
		return h[i].readyAt.Before(h[j].readyAt)
	}
	return h[i].seq < h[j].seq
}
func (h delayedHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *delayedHeap) Push(x interface{}) {
	pj := x.(*pendingJob)
	pj.index = len(*h)
	*h = append(*h, pj)
}
func (h *delayedHeap) Pop() interface{} {
	old := *h
	n := len(old)
	pj := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return pj
}

// readyHeap orders by priority (higher first), then arrival.
type readyHeap []*pendingJob

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}
func (h readyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *readyHeap) Push(x interface{}) {
	pj := x.(*pendingJob)
	pj.index = len(*h)
	*h = append(*h, pj)
}
func (h *readyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	pj := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return pj
}
