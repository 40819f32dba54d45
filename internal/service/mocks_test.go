package service

import (
	"context"
	"sync"
	"time"

	"cronfetch/config"
	"cronfetch/internal/model"
	"cronfetch/internal/queue"
	"cronfetch/pkg/logger"

	"gorm.io/gorm"
)

func newTestLogger() *logger.Logger {
	log, err := logger.New("error", "console")
	if err != nil {
		panic(err)
	}
	return log
}

func newTestConfig() *config.Config {
	return &config.Config{
		Schedule: config.Schedule{
			MinInterval:       time.Minute,
			ValidationHorizon: 2,
			RestorePageSize:   100,
		},
		Retention: config.Retention{MaxLogsPerTask: 10},
		Fetch: config.Fetch{
			TimeoutDuration: 10 * time.Second,
			MaxBodyLogBytes: 50 * 1024,
		},
		Sweeper: config.Sweeper{RetentionDays: 30, MaxConcurrency: 5},
	}
}

type addedJob struct {
	JobName string
	Payload []byte
	Opts    queue.JobOptions
}

// fakeQueue records Add and RemoveRepeatable calls and tracks live
// repeatable entries by (jobID, pattern).
type fakeQueue struct {
	mu          sync.Mutex
	name        string
	added       []addedJob
	removals    [][2]string // jobID, pattern
	repeatables map[string]bool
	handler     queue.Handler
	addErr      error
}

func newFakeQueue(name string) *fakeQueue {
	return &fakeQueue{name: name, repeatables: make(map[string]bool)}
}

func (q *fakeQueue) Name() string { return q.name }

func (q *fakeQueue) Add(ctx context.Context, jobName string, payload []byte, opts queue.JobOptions) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.addErr != nil {
		return q.addErr
	}
	q.added = append(q.added, addedJob{JobName: jobName, Payload: payload, Opts: opts})
	if opts.Repeat != nil {
		q.repeatables[opts.JobID+"|"+opts.Repeat.Pattern] = true
	}
	return nil
}

func (q *fakeQueue) RemoveRepeatable(ctx context.Context, jobName, pattern, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removals = append(q.removals, [2]string{jobID, pattern})
	key := jobID + "|" + pattern
	if q.repeatables[key] {
		delete(q.repeatables, key)
		return true, nil
	}
	return false, nil
}

func (q *fakeQueue) Process(handler queue.Handler)   { q.handler = handler }
func (q *fakeQueue) Start(ctx context.Context) error { return nil }
func (q *fakeQueue) Stop()                           {}

func (q *fakeQueue) addedJobs() []addedJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]addedJob, len(q.added))
	copy(out, q.added)
	return out
}

func (q *fakeQueue) liveRepeatables() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.repeatables)
}

// fakeTaskRepo is an in-memory TaskRepository over a sorted id map.
type fakeTaskRepo struct {
	mu            sync.Mutex
	tasks         map[string]*model.Task
	findManyCalls int
}

func newFakeTaskRepo() *fakeTaskRepo {
	return &fakeTaskRepo{tasks: make(map[string]*model.Task)}
}

func (r *fakeTaskRepo) Create(ctx context.Context, task *model.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *fakeTaskRepo) Update(ctx context.Context, task *model.Task) error {
	return r.Create(ctx, task)
}

func (r *fakeTaskRepo) FindOne(ctx context.Context, param *model.GetTaskParam) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tasks {
		if t.IsDeleted() {
			continue
		}
		if matchesParam(t, param) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeTaskRepo) FindOneOrFail(ctx context.Context, id string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok || t.IsDeleted() {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) FindOneUnscoped(ctx context.Context, id string) (*model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTaskRepo) FindMany(ctx context.Context, param *model.GetTaskParam) ([]model.Task, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findManyCalls++

	ids := make([]string, 0, len(r.tasks))
	for id, t := range r.tasks {
		if t.IsDeleted() {
			continue
		}
		if param != nil && param.Cursor != "" && id <= param.Cursor {
			continue
		}
		if matchesParam(t, param) {
			ids = append(ids, id)
		}
	}
	sortStrings(ids)

	limit := 0
	if param != nil {
		limit = param.Limit
	}
	if limit <= 0 {
		limit = 100
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	out := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.tasks[id])
	}
	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (r *fakeTaskRepo) FindDeletedBefore(ctx context.Context, cutoff time.Time) ([]model.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Task
	for _, t := range r.tasks {
		if t.IsDeleted() && t.DeletedAt.Time.Before(cutoff) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Count(ctx context.Context, param *model.GetTaskParam) (int64, error) {
	tasks, _, err := r.FindMany(ctx, param)
	return int64(len(tasks)), err
}

func (r *fakeTaskRepo) SoftDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tasks[id]; ok {
		t.DeletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}
	return nil
}

func (r *fakeTaskRepo) HardDelete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tasks, id)
	return nil
}

func matchesParam(t *model.Task, param *model.GetTaskParam) bool {
	if param == nil {
		return true
	}
	if param.UserID != nil && t.UserID != *param.UserID {
		return false
	}
	if param.IsEnable != nil && t.IsEnable != *param.IsEnable {
		return false
	}
	if param.Name != nil && t.Name != *param.Name {
		return false
	}
	return true
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

// fakeLogRepo is an in-memory TaskLogRepository preserving insert order.
type fakeLogRepo struct {
	mu     sync.Mutex
	nextID uint
	logs   []*model.TaskLog
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{}
}

func (r *fakeLogRepo) Create(ctx context.Context, log *model.TaskLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	cp := *log
	cp.ID = r.nextID
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *fakeLogRepo) CountByTask(ctx context.Context, taskID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.logs {
		if l.TaskID == taskID {
			n++
		}
	}
	return n, nil
}

func (r *fakeLogRepo) FindOldestByTask(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TaskLog
	for _, l := range r.logs {
		if l.TaskID == taskID {
			out = append(out, *l)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *fakeLogRepo) FindRecentByTask(ctx context.Context, taskID string, limit int) ([]model.TaskLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.TaskLog
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		if r.logs[i].TaskID == taskID {
			out = append(out, *r.logs[i])
		}
	}
	return out, nil
}

func (r *fakeLogRepo) DeleteByID(ctx context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.logs {
		if l.ID == id {
			r.logs = append(r.logs[:i], r.logs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (r *fakeLogRepo) DeleteByTask(ctx context.Context, taskID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.TaskLog
	var deleted int64
	for _, l := range r.logs {
		if l.TaskID == taskID {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	r.logs = kept
	return deleted, nil
}

// fakeRegistrar records schedule mutations.
type fakeRegistrar struct {
	mu       sync.Mutex
	started  []string
	stopped  []string
	startErr error
}

func (f *fakeRegistrar) Start(ctx context.Context, task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, task.ID)
	return nil
}

func (f *fakeRegistrar) Stop(ctx context.Context, task *model.Task) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, task.ID)
	return true, nil
}

func (f *fakeRegistrar) Reconcile(ctx context.Context, oldTask, newTask *model.Task) error {
	if !oldTask.ScheduleFieldsChanged(newTask) {
		return nil
	}
	if oldTask.IsEnable {
		if _, err := f.Stop(ctx, oldTask); err != nil {
			return err
		}
	}
	if newTask.IsEnable {
		return f.Start(ctx, newTask)
	}
	return nil
}

// fakeStreak records success/failure callbacks.
type fakeStreak struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (f *fakeStreak) OnSuccess(ctx context.Context, task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, task.ID)
	return nil
}

func (f *fakeStreak) OnFailure(ctx context.Context, task *model.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, task.ID)
	return nil
}
