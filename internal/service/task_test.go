package service

import (
	"context"
	"testing"

	"cronfetch/internal/model"
	"cronfetch/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTaskServiceFixture(t *testing.T) (TaskService, *fakeTaskRepo, *fakeLogRepo, *fakeRegistrar) {
	t.Helper()
	cfg := newTestConfig()
	taskRepo := newFakeTaskRepo()
	logRepo := newFakeLogRepo()
	registrar := &fakeRegistrar{}
	svc := NewTaskService(cfg, newTestLogger(), taskRepo, logRepo, NewCronValidator(cfg), registrar)
	return svc, taskRepo, logRepo, registrar
}

func TestTaskService_Create(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, registrar := newTaskServiceFixture(t)

	task := testTask("")
	created, err := svc.Create(ctx, task)
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Empty(t, created.CronHistory)

	stored, err := repo.FindOneOrFail(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, task.URL, stored.URL)

	assert.Equal(t, []string{created.ID}, registrar.started)
}

func TestTaskService_CreateDisabledSkipsSchedule(t *testing.T) {
	ctx := context.Background()
	svc, _, _, registrar := newTaskServiceFixture(t)

	task := testTask("")
	task.IsEnable = false

	_, err := svc.Create(ctx, task)
	require.NoError(t, err)
	assert.Empty(t, registrar.started)
}

func TestTaskService_CreateInvalidCron(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, _ := newTaskServiceFixture(t)

	task := testTask("")
	task.Cron = "* * * * * *"

	_, err := svc.Create(ctx, task)
	assert.ErrorIs(t, err, ErrTooFrequent)

	count, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, count, "rejected task must not be persisted")
}

func TestTaskService_CreateNameConflict(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTaskServiceFixture(t)

	first := testTask("")
	_, err := svc.Create(ctx, first)
	require.NoError(t, err)

	duplicate := testTask("")
	_, err = svc.Create(ctx, duplicate)
	assert.ErrorIs(t, err, ErrTaskNameConflict)

	// same name under a different user is fine
	otherUser := testTask("")
	otherUser.UserID = "user-2"
	_, err = svc.Create(ctx, otherUser)
	assert.NoError(t, err)
}

func TestTaskService_UpdateRecordsCronHistory(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTaskServiceFixture(t)

	created, err := svc.Create(ctx, testTask(""))
	require.NoError(t, err)
	originalCron := created.Cron

	updated := *created
	updated.Cron = "0 0 * * * *"
	result, err := svc.Update(ctx, &updated)
	require.NoError(t, err)
	assert.Equal(t, []string(result.CronHistory), []string{originalCron})

	// changing back removes the now-current pattern from the history
	back := *result
	back.Cron = originalCron
	result, err = svc.Update(ctx, &back)
	require.NoError(t, err)
	assert.Equal(t, []string(result.CronHistory), []string{"0 0 * * * *"})
}

func TestTaskService_UpdateSameCronKeepsHistoryClean(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTaskServiceFixture(t)

	created, err := svc.Create(ctx, testTask(""))
	require.NoError(t, err)

	updated := *created
	updated.Name = "renamed"
	result, err := svc.Update(ctx, &updated)
	require.NoError(t, err)
	assert.Empty(t, result.CronHistory)
}

func TestTaskService_UpdateMissingTask(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTaskServiceFixture(t)

	task := testTask("no-such-task")
	_, err := svc.Update(ctx, task)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskService_SoftDeleteStopsSchedule(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, registrar := newTaskServiceFixture(t)

	created, err := svc.Create(ctx, testTask(""))
	require.NoError(t, err)

	require.NoError(t, svc.SoftDelete(ctx, created.UserID, created.ID))

	_, err = repo.FindOneOrFail(ctx, created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	unscoped, err := repo.FindOneUnscoped(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, unscoped.IsDeleted())

	assert.Equal(t, []string{created.ID}, registrar.stopped)
}

func TestTaskService_SoftDeleteFreesName(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTaskServiceFixture(t)

	created, err := svc.Create(ctx, testTask(""))
	require.NoError(t, err)
	require.NoError(t, svc.SoftDelete(ctx, created.UserID, created.ID))

	_, err = svc.Create(ctx, testTask(""))
	assert.NoError(t, err, "a soft-deleted task must not block its name")
}

func TestTaskService_HardDeleteCascades(t *testing.T) {
	ctx := context.Background()
	svc, repo, logRepo, registrar := newTaskServiceFixture(t)

	created, err := svc.Create(ctx, testTask(""))
	require.NoError(t, err)
	require.NoError(t, logRepo.Create(ctx, &model.TaskLog{TaskID: created.ID}))
	require.NoError(t, logRepo.Create(ctx, &model.TaskLog{TaskID: created.ID}))

	require.NoError(t, svc.HardDelete(ctx, created.UserID, created.ID))

	_, err = repo.FindOneUnscoped(ctx, created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := logRepo.CountByTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	assert.Contains(t, registrar.stopped, created.ID)
}

func TestTaskService_Disable(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, registrar := newTaskServiceFixture(t)

	created, err := svc.Create(ctx, testTask(""))
	require.NoError(t, err)

	disabled, err := svc.Disable(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, disabled.IsEnable)
	assert.Equal(t, []string{created.ID}, registrar.stopped)

	stored, err := repo.FindOneOrFail(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsEnable)

	// disabling twice is a no-op
	_, err = svc.Disable(ctx, created.ID)
	require.NoError(t, err)
	assert.Len(t, registrar.stopped, 1)
}

func TestTaskService_GetScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTaskServiceFixture(t)

	created, err := svc.Create(ctx, testTask(""))
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.UserID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(ctx, "someone-else", created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestTaskService_MutationsScopedToOwner(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, registrar := newTaskServiceFixture(t)

	created, err := svc.Create(ctx, testTask(""))
	require.NoError(t, err)

	update := *created
	update.UserID = "someone-else"
	update.URL = "https://evil.example.com"
	_, err = svc.Update(ctx, &update)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = svc.SoftDelete(ctx, "someone-else", created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	err = svc.HardDelete(ctx, "someone-else", created.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// the task is untouched and still scheduled
	stored, err := repo.FindOneOrFail(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.URL, stored.URL)
	assert.False(t, stored.IsDeleted())
	assert.Empty(t, registrar.stopped)
}

func TestTaskService_ListLogsClampsLimit(t *testing.T) {
	ctx := context.Background()
	svc, _, logRepo, _ := newTaskServiceFixture(t)

	for i := 0; i < 10; i++ {
		require.NoError(t, logRepo.Create(ctx, &model.TaskLog{TaskID: "task-x"}))
	}

	logs, err := svc.ListLogs(ctx, "task-x", 100)
	require.NoError(t, err)
	assert.Len(t, logs, 10)

	logs, err = svc.ListLogs(ctx, "task-x", 3)
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

var _ repository.TaskRepository = (*fakeTaskRepo)(nil)
var _ repository.TaskLogRepository = (*fakeLogRepo)(nil)
