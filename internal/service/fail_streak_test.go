package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cronfetch/internal/model"
	"cronfetch/pkg/cache"
	"cronfetch/pkg/common"
	"cronfetch/pkg/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fakeDisabler struct {
	mu       sync.Mutex
	disabled []string
	err      error
}

func (f *fakeDisabler) Disable(ctx context.Context, taskID string) (*model.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.disabled = append(f.disabled, taskID)
	return &model.Task{ID: taskID, IsEnable: false}, nil
}

type fakeSender struct {
	mu      sync.Mutex
	channel string
	sent    []notify.Notification
}

func (f *fakeSender) Channel() string { return f.channel }

func (f *fakeSender) Send(ctx context.Context, n notify.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

func streakTask(id string, threshold int) *model.Task {
	return &model.Task{
		ID:                id,
		UserID:            "user-streak",
		Name:              "flaky",
		URL:               "https://example.com/flaky",
		StopAfterFailures: threshold,
		NotifyChannels:    datatypes.NewJSONSlice([]string{model.NotifyChannelDiscord}),
		IsEnable:          true,
	}
}

func newStreakFixture(t *testing.T) (FailStreakTracker, *fakeDisabler, *fakeSender, cache.Cache) {
	t.Helper()
	store := cache.NewCache(time.Minute, time.Minute)
	store.Flush()

	log := newTestLogger()
	disabler := &fakeDisabler{}
	sender := &fakeSender{channel: model.NotifyChannelDiscord}
	notifier := notify.NewNotifier(log, sender)

	tracker := NewFailStreakTracker(newTestConfig(), log, store, disabler, notifier)
	return tracker, disabler, sender, store
}

func TestFailStreakTracker_DisablesAtThreshold(t *testing.T) {
	ctx := context.Background()
	tracker, disabler, sender, store := newStreakFixture(t)
	task := streakTask("task-streak-1", 3)

	require.NoError(t, tracker.OnFailure(ctx, task))
	require.NoError(t, tracker.OnFailure(ctx, task))
	assert.Empty(t, disabler.disabled, "must not disable below threshold")

	require.NoError(t, tracker.OnFailure(ctx, task))

	assert.Equal(t, []string{task.ID}, disabler.disabled)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, task.ID, sender.sent[0].TaskID)
	assert.Equal(t, 3, sender.sent[0].FailureCount)

	// counter and claim are reset after the disable
	_, found := store.Get(common.FailStreakKey(task.UserID, task.ID))
	assert.False(t, found)
	_, found = store.Get(common.DisableClaimKey(task.UserID, task.ID))
	assert.False(t, found)
}

func TestFailStreakTracker_SuccessResetsStreak(t *testing.T) {
	ctx := context.Background()
	tracker, disabler, _, store := newStreakFixture(t)
	task := streakTask("task-streak-2", 3)

	require.NoError(t, tracker.OnFailure(ctx, task))
	require.NoError(t, tracker.OnFailure(ctx, task))
	require.NoError(t, tracker.OnSuccess(ctx, task))

	_, found := store.Get(common.FailStreakKey(task.UserID, task.ID))
	assert.False(t, found)

	// the streak starts over: two more failures stay below the threshold
	require.NoError(t, tracker.OnFailure(ctx, task))
	require.NoError(t, tracker.OnFailure(ctx, task))
	assert.Empty(t, disabler.disabled)
}

func TestFailStreakTracker_ThresholdZeroDisablesTracking(t *testing.T) {
	ctx := context.Background()
	tracker, disabler, sender, store := newStreakFixture(t)
	task := streakTask("task-streak-3", 0)

	for i := 0; i < 10; i++ {
		require.NoError(t, tracker.OnFailure(ctx, task))
	}

	assert.Empty(t, disabler.disabled)
	assert.Empty(t, sender.sent)
	_, found := store.Get(common.FailStreakKey(task.UserID, task.ID))
	assert.False(t, found)
}

func TestFailStreakTracker_ConcurrentFailuresDisableOnce(t *testing.T) {
	ctx := context.Background()
	tracker, disabler, _, _ := newStreakFixture(t)
	task := streakTask("task-streak-4", 20)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = tracker.OnFailure(ctx, task)
		}()
	}
	wg.Wait()

	disabler.mu.Lock()
	defer disabler.mu.Unlock()
	assert.Equal(t, []string{task.ID}, disabler.disabled, "exactly one goroutine may claim the disable")
}

func TestFailStreakTracker_DisableErrorPropagates(t *testing.T) {
	ctx := context.Background()
	tracker, disabler, sender, _ := newStreakFixture(t)
	disabler.err = errors.New("store unavailable")
	task := streakTask("task-streak-5", 1)

	err := tracker.OnFailure(ctx, task)
	assert.Error(t, err)
	// notification still went out even though the disable failed
	assert.Len(t, sender.sent, 1)
}
