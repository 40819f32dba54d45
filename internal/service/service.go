package service

import (
	"context"

	"cronfetch/config"
	"cronfetch/internal/queue"
	"cronfetch/internal/repository"
	"cronfetch/pkg/cache"
	"cronfetch/pkg/httpclient"
	"cronfetch/pkg/logger"
	"cronfetch/pkg/notify"
)

// Queues groups the named job queues the scheduler core runs on.
type Queues struct {
	Tasks        queue.Queue
	TaskLogs     queue.Queue
	ClearDeleted queue.Queue
	Restore      queue.Queue
}

func (q *Queues) Start(ctx context.Context) error {
	for _, qu := range q.all() {
		if err := qu.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (q *Queues) Stop() {
	for _, qu := range q.all() {
		qu.Stop()
	}
}

func (q *Queues) all() []queue.Queue {
	return []queue.Queue{q.Tasks, q.TaskLogs, q.ClearDeleted, q.Restore}
}

type Service struct {
	CronValidator *CronValidator
	Registrar     ScheduleRegistrar
	TaskService   TaskService
	FailStreak    FailStreakTracker
	FetchExecutor *FetchExecutor
	LogWriter     *LogWriter
	Reconciler    *StartupReconciler
	Sweeper       *Sweeper
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	store cache.Cache,
	client httpclient.HTTPClient,
	notifier *notify.Notifier,
	queues *Queues,
) *Service {
	validator := NewCronValidator(cfg)
	registrar := NewScheduleRegistrar(cfg, log, queues.Tasks)
	taskService := NewTaskService(cfg, log, repo.TaskRepo, repo.TaskLogRepo, validator, registrar)
	failStreak := NewFailStreakTracker(cfg, log, store, taskService, notifier)
	fetchExecutor := NewFetchExecutor(cfg, log, client, queues.TaskLogs, failStreak)
	logWriter := NewLogWriter(cfg, log, repo.TaskLogRepo)
	reconciler := NewStartupReconciler(cfg, log, repo.TaskRepo, queues.Restore, registrar)
	sweeper := NewSweeper(cfg, log, repo.TaskRepo, repo.TaskLogRepo, registrar, queues.ClearDeleted)

	svc := &Service{
		CronValidator: validator,
		Registrar:     registrar,
		TaskService:   taskService,
		FailStreak:    failStreak,
		FetchExecutor: fetchExecutor,
		LogWriter:     logWriter,
		Reconciler:    reconciler,
		Sweeper:       sweeper,
	}

	queues.Tasks.Process(fetchExecutor)
	queues.TaskLogs.Process(logWriter)
	queues.Restore.Process(reconciler)
	queues.ClearDeleted.Process(sweeper)

	return svc
}
