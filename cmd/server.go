package cmd

import (
	"context"
	"log"
	httpNet "net/http"
	"os"
	"os/signal"
	"syscall"

	"cronfetch/internal/delivery/http"
	"cronfetch/internal/queue"
	"cronfetch/internal/repository"
	"cronfetch/internal/service"
	"cronfetch/pkg/common"
	"cronfetch/pkg/logger"
	"cronfetch/pkg/utils"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the cronfetch scheduler and API",
	Run:   Start,
}

func Start(cmd *cobra.Command, args []string) {

	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appDep, err := NewAppDependency(ctx)
	if err != nil {
		log.Fatalf("Failed to create app dependency: %v", err)
	}

	repo := repository.NewRepository(appDep.db.DB)

	queues := &service.Queues{
		Tasks:        queue.NewMemoryQueue(common.QueueTasks, appDep.cfg.Queue.FetchWorkers, appDep.log),
		TaskLogs:     queue.NewMemoryQueue(common.QueueTaskLogs, appDep.cfg.Queue.LogWorkers, appDep.log),
		ClearDeleted: queue.NewMemoryQueue(common.QueueClearDeletedTasks, appDep.cfg.Queue.SweeperWorkers, appDep.log),
		Restore:      queue.NewMemoryQueue(common.QueueRestoreTasks, appDep.cfg.Queue.RestoreWorkers, appDep.log),
	}

	services := service.NewService(
		appDep.cfg,
		appDep.log,
		repo,
		appDep.cache,
		appDep.client,
		appDep.notifier,
		queues,
	)

	if err := queues.Start(ctx); err != nil {
		log.Fatalf("Failed to start job queues: %v", err)
	}

	// The sweep entry has a fixed job id, so re-registering on every boot is
	// idempotent.
	if err := services.Sweeper.RegisterSchedule(ctx); err != nil {
		log.Fatalf("Failed to register sweeper schedule: %v", err)
	}

	// Re-assert every enabled task's schedule entry after restart.
	utils.GoSafe(func() {
		if err := services.Reconciler.Run(ctx); err != nil {
			appDep.log.Error("Startup reconciliation failed", logger.ErrorField(err))
		}
	})

	httpHandler := http.NewHttpAPIHandler(ctx, appDep.echo, appDep.validator, services)

	apiServer := NewHTTPServer(ctx, appDep, httpHandler)
	go func() {
		if err := apiServer.Start(); err != nil && err != httpNet.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	log.Println("Shutting down gracefully...")

	if err := apiServer.Stop(); err != nil {
		log.Fatalf("Failed to stop HTTP server: %v", err)
	}

	queues.Stop()

	if err := appDep.Close(); err != nil {
		log.Fatalf("Failed to close app dependency: %v", err)
	}
}
