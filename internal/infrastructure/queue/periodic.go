package queue

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandroruanova/review-insights-service/internal/pkg/config"
	"github.com/hibiken/asynq"
)

// TaskTypeStorageCleanup prunes old webhook archives and import copies
const TaskTypeStorageCleanup = "storage:cleanup"

// CleanupSpec is the cron spec of the archive cleanup
const CleanupSpec = "@daily"

// NewCleanupTask builds a storage:cleanup task
func NewCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeStorageCleanup, nil)
}

// NewPeriodicScheduler creates the asynq scheduler for recurring tasks
func NewPeriodicScheduler(cfg *config.QueueConfig, logger *slog.Logger) (*asynq.Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	scheduler := asynq.NewScheduler(RedisOpt(cfg), &asynq.SchedulerOpts{
		Location: time.UTC,
		PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
			if err != nil {
				logger.Error("failed to enqueue periodic task", slog.Any("error", err))
				return
			}
			logger.Debug("periodic task enqueued",
				slog.String("task_id", info.ID),
				slog.String("task_type", info.Type))
		},
	})

	entryID, err := scheduler.Register(CleanupSpec, NewCleanupTask(),
		asynq.Queue(QueueLow),
		asynq.MaxRetry(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", TaskTypeStorageCleanup, err)
	}

	logger.Info("periodic task registered",
		slog.String("task_type", TaskTypeStorageCleanup),
		slog.String("spec", CleanupSpec),
		slog.String("entry_id", entryID))

	return scheduler, nil
}
