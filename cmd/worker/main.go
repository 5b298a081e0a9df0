package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/krishimarket/krishimarket/internal/app"
	jobmetrics "github.com/krishimarket/krishimarket/internal/jobs"
	"github.com/krishimarket/krishimarket/internal/planning"
	"github.com/krishimarket/krishimarket/internal/platform/db"
	"github.com/krishimarket/krishimarket/internal/store"
	"github.com/krishimarket/krishimarket/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg).With(slog.String("component", "worker"))

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	planner := planning.NewService(store.NewPostgres(pool, planning.Tables()...))

	orderJob := jobs.NewOrderSubmittedJob(logger, metrics)
	reminderJob := jobs.NewHarvestRemindersJob(planner, logger, metrics)

	reminderTask, err := jobs.NewHarvestRemindersTask(jobs.DefaultReminderWindowDays)
	if err != nil {
		logger.Error("build harvest reminder task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskOrderSubmitted, Handler: orderJob.Handle},
			{Type: jobs.TaskHarvestReminders, Handler: reminderJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.HarvestRemindersCron, Task: reminderTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
