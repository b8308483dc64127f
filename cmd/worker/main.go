package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/linen-ledger/internal/app"
	jobmetrics "github.com/odyssey-erp/linen-ledger/internal/jobs"
	"github.com/odyssey-erp/linen-ledger/internal/masters"
	"github.com/odyssey-erp/linen-ledger/internal/platform/cache"
	"github.com/odyssey-erp/linen-ledger/internal/platform/db"
	"github.com/odyssey-erp/linen-ledger/jobs"
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

	logger := app.NewLogger(cfg, "worker")

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PoolOptions())
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	mastersRepo := masters.NewRepository(pool)
	heal := masters.NewSelfHeal(mastersRepo, logger, cfg.SelfHealConcurrency)
	selfHealJob := jobs.NewSelfHealJob(heal, cache.NewViews(redisClient, cfg.ViewCacheTTL), cache.NewLocker(redisClient), logger, jobmetrics.NewMetrics(nil))

	var cron []jobs.CronRegistration
	if cfg.SelfHealScheduled() {
		selfHealTask, err := jobs.NewSelfHealTask(jobs.SelfHealPayload{RequestedBy: "scheduler"})
		if err != nil {
			logger.Error("build self-heal task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.SelfHealCron,
			Task:    selfHealTask,
			Options: []asynq.Option{asynq.MaxRetry(jobs.SelfHealMaxRetry)},
		})
		logger.Info("scheduled masters self-heal", slog.String("cron", cfg.SelfHealCron))
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   cfg.QueueRedisOpt(),
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskMastersSelfHeal, Handler: selfHealJob.Handle},
		},
		Cron: cron,
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
