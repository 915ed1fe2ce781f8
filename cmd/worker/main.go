package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/stocktrail/stocktrail/internal/app"
	"github.com/stocktrail/stocktrail/internal/platform/db"
	"github.com/stocktrail/stocktrail/internal/remote"
	"github.com/stocktrail/stocktrail/internal/stock"
	syncpkg "github.com/stocktrail/stocktrail/internal/sync"
	"github.com/stocktrail/stocktrail/internal/warehouse"
	"github.com/stocktrail/stocktrail/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	remoteClient := remote.NewClient(remote.Config{
		BaseURL:         cfg.RemoteAPIURL,
		Token:           cfg.RemoteAPIToken,
		CompanyID:       cfg.RemoteAPICompanyID,
		DefaultMasterID: cfg.RemoteDefaultMasterID,
	})
	syncEngine := syncpkg.NewEngine(remoteClient, warehouse.NewRepository(pool), stock.NewRepository(pool), logger, syncpkg.EngineConfig{
		PageSize:    cfg.SyncPageSize,
		InsertCap:   cfg.SyncInsertCap,
		InsertChunk: cfg.SyncInsertChunk,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	workerCfg := jobs.WorkerConfig{
		RedisOpts: redisOpts,
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskInventorySync, Handler: jobs.NewInventorySyncHandler(syncEngine, logger)},
		},
	}
	if cfg.SyncCron != "" {
		task, err := jobs.NewInventorySyncTask(jobs.InventorySyncPayload{})
		if err != nil {
			logger.Error("build sync task", slog.Any("error", err))
			os.Exit(1)
		}
		workerCfg.Cron = []jobs.CronRegistration{
			{Spec: cfg.SyncCron, Task: task, Options: []asynq.Option{asynq.Queue(jobs.QueueDefault)}},
		}
	}

	worker, err := jobs.NewWorker(workerCfg)
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("worker started")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
