package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stocktrail/stocktrail/internal/app"
	"github.com/stocktrail/stocktrail/internal/platform/cache"
	"github.com/stocktrail/stocktrail/internal/platform/db"
	"github.com/stocktrail/stocktrail/internal/remote"
	"github.com/stocktrail/stocktrail/internal/shared"
	"github.com/stocktrail/stocktrail/internal/shrinkage"
	"github.com/stocktrail/stocktrail/internal/stock"
	syncpkg "github.com/stocktrail/stocktrail/internal/sync"
	"github.com/stocktrail/stocktrail/internal/transfer"
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		_ = redisClient.Close()
	}()

	sessions := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL)
	audit := shared.NewAuditLogger(pool)

	remoteClient := remote.NewClient(remote.Config{
		BaseURL:         cfg.RemoteAPIURL,
		Token:           cfg.RemoteAPIToken,
		CompanyID:       cfg.RemoteAPICompanyID,
		DefaultMasterID: cfg.RemoteDefaultMasterID,
	})

	warehouseRepo := warehouse.NewRepository(pool)
	stockRepo := stock.NewRepository(pool)
	shrinkageRepo := shrinkage.NewRepository(pool)
	transferRepo := transfer.NewRepository(pool)

	syncEngine := syncpkg.NewEngine(remoteClient, warehouseRepo, stockRepo, logger, syncpkg.EngineConfig{
		PageSize:    cfg.SyncPageSize,
		InsertCap:   cfg.SyncInsertCap,
		InsertChunk: cfg.SyncInsertChunk,
	})
	transferService := transfer.NewService(transferRepo, warehouseRepo, remoteClient, audit, logger, transfer.ServiceConfig{
		ReplicationEnabled: cfg.ReplicationEnabled,
	})
	shrinkageService := shrinkage.NewService(shrinkageRepo, audit, logger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		_ = inspector.Close()
	}()

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("create jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		_ = jobsClient.Close()
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessions,
		TransferHandler:  transfer.NewHandler(logger, transferService),
		SyncHandler:      syncpkg.NewHandler(logger, syncEngine, jobsClient),
		ShrinkageHandler: shrinkage.NewHandler(logger, shrinkageService),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", slog.Any("error", err))
		}
	}()

	logger.Info("server listening", slog.String("addr", cfg.AppAddr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
