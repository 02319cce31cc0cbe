package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/coreframe/coreframe/internal/app"
	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/extension"
	"github.com/coreframe/coreframe/internal/identity"
	"github.com/coreframe/coreframe/internal/platform/db"
	"github.com/coreframe/coreframe/internal/service"
	"github.com/coreframe/coreframe/internal/servicebus"
	"github.com/coreframe/coreframe/internal/shared"
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

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	hierarchy := identity.NewHierarchy(identity.NewPgStore(pool), redisClient, cfg.MaxTeamDepth, logger)
	if err := hierarchy.Reload(ctx); err != nil {
		logger.Error("load team/role hierarchy", slog.Any("error", err))
		os.Exit(1)
	}

	// The extension loader runs in this process too, so the ability
	// registry it seals is the one asynq tasks execute against; loading
	// twice (here and in cmd/server) is intentional per spec §4.D "run
	// once, before request handling" — the worker's "before request
	// handling" is "before it starts consuming the queue".
	abilities := extension.NewAbilityRegistry()
	hooks := entity.NewHookRegistry(logger)
	extLock := shared.NewLock(redisClient, shared.StartupLockKey("extensions"), 30*time.Second)
	if _, err := extension.NewLoader(hooks, abilities, extLock, logger).Load(ctx, nil); err != nil {
		logger.Error("load extensions", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := servicebus.NewWorker(servicebus.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Executor:  abilities,
	})
	if err != nil {
		logger.Error("init servicebus worker", slog.Any("error", err))
		os.Exit(1)
	}

	registry := service.NewRegistry(5, time.Second, service.NewMetrics(nil), logger)
	registry.Register(service.NewHierarchyRefresh(hierarchy, time.Minute))

	go func() {
		if err := registry.StartAll(ctx); err != nil && ctx.Err() == nil {
			logger.Error("service registry", slog.Any("error", err))
		}
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := registry.StopAll(stopCtx); err != nil {
		logger.Error("stop services", slog.Any("error", err))
	}
	registry.CleanupAll(stopCtx)
}
