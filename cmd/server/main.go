package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coreframe/coreframe/internal/app"
	"github.com/coreframe/coreframe/internal/catalog"
	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/extension"
	"github.com/coreframe/coreframe/internal/identity"
	"github.com/coreframe/coreframe/internal/permission"
	"github.com/coreframe/coreframe/internal/platform/db"
	"github.com/coreframe/coreframe/internal/seed"
	"github.com/coreframe/coreframe/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sysIDs, err := identity.LoadSystemIDs(cfg)
	if err != nil {
		logger.Error("load system ids", slog.Any("error", err))
		os.Exit(1)
	}

	hierarchy := identity.NewHierarchy(identity.NewPgStore(pool), redisClient, cfg.MaxTeamDepth, logger)
	if err := hierarchy.Reload(ctx); err != nil {
		logger.Error("load team/role hierarchy", slog.Any("error", err))
		os.Exit(1)
	}
	go hierarchy.WatchInvalidations(ctx)

	registry := entity.NewRegistry()
	kinds := permission.NewStaticKindRegistry()
	engine := permission.NewEngine(sysIDs, hierarchy, registry, permission.NewPgGrantStore(pool), kinds)
	hooks := entity.NewHookRegistry(logger)
	entity.RegisterAuditHook(hooks, shared.NewAuditLogger(pool),
		[]string{catalog.KindProvider, catalog.KindProject, catalog.KindConversation})
	validator := entity.NewValidator()
	sessions := entity.NewSessionSource(pool)

	// The demonstration catalog runs against in-memory stores: a generic
	// pgx-backed Store[T, PT] would need reflection-driven SQL generation
	// the teacher never does (its repositories are hand-written per kind);
	// a real deployment substitutes one Store[T, PT] implementation per
	// kind, same as internal/masterdata/products' repository.
	cat := catalog.New(catalog.Stores{
		Providers:     entity.NewMemoryStore[catalog.Provider, *catalog.Provider](),
		Projects:      entity.NewMemoryStore[catalog.Project, *catalog.Project](),
		Conversations: entity.NewMemoryStore[catalog.Conversation, *catalog.Conversation](),
	}, sessions, engine, registry, kinds, hooks, validator)

	abilities := extension.NewAbilityRegistry()
	extLock := shared.NewLock(redisClient, shared.StartupLockKey("extensions"), 30*time.Second)
	loader := extension.NewLoader(hooks, abilities, extLock, logger)

	manifests, err := extension.DiscoverManifests(cfg.ExtensionsDir)
	if err != nil {
		logger.Warn("discover extension manifests", slog.Any("error", err))
	} else if len(manifests) > 0 {
		logger.Info("extension manifests discovered but not registered", slog.Int("count", len(manifests)))
	}
	// No Extension.Init funcs are wired here: those are supplied by each
	// extension's own Go package at build time, none of which ship with
	// this core. Load still runs to seal the hook registry.
	if _, err := loader.Load(ctx, nil); err != nil {
		logger.Error("load extensions", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.SeedData {
		registrar := seed.NewRegistrar()
		registrar.Register(seed.Item{
			Name: "provider:openai",
			Apply: func(ctx context.Context) (bool, error) {
				id := seed.DeterministicID(catalog.KindProvider, "openai")
				_, created, err := cat.Providers.Seed(ctx, sysIDs.System, id, func(p *catalog.Provider) {
					p.Name = "openai"
					p.APIBaseURL = "https://api.openai.com"
				})
				return created, err
			},
		})
		seedLock := shared.NewLock(redisClient, shared.StartupLockKey("seed"), 30*time.Second)
		seeder := seed.NewSeeder(registrar, seedLock, logger)
		result, err := seeder.Run(ctx)
		if err != nil {
			logger.Error("run seed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("seed complete", slog.Int("created", len(result.Created)), slog.Int("skipped", len(result.Skipped)))
	}

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		Catalog:       cat,
		ExposeMetrics: true,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
