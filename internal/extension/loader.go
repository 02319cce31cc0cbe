package extension

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/shared"
)

// Loader resolves and initializes a set of Extensions exactly once per
// deployment, guarded by a distributed lock so a multi-instance rollout
// doesn't double-register hooks (spec §4.D "Initialization protocol").
type Loader struct {
	hooks     *entity.HookRegistry
	abilities *AbilityRegistry
	locker    *shared.Lock
	logger    *slog.Logger
}

// NewLoader constructs a Loader. lock may be nil in single-instance
// deployments and tests, in which case the lock is skipped entirely.
func NewLoader(hooks *entity.HookRegistry, abilities *AbilityRegistry, lock *shared.Lock, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{hooks: hooks, abilities: abilities, locker: lock, logger: logger}
}

// Result reports what the loader actually did.
type Result struct {
	Loaded     []string
	Unloadable []Unloadable
	Skipped    bool // true if another instance held the startup lock
}

// Load resolves extensions and runs each Initializer in dependency order,
// then seals the hook registry so no extension can register hooks late
// (spec §4.C, §4.D "append-only after load").
func (l *Loader) Load(ctx context.Context, extensions []Extension) (Result, error) {
	if l.locker != nil {
		if err := l.locker.Acquire(ctx); err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				l.logger.Info("extension: startup lock held by another instance, skipping load")
				l.hooks.Seal()
				return Result{Skipped: true}, nil
			}
			return Result{}, err
		}
		defer func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.locker.Release(releaseCtx); err != nil {
				l.logger.Warn("extension: release startup lock", "error", err)
			}
		}()
	}

	resolution, err := Resolve(extensions)
	if err != nil {
		return Result{}, err
	}

	for _, u := range resolution.Unloadable {
		l.logger.Warn("extension: unloadable", "extension", u.Name, "reason", u.Reason)
	}

	loaded := make([]string, 0, len(resolution.Order))
	for _, ext := range resolution.Order {
		reg := &Registration{extName: ext.Manifest.Name, hooks: l.hooks, parent: l.abilities}
		if ext.Init != nil {
			if err := ext.Init(ctx, reg); err != nil {
				l.logger.Error("extension: initializer failed", "extension", ext.Manifest.Name, "error", err)
				continue
			}
		}
		l.logger.Info("extension: loaded", "extension", ext.String())
		loaded = append(loaded, ext.Manifest.Name)
	}

	l.hooks.Seal()

	return Result{Loaded: loaded, Unloadable: resolution.Unloadable}, nil
}
