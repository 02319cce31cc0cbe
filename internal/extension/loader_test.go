package extension_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreframe/coreframe/internal/entity"
	"github.com/coreframe/coreframe/internal/extension"
)

func TestLoaderRegistersAbilitiesInOrder(t *testing.T) {
	hooks := entity.NewHookRegistry(slog.Default())
	abilities := extension.NewAbilityRegistry()
	loader := extension.NewLoader(hooks, abilities, nil, slog.Default())

	pinged := false
	pinger := extension.Extension{
		Manifest: extension.Manifest{Name: "pinger", Version: "v1.0.0"},
		Init: func(ctx context.Context, reg *extension.Registration) error {
			reg.RegisterAbility("ping", func(ctx context.Context, args map[string]any) (any, error) {
				pinged = true
				return "pong", nil
			})
			return nil
		},
	}

	result, err := loader.Load(context.Background(), []extension.Extension{pinger})
	require.NoError(t, err)
	require.Equal(t, []string{"pinger"}, result.Loaded)

	out, err := abilities.Execute(context.Background(), "pinger", "ping", nil)
	require.NoError(t, err)
	require.Equal(t, "pong", out)
	require.True(t, pinged)
}

func TestAbilityExecuteUnknownReturnsNotFound(t *testing.T) {
	abilities := extension.NewAbilityRegistry()
	_, err := abilities.Execute(context.Background(), "missing", "noop", nil)
	require.True(t, errors.Is(err, extension.ErrAbilityNotFound))
}

func TestLoaderSealsHookRegistry(t *testing.T) {
	hooks := entity.NewHookRegistry(slog.Default())
	abilities := extension.NewAbilityRegistry()
	loader := extension.NewLoader(hooks, abilities, nil, slog.Default())

	registrar := extension.Extension{
		Manifest: extension.Manifest{Name: "hooker", Version: "v1.0.0"},
		Init: func(ctx context.Context, reg *extension.Registration) error {
			reg.Hooks().Register("widget", entity.AfterCreate, "hooker.audit", false, func(context.Context, entity.Event) error { return nil })
			return nil
		},
	}

	_, err := loader.Load(context.Background(), []extension.Extension{registrar})
	require.NoError(t, err)

	require.Panics(t, func() {
		hooks.Register("widget", entity.AfterCreate, "late", false, func(context.Context, entity.Event) error { return nil })
	})
}
