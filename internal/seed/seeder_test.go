package seed_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreframe/coreframe/internal/seed"
)

func TestSeederRunsInDependencyOrderAndIsIdempotent(t *testing.T) {
	var applied []string
	store := map[string]bool{}

	reg := seed.NewRegistrar()
	reg.Register(seed.Item{
		Name:      "child",
		DependsOn: []string{"parent"},
		Apply: func(ctx context.Context) (bool, error) {
			applied = append(applied, "child")
			if store["child"] {
				return false, nil
			}
			store["child"] = true
			return true, nil
		},
	})
	reg.Register(seed.Item{
		Name: "parent",
		Apply: func(ctx context.Context) (bool, error) {
			applied = append(applied, "parent")
			if store["parent"] {
				return false, nil
			}
			store["parent"] = true
			return true, nil
		},
	})

	seeder := seed.NewSeeder(reg, nil, nil)

	res, err := seeder.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"parent", "child"}, applied)
	require.ElementsMatch(t, []string{"parent", "child"}, res.Created)
	require.Empty(t, res.Skipped)

	applied = nil
	res, err = seeder.Run(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"parent", "child"}, res.Skipped)
	require.Empty(t, res.Created)
}

func TestDeterministicIDIsStable(t *testing.T) {
	a := seed.DeterministicID("role", "admin")
	b := seed.DeterministicID("role", "admin")
	c := seed.DeterministicID("role", "user")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
}
