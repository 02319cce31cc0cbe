package extension_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coreframe/coreframe/internal/extension"
)

func ext(name, version string, deps ...extension.DependencyRef) extension.Extension {
	return extension.Extension{Manifest: extension.Manifest{Name: name, Version: version, Dependencies: deps}}
}

func TestResolveOrdersByDependency(t *testing.T) {
	base := ext("base", "v1.0.0")
	mid := ext("mid", "v1.0.0", extension.DependencyRef{Name: "base"})
	top := ext("top", "v1.0.0", extension.DependencyRef{Name: "mid"})

	res, err := extension.Resolve([]extension.Extension{top, base, mid})
	require.NoError(t, err)
	require.Len(t, res.Order, 3)
	require.Equal(t, "base", res.Order[0].Manifest.Name)
	require.Equal(t, "mid", res.Order[1].Manifest.Name)
	require.Equal(t, "top", res.Order[2].Manifest.Name)
	require.Empty(t, res.Unloadable)
}

func TestResolveDropsMissingRequiredDependency(t *testing.T) {
	dependent := ext("dependent", "v1.0.0", extension.DependencyRef{Name: "absent"})

	res, err := extension.Resolve([]extension.Extension{dependent})
	require.NoError(t, err)
	require.Empty(t, res.Order)
	require.Len(t, res.Unloadable, 1)
	require.Equal(t, "dependent", res.Unloadable[0].Name)
}

func TestResolveDropsOptionalDependencySilently(t *testing.T) {
	dependent := ext("dependent", "v1.0.0", extension.DependencyRef{Name: "absent", Optional: true})

	res, err := extension.Resolve([]extension.Extension{dependent})
	require.NoError(t, err)
	require.Len(t, res.Order, 1)
	require.Empty(t, res.Unloadable)
}

func TestResolveVersionConstraintRejectsOldDependency(t *testing.T) {
	base := ext("base", "v1.0.0")
	dependent := ext("dependent", "v1.0.0", extension.DependencyRef{Name: "base", Constraint: "v2.0.0"})

	res, err := extension.Resolve([]extension.Extension{base, dependent})
	require.NoError(t, err)
	require.Len(t, res.Order, 1)
	require.Equal(t, "base", res.Order[0].Manifest.Name)
	require.Len(t, res.Unloadable, 1)
}

func TestResolveDetectsCycle(t *testing.T) {
	a := ext("a", "v1.0.0", extension.DependencyRef{Name: "b"})
	b := ext("b", "v1.0.0", extension.DependencyRef{Name: "a"})

	_, err := extension.Resolve([]extension.Extension{a, b})
	require.Error(t, err)
	var cycleErr *extension.CycleError
	require.ErrorAs(t, err, &cycleErr)
	require.ElementsMatch(t, []string{"a", "b"}, cycleErr.Cycle)
}
