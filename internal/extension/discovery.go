package extension

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// manifestFile is the on-disk shape of extension.yaml, decoded into a Manifest.
type manifestFile struct {
	Name            string          `yaml:"name"`
	Version         string          `yaml:"version"`
	Description     string          `yaml:"description"`
	Dependencies    []dependencyYAML `yaml:"dependencies"`
	APTDependencies []string        `yaml:"apt_dependencies"`
	PipDependencies []string        `yaml:"pip_dependencies"`
}

type dependencyYAML struct {
	Name       string `yaml:"name"`
	Optional   bool   `yaml:"optional"`
	Constraint string `yaml:"constraint"`
}

// DiscoverManifests walks root for `*/extension.yaml` files (one per
// extension directory) and decodes each into a Manifest.
func DiscoverManifests(root string) ([]Manifest, error) {
	matches, err := doublestar.Glob(os.DirFS(root), "*/extension.yaml")
	if err != nil {
		return nil, fmt.Errorf("extension: glob manifests: %w", err)
	}
	manifests := make([]Manifest, 0, len(matches))
	for _, rel := range matches {
		path := filepath.Join(root, rel)
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			return nil, fmt.Errorf("extension: read %s: %w", path, rerr)
		}
		var mf manifestFile
		if uerr := yaml.Unmarshal(data, &mf); uerr != nil {
			return nil, fmt.Errorf("extension: parse %s: %w", path, uerr)
		}
		deps := make([]DependencyRef, 0, len(mf.Dependencies))
		for _, d := range mf.Dependencies {
			deps = append(deps, DependencyRef{Name: d.Name, Optional: d.Optional, Constraint: d.Constraint})
		}
		manifests = append(manifests, Manifest{
			Name:            mf.Name,
			Version:         mf.Version,
			Description:     mf.Description,
			Dependencies:    deps,
			APTDependencies: mf.APTDependencies,
			PipDependencies: mf.PipDependencies,
		})
	}
	return manifests, nil
}
