// Package extension implements the extension loader of spec §4.D: on-disk
// manifest discovery, dependency-graph resolution with optional edges, and
// the hook/ability registration protocol run once at startup.
package extension

import (
	"context"
	"fmt"
)

// DependencyRef declares one edge in an extension's dependency list.
type DependencyRef struct {
	Name       string
	Optional   bool
	Constraint string // minimum semver version compared with golang.org/x/mod/semver, e.g. "v1.2.0"
}

// Manifest is the declared shape of one extension (spec §4.D).
type Manifest struct {
	Name            string
	Version         string // semver, e.g. "v1.4.0"
	Description     string
	Dependencies    []DependencyRef
	APTDependencies []string
	PipDependencies []string
}

// Initializer is called once, in resolved load order, to let an extension
// register its hooks, abilities, providers and managers.
type Initializer func(ctx context.Context, reg *Registration) error

// Extension bundles a Manifest with the code that initializes it.
type Extension struct {
	Manifest Manifest
	Init     Initializer
}

func (e Extension) String() string {
	return fmt.Sprintf("%s@%s", e.Manifest.Name, e.Manifest.Version)
}
