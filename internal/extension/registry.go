package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/coreframe/coreframe/internal/entity"
)

// Ability is a named async callable an extension exposes, invoked via
// execute_ability (spec §4.D "Ability invocation contract").
type Ability func(ctx context.Context, args map[string]any) (any, error)

// ErrAbilityNotFound is returned by Execute for an unregistered (ext, name) pair.
var ErrAbilityNotFound = errors.New("extension: ability not found")

// ErrCapabilityDenied is returned when a provider declares it does not
// support the invoked capability.
var ErrCapabilityDenied = errors.New("extension: capability denied")

type abilityKey struct {
	ext  string
	name string
}

// Registration is handed to each Extension's Initializer so it can register
// its hooks, abilities and providers in one place.
type Registration struct {
	extName string
	hooks   *entity.HookRegistry
	parent  *AbilityRegistry
}

// Hooks exposes the shared pipeline hook registry so the extension can
// attach before/after callbacks.
func (r *Registration) Hooks() *entity.HookRegistry { return r.hooks }

// RegisterAbility exposes name as an ability of this extension.
func (r *Registration) RegisterAbility(name string, fn Ability) {
	r.parent.register(r.extName, name, fn)
}

// AbilityRegistry holds every loaded extension's abilities, keyed by
// (extension, name), and dispatches execute_ability calls.
type AbilityRegistry struct {
	mu        sync.RWMutex
	abilities map[abilityKey]Ability
}

// NewAbilityRegistry constructs an empty AbilityRegistry.
func NewAbilityRegistry() *AbilityRegistry {
	return &AbilityRegistry{abilities: make(map[abilityKey]Ability)}
}

func (a *AbilityRegistry) register(ext, name string, fn Ability) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.abilities[abilityKey{ext: ext, name: name}] = fn
}

// Execute invokes extName's ability by name (spec §4.D "Ability invocation
// contract"): an unknown ability yields ErrAbilityNotFound.
func (a *AbilityRegistry) Execute(ctx context.Context, extName, name string, args map[string]any) (any, error) {
	a.mu.RLock()
	fn, ok := a.abilities[abilityKey{ext: extName, name: name}]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrAbilityNotFound, extName, name)
	}
	return fn(ctx, args)
}
