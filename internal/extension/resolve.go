package extension

import (
	"fmt"
	"sort"

	"golang.org/x/mod/semver"
)

// CycleError names a dependency cycle detected during resolution (spec §4.D
// "a cycle aborts loading with a structured CycleError naming the cycle").
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("extension: dependency cycle: %v", e.Cycle)
}

// Unloadable records an extension that could not be loaded because a
// required (non-optional) dependency was missing or failed its version
// constraint. This is reported, not fatal, to the rest of the load.
type Unloadable struct {
	Name   string
	Reason string
}

// Resolution is the outcome of resolving a set of Extensions: an ordered
// load list plus any extensions dropped as unloadable.
type Resolution struct {
	Order      []Extension
	Unloadable []Unloadable
}

// Resolve builds the dependency graph (edges dep -> dependent), drops
// dependents with an unsatisfied required dependency, silently drops
// unsatisfied optional edges, and topologically sorts what remains (spec
// §4.D "Resolution algorithm").
func Resolve(extensions []Extension) (Resolution, error) {
	byName := make(map[string]Extension, len(extensions))
	for _, e := range extensions {
		byName[e.Manifest.Name] = e
	}

	var unloadable []Unloadable
	candidates := make(map[string]Extension, len(extensions))
	for name, e := range byName {
		candidates[name] = e
	}

	// Drop extensions whose required dependency is absent or fails its
	// version constraint; optional edges to a missing/unsatisfying
	// dependency are simply not added to the graph.
	changed := true
	for changed {
		changed = false
		for name, e := range candidates {
			for _, dep := range e.Manifest.Dependencies {
				depExt, present := candidates[dep.Name]
				satisfied := present && satisfiesConstraint(depExt.Manifest.Version, dep.Constraint)
				if !dep.Optional && !satisfied {
					reason := "missing dependency " + dep.Name
					if present {
						reason = fmt.Sprintf("dependency %s@%s does not satisfy %s", dep.Name, depExt.Manifest.Version, dep.Constraint)
					}
					unloadable = append(unloadable, Unloadable{Name: name, Reason: reason})
					delete(candidates, name)
					changed = true
					break
				}
			}
		}
	}

	edges := make(map[string][]string) // dep -> dependents
	indegree := make(map[string]int)
	for name := range candidates {
		indegree[name] = 0
	}
	for name, e := range candidates {
		for _, dep := range e.Manifest.Dependencies {
			depExt, present := candidates[dep.Name]
			if !present || !satisfiesConstraint(depExt.Manifest.Version, dep.Constraint) {
				continue // optional edge silently dropped
			}
			edges[dep.Name] = append(edges[dep.Name], name)
			indegree[name]++
		}
	}

	// Deterministic Kahn's algorithm: process the lowest-named zero-indegree
	// node first so load order doesn't depend on map iteration order.
	var ready []string
	for name, deg := range indegree {
		if deg == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	var order []Extension
	visited := 0
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, candidates[name])
		visited++
		next := append([]string(nil), edges[name]...)
		sort.Strings(next)
		for _, dependent := range next {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if visited != len(candidates) {
		var cycle []string
		for name, deg := range indegree {
			if deg > 0 {
				cycle = append(cycle, name)
			}
		}
		sort.Strings(cycle)
		return Resolution{}, &CycleError{Cycle: cycle}
	}

	return Resolution{Order: order, Unloadable: unloadable}, nil
}

func satisfiesConstraint(version, constraint string) bool {
	if constraint == "" {
		return true
	}
	if !semver.IsValid(version) || !semver.IsValid(constraint) {
		return false
	}
	return semver.Compare(version, constraint) >= 0
}
