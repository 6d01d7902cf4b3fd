// Package graph builds the dependency graph over workspace packages and
// computes the tiered publish order.
//
// Nodes are package descriptors; edges are internal "depends on" relations.
// Tier 0 holds packages with no internal dependencies; every other package
// sits one tier above its highest dependency. For every edge A depends on B,
// tier(A) > tier(B), so publishing tier by tier guarantees a package is
// never published before its dependencies.
package graph

import (
	"fmt"
	"sort"

	"github.com/freighter-dev/freighter/internal/errors"
	"github.com/freighter-dev/freighter/internal/manifest"
)

// Graph is an immutable dependency graph over package descriptors.
// Safe for concurrent reads once built.
type Graph struct {
	descriptors map[string]*manifest.Descriptor
	// deps maps package name to its internal dependency names.
	deps map[string][]string
	// dependents maps package name to the packages that depend on it.
	dependents map[string][]string
	// tier maps package name to its computed tier index.
	tier map[string]int
	// tiers is the ascending tier ordering, names sorted within each tier.
	tiers [][]string
}

// Build constructs a Graph from the given descriptors. It fails with
// ErrUnknownDependency if an internal dependency names no known package,
// and with ErrDependencyCycle (enumerating the cycle) if the graph is
// cyclic. A cyclic workspace is a hard validation failure; a partial
// order is never silently picked.
func Build(descriptors []*manifest.Descriptor) (*Graph, error) {
	g := &Graph{
		descriptors: make(map[string]*manifest.Descriptor, len(descriptors)),
		deps:        make(map[string][]string, len(descriptors)),
		dependents:  make(map[string][]string, len(descriptors)),
		tier:        make(map[string]int, len(descriptors)),
	}

	for _, desc := range descriptors {
		if _, ok := g.descriptors[desc.Name]; ok {
			return nil, errors.NewGraphError(
				fmt.Sprintf("package %q appears twice", desc.Name),
				errors.ErrDuplicatePackage).WithPackage(desc.Name)
		}
		g.descriptors[desc.Name] = desc
	}

	for _, desc := range descriptors {
		for _, dep := range desc.InternalDeps {
			if _, ok := g.descriptors[dep]; !ok {
				return nil, errors.NewGraphError(
					"internal dependency does not resolve to a workspace package",
					errors.ErrUnknownDependency).
					WithPackage(desc.Name).
					WithDependency(dep)
			}
			g.deps[desc.Name] = append(g.deps[desc.Name], dep)
			g.dependents[dep] = append(g.dependents[dep], desc.Name)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, errors.NewGraphError("workspace dependency graph is cyclic",
			errors.ErrDependencyCycle).WithCycle(cycle)
	}

	g.computeTiers()
	return g, nil
}

// Descriptor returns the descriptor for the named package, or nil.
func (g *Graph) Descriptor(name string) *manifest.Descriptor {
	return g.descriptors[name]
}

// Names returns all package names in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.descriptors))
	for name := range g.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tier returns the tier index of the named package.
func (g *Graph) Tier(name string) int {
	return g.tier[name]
}

// Tiers returns the publish plan: an ascending sequence of tiers, each a
// sorted set of package names. Deterministic for a given input, so
// repeated runs over the same workspace produce the same plan.
func (g *Graph) Tiers() [][]string {
	out := make([][]string, len(g.tiers))
	for i, tier := range g.tiers {
		out[i] = append([]string(nil), tier...)
	}
	return out
}

// Dependencies returns the direct internal dependencies of the named package.
func (g *Graph) Dependencies(name string) []string {
	return append([]string(nil), g.deps[name]...)
}

// Dependents returns the transitive dependent closure of the named package:
// every package that directly or indirectly depends on it. Used to skip a
// failed package's subtree when publishing continues past a fatal failure.
func (g *Graph) Dependents(name string) []string {
	seen := make(map[string]bool)
	var visit func(string)
	visit = func(n string) {
		for _, dep := range g.dependents[n] {
			if !seen[dep] {
				seen[dep] = true
				visit(dep)
			}
		}
	}
	visit(name)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Validate re-checks acyclicity and dependency resolution. The graph is
// immutable, so this only fails if Build was bypassed; it exists so the
// Validation phase has a single call to assert plan integrity.
func (g *Graph) Validate() error {
	for name, deps := range g.deps {
		for _, dep := range deps {
			if _, ok := g.descriptors[dep]; !ok {
				return errors.NewGraphError(
					"internal dependency does not resolve to a workspace package",
					errors.ErrUnknownDependency).
					WithPackage(name).
					WithDependency(dep)
			}
		}
	}
	if cycle := g.findCycle(); cycle != nil {
		return errors.NewGraphError("workspace dependency graph is cyclic",
			errors.ErrDependencyCycle).WithCycle(cycle)
	}
	return nil
}

// findCycle runs an iterative DFS over the dependency edges and returns
// the first cycle found as a package name path (first == last), or nil.
// Traversal order is sorted so the reported cycle is stable.
func (g *Graph) findCycle() []string {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := make(map[string]int, len(g.descriptors))

	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(name string) bool {
		state[name] = inStack
		stack = append(stack, name)

		deps := append([]string(nil), g.deps[name]...)
		sort.Strings(deps)
		for _, dep := range deps {
			switch state[dep] {
			case inStack:
				// Slice the current stack from the first occurrence of dep
				// and close the loop.
				for i, n := range stack {
					if n == dep {
						cycle = append(append([]string(nil), stack[i:]...), dep)
						return true
					}
				}
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[name] = done
		return false
	}

	names := g.Names()
	for _, name := range names {
		if state[name] == unvisited && visit(name) {
			return cycle
		}
	}
	return nil
}

// computeTiers assigns each package its tier and builds the ascending tier
// ordering via BFS over in-degrees, level by level.
func (g *Graph) computeTiers() {
	inDegree := make(map[string]int, len(g.descriptors))
	for name := range g.descriptors {
		inDegree[name] = len(g.deps[name])
	}

	var current []string
	for name, deg := range inDegree {
		if deg == 0 {
			current = append(current, name)
		}
	}

	level := 0
	for len(current) > 0 {
		sort.Strings(current)
		g.tiers = append(g.tiers, current)
		for _, name := range current {
			g.tier[name] = level
		}

		var next []string
		for _, name := range current {
			for _, dependent := range g.dependents[name] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		current = next
		level++
	}
}
