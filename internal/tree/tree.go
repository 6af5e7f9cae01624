// Package tree holds named collections of process definitions together with
// their precomputed execution order. A Tree validates its dependency graph
// eagerly: adding a definition invalidates the cached order and the next
// Order call re-runs topological sorting, surfacing cycles and unknown
// dependencies long before execution.
package tree

import (
	"fmt"

	"github.com/acctflow/procgraph/internal/dag"
	"github.com/acctflow/procgraph/internal/process"
)

// Tree is a named set of process definitions plus their execution order.
// Definition insertion order is preserved so ordering stays deterministic.
type Tree struct {
	name  string
	defs  map[string]*process.Definition
	names []string

	// order caches the topological order; nil means it must be recomputed.
	order []string
}

// New returns an empty tree.
func New(name string) *Tree {
	return &Tree{
		name: name,
		defs: make(map[string]*process.Definition),
	}
}

// Name returns the tree's name.
func (t *Tree) Name() string { return t.name }

// Add inserts a definition. Names are unique within a tree and definitions
// must carry a function.
func (t *Tree) Add(def *process.Definition) error {
	if def.Name == "" {
		return fmt.Errorf("tree '%s': process definition has no name", t.name)
	}
	if def.Func == nil {
		return fmt.Errorf("tree '%s': process '%s' has no function", t.name, def.Name)
	}
	if _, exists := t.defs[def.Name]; exists {
		return fmt.Errorf("tree '%s': process '%s' already defined", t.name, def.Name)
	}
	t.defs[def.Name] = def
	t.names = append(t.names, def.Name)
	t.order = nil
	return nil
}

// Definition looks up a single definition by name.
func (t *Tree) Definition(name string) (*process.Definition, bool) {
	def, ok := t.defs[name]
	return def, ok
}

// Definitions returns all definitions in insertion order.
func (t *Tree) Definitions() []*process.Definition {
	defs := make([]*process.Definition, 0, len(t.names))
	for _, name := range t.names {
		defs = append(defs, t.defs[name])
	}
	return defs
}

// Names returns process names in insertion order.
func (t *Tree) Names() []string {
	names := make([]string, len(t.names))
	copy(names, t.names)
	return names
}

// Len returns the number of definitions.
func (t *Tree) Len() int { return len(t.names) }

// Order returns the topological execution order, computing and caching it on
// first use. It fails with *dag.UnknownDependencyError or *dag.CycleError.
func (t *Tree) Order() ([]string, error) {
	if t.order == nil {
		deps := make(map[string][]string, len(t.names))
		for _, name := range t.names {
			deps[name] = t.defs[name].Dependencies
		}
		order, err := dag.Sort(t.names, deps)
		if err != nil {
			return nil, fmt.Errorf("tree '%s': %w", t.name, err)
		}
		t.order = order
	}
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out, nil
}

// Validate forces order computation without returning it.
func (t *Tree) Validate() error {
	_, err := t.Order()
	return err
}

// DependencyGraph returns each process's direct dependencies, keyed by name.
func (t *Tree) DependencyGraph() map[string][]string {
	graph := make(map[string][]string, len(t.names))
	for _, name := range t.names {
		deps := make([]string, len(t.defs[name].Dependencies))
		copy(deps, t.defs[name].Dependencies)
		graph[name] = deps
	}
	return graph
}

// DirectDependents returns the names of processes that list any member of
// the given set as a direct dependency. Used by selective execution, which
// deliberately stops one hop downstream.
func (t *Tree) DirectDependents(of map[string]bool) []string {
	var dependents []string
	for _, name := range t.names {
		if of[name] {
			continue
		}
		for _, dep := range t.defs[name].Dependencies {
			if of[dep] {
				dependents = append(dependents, name)
				break
			}
		}
	}
	return dependents
}
