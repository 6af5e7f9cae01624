// Package dag computes a deterministic topological order for a set of named
// nodes with dependency edges, failing eagerly on unknown dependencies and
// cycles. It is the only place graph validation happens; callers never see a
// cyclic order at execution time.
package dag

import (
	"fmt"
	"strings"
)

// UnknownDependencyError reports a declared dependency that names no node.
type UnknownDependencyError struct {
	Node       string
	Dependency string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("process '%s' depends on '%s' which doesn't exist", e.Node, e.Dependency)
}

// CycleError reports the exact set of nodes that could not be ordered.
// Remaining preserves definition order.
type CycleError struct {
	Remaining []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected, processes not ordered: [%s]", strings.Join(e.Remaining, ", "))
}

// Sort returns a topological order of nodes using Kahn's algorithm.
//
// nodes is the full node set in definition order; deps maps each node to the
// nodes it depends on. Determinism: zero in-degree nodes are seeded in
// definition order and adjacency lists are built in that same order, so two
// identical inputs always produce the same order.
func Sort(nodes []string, deps map[string][]string) ([]string, error) {
	known := make(map[string]bool, len(nodes))
	for _, name := range nodes {
		known[name] = true
	}

	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for _, name := range nodes {
		inDegree[name] = 0
	}
	for _, name := range nodes {
		for _, dep := range deps[name] {
			if !known[dep] {
				return nil, &UnknownDependencyError{Node: name, Dependency: dep}
			}
			dependents[dep] = append(dependents[dep], name)
			inDegree[name]++
		}
	}

	queue := make([]string, 0, len(nodes))
	for _, name := range nodes {
		if inDegree[name] == 0 {
			queue = append(queue, name)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(nodes) {
		ordered := make(map[string]bool, len(order))
		for _, name := range order {
			ordered[name] = true
		}
		var remaining []string
		for _, name := range nodes {
			if !ordered[name] {
				remaining = append(remaining, name)
			}
		}
		return nil, &CycleError{Remaining: remaining}
	}

	return order, nil
}
