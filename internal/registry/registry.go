// Package registry maps persistence references ("module.symbol" strings) to
// callables. Tree definition files never store code, only references;
// loading a tree resolves every reference through a Registry up front so a
// missing function fails at load time, not mid-execution.
package registry

import (
	"fmt"

	"github.com/acctflow/procgraph/internal/process"
	"github.com/acctflow/procgraph/internal/trigger"
)

// Module bundles related registrations, mirroring how a domain package
// contributes its process functions to an application.
type Module interface {
	Register(r *Registry)
}

// ModuleFunc adapts a plain function to the Module interface.
type ModuleFunc func(r *Registry)

// Register implements Module.
func (f ModuleFunc) Register(r *Registry) { f(r) }

// Registry holds named process functions, validators, outdated checks, and
// trigger predicates for a single application instance.
type Registry struct {
	funcs       map[string]process.Func
	validators  map[string]process.ValidateFunc
	checks      map[string]process.OutdatedCheckFunc
	predicates  map[string]trigger.PredicateFunc
	lastUpdates map[string]trigger.LastUpdatedFunc
}

// New creates an empty registry and applies the given modules.
func New(modules ...Module) *Registry {
	r := &Registry{
		funcs:       make(map[string]process.Func),
		validators:  make(map[string]process.ValidateFunc),
		checks:      make(map[string]process.OutdatedCheckFunc),
		predicates:  make(map[string]trigger.PredicateFunc),
		lastUpdates: make(map[string]trigger.LastUpdatedFunc),
	}
	for _, mod := range modules {
		mod.Register(r)
	}
	return r
}

// RegisterFunc registers a process function under ref. Duplicate
// registration is a programmer error.
func (r *Registry) RegisterFunc(ref string, fn process.Func) {
	if _, exists := r.funcs[ref]; exists {
		panic(fmt.Sprintf("process function '%s' already registered", ref))
	}
	r.funcs[ref] = fn
}

// RegisterValidator registers a result validator under ref.
func (r *Registry) RegisterValidator(ref string, fn process.ValidateFunc) {
	if _, exists := r.validators[ref]; exists {
		panic(fmt.Sprintf("validator '%s' already registered", ref))
	}
	r.validators[ref] = fn
}

// RegisterOutdatedCheck registers a staleness predicate under ref.
func (r *Registry) RegisterOutdatedCheck(ref string, fn process.OutdatedCheckFunc) {
	if _, exists := r.checks[ref]; exists {
		panic(fmt.Sprintf("outdated check '%s' already registered", ref))
	}
	r.checks[ref] = fn
}

// RegisterPredicate registers a custom-trigger predicate under ref.
func (r *Registry) RegisterPredicate(ref string, fn trigger.PredicateFunc) {
	if _, exists := r.predicates[ref]; exists {
		panic(fmt.Sprintf("trigger predicate '%s' already registered", ref))
	}
	r.predicates[ref] = fn
}

// RegisterLastUpdated registers a last-update reporter under ref. Staleness
// triggers loaded from definition files look their reporter up here.
func (r *Registry) RegisterLastUpdated(ref string, fn trigger.LastUpdatedFunc) {
	if _, exists := r.lastUpdates[ref]; exists {
		panic(fmt.Sprintf("last-updated reporter '%s' already registered", ref))
	}
	r.lastUpdates[ref] = fn
}
