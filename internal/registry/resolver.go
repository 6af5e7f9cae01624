package registry

import (
	"fmt"
	"strings"

	"github.com/acctflow/procgraph/internal/process"
	"github.com/acctflow/procgraph/internal/trigger"
)

// FunctionResolutionError reports a stored reference that resolved to no
// registered callable. It is raised when a tree is instantiated from
// storage, never deferred to execution.
type FunctionResolutionError struct {
	Ref  string
	Kind string // "function", "validator", "outdated check", "predicate", "last-updated reporter"
}

func (e *FunctionResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %s reference '%s'", e.Kind, e.Ref)
}

// LookupFunc is a fallback consulted when the registry has no entry for a
// reference. It stands in for the dynamic-import fallback a reflective
// runtime would use: callers can plug in plugin loaders or delegating
// registries. Returning false passes to the next fallback.
type LookupFunc func(module, symbol string) (any, bool)

// Resolver resolves "module.symbol" references registry-first, then through
// an ordered fallback chain.
type Resolver struct {
	registry  *Registry
	fallbacks []LookupFunc
}

// NewResolver returns a resolver over the given registry.
func NewResolver(r *Registry, fallbacks ...LookupFunc) *Resolver {
	return &Resolver{registry: r, fallbacks: fallbacks}
}

// splitRef splits "module.symbol" at the last dot. References without a dot
// have an empty module part.
func splitRef(ref string) (module, symbol string) {
	if i := strings.LastIndex(ref, "."); i >= 0 {
		return ref[:i], ref[i+1:]
	}
	return "", ref
}

// fallback consults the fallback chain for ref.
func (r *Resolver) fallback(ref string) (any, bool) {
	module, symbol := splitRef(ref)
	for _, lookup := range r.fallbacks {
		if v, ok := lookup(module, symbol); ok {
			return v, true
		}
	}
	return nil, false
}

// Func resolves a process function reference. Lookup tries the full
// reference first, then the bare symbol, then the fallback chain.
func (r *Resolver) Func(ref string) (process.Func, error) {
	if fn, ok := r.registry.funcs[ref]; ok {
		return fn, nil
	}
	_, symbol := splitRef(ref)
	if fn, ok := r.registry.funcs[symbol]; ok {
		return fn, nil
	}
	if v, ok := r.fallback(ref); ok {
		if fn, ok := v.(process.Func); ok {
			return fn, nil
		}
	}
	return nil, &FunctionResolutionError{Ref: ref, Kind: "function"}
}

// Validator resolves a validation function reference.
func (r *Resolver) Validator(ref string) (process.ValidateFunc, error) {
	if fn, ok := r.registry.validators[ref]; ok {
		return fn, nil
	}
	_, symbol := splitRef(ref)
	if fn, ok := r.registry.validators[symbol]; ok {
		return fn, nil
	}
	if v, ok := r.fallback(ref); ok {
		if fn, ok := v.(process.ValidateFunc); ok {
			return fn, nil
		}
	}
	return nil, &FunctionResolutionError{Ref: ref, Kind: "validator"}
}

// OutdatedCheck resolves a staleness predicate reference.
func (r *Resolver) OutdatedCheck(ref string) (process.OutdatedCheckFunc, error) {
	if fn, ok := r.registry.checks[ref]; ok {
		return fn, nil
	}
	_, symbol := splitRef(ref)
	if fn, ok := r.registry.checks[symbol]; ok {
		return fn, nil
	}
	if v, ok := r.fallback(ref); ok {
		if fn, ok := v.(process.OutdatedCheckFunc); ok {
			return fn, nil
		}
	}
	return nil, &FunctionResolutionError{Ref: ref, Kind: "outdated check"}
}

// LastUpdated resolves a last-update reporter reference.
func (r *Resolver) LastUpdated(ref string) (trigger.LastUpdatedFunc, error) {
	if fn, ok := r.registry.lastUpdates[ref]; ok {
		return fn, nil
	}
	_, symbol := splitRef(ref)
	if fn, ok := r.registry.lastUpdates[symbol]; ok {
		return fn, nil
	}
	if v, ok := r.fallback(ref); ok {
		if fn, ok := v.(trigger.LastUpdatedFunc); ok {
			return fn, nil
		}
	}
	return nil, &FunctionResolutionError{Ref: ref, Kind: "last-updated reporter"}
}

// Predicate resolves a custom-trigger predicate reference.
func (r *Resolver) Predicate(ref string) (trigger.PredicateFunc, error) {
	if fn, ok := r.registry.predicates[ref]; ok {
		return fn, nil
	}
	_, symbol := splitRef(ref)
	if fn, ok := r.registry.predicates[symbol]; ok {
		return fn, nil
	}
	if v, ok := r.fallback(ref); ok {
		if fn, ok := v.(trigger.PredicateFunc); ok {
			return fn, nil
		}
	}
	return nil, &FunctionResolutionError{Ref: ref, Kind: "predicate"}
}
