// Package process defines the unit of work the engine schedules: a named
// function with dependencies, optional caching, validation, and skip
// predicates. Definitions are static configuration; per-run state lives in
// State and is created fresh for every execution.
package process

import (
	"context"
	"errors"
	"time"
)

// Func is the work a process performs. The args map is the caller-supplied
// execution context merged with the results of completed dependencies, keyed
// by dependency name. A non-nil error marks the process failed.
type Func func(ctx context.Context, args map[string]any) (any, error)

// ValidateFunc inspects a successful result. A non-nil error rejects the
// result and the process is treated as failed with the error text as reason.
type ValidateFunc func(result any) error

// OutdatedCheckFunc reports whether the data behind a process is stale.
// True means stale: the process should run. It receives the same merged args
// as Func. An error is treated as "unknown, run anyway" by the executor.
type OutdatedCheckFunc func(ctx context.Context, args map[string]any) (bool, error)

// ErrInvalidResult is the bare rejection reason for validators that have
// nothing more specific to say.
var ErrInvalidResult = errors.New("validation rejected result")

// Status is the lifecycle state of a process within one execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCached    Status = "cached"
)

// Terminal reports whether the status can no longer change within a run.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped, StatusCached:
		return true
	}
	return false
}

// Definition describes a single process. Name must be unique within a tree
// and every entry of Dependencies must name another definition in the same
// tree.
type Definition struct {
	Name         string
	Func         Func
	Dependencies []string

	// CacheKey, when set, namespaces this process's successful results in
	// the engine's cache store. CacheTTL of zero means the entry never
	// expires.
	CacheKey string
	CacheTTL time.Duration

	Validate      ValidateFunc
	OutdatedCheck OutdatedCheckFunc

	// TriggerRef names an externally registered trigger consulted before
	// the process runs. Empty means always eligible.
	TriggerRef string

	// Required processes gate overall tree success and cascade their
	// failure to dependents. Optional ones do neither.
	Required bool

	// Metadata is opaque to the engine.
	Metadata map[string]string

	// Persistence references. Functions are never serialized; these
	// "module.symbol" strings are what tree definition files store and
	// what a registry resolves back to callables at load time.
	FuncRef          string
	ValidationRef    string
	OutdatedCheckRef string
}

// State is the transient per-execution record for one process. It is owned
// by the in-flight execution and discarded afterwards, except that the
// engine retains the final snapshot for status/result lookups.
type State struct {
	Status        Status
	Result        any
	Error         string
	ExecutionTime time.Duration
	Cached        bool
}

// NewState returns a fresh pending state.
func NewState() *State {
	return &State{Status: StatusPending}
}
