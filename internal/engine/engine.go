// Package engine executes process trees in dependency order. The executor
// is a deliberate single-threaded sequential loop: independent branches are
// never dispatched in parallel, so an external API's concurrency ceiling is
// respected without extra coordination. One engine instance owns one cache
// store shared across all trees it executes; the engine itself is not safe
// for concurrent use and each Execute call should be externally serialized.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/acctflow/procgraph/internal/cachestore"
	"github.com/acctflow/procgraph/internal/process"
	"github.com/acctflow/procgraph/internal/tree"
	"github.com/acctflow/procgraph/internal/trigger"
)

// UnknownTreeError reports a tree name the engine does not hold.
type UnknownTreeError struct {
	Name string
}

func (e *UnknownTreeError) Error() string {
	return fmt.Sprintf("process tree '%s' not found", e.Name)
}

// UnknownProcessError reports a process name missing from a known tree.
type UnknownProcessError struct {
	Tree string
	Name string
}

func (e *UnknownProcessError) Error() string {
	return fmt.Sprintf("process '%s' not found in tree '%s'", e.Name, e.Tree)
}

// Engine holds process trees, a shared cache store, and a trigger store.
type Engine struct {
	trees        map[string]*tree.Tree
	cache        *cachestore.Store
	cacheEnabled bool
	triggers     *trigger.Store
	now          func() time.Time

	// last keeps the final state snapshot of each tree's most recent
	// execution, for Status/Result lookups between runs.
	last map[string]map[string]*process.State
}

// Option configures an Engine.
type Option func(*Engine)

// WithCacheStore replaces the default cache store.
func WithCacheStore(s *cachestore.Store) Option {
	return func(e *Engine) { e.cache = s }
}

// CacheDisabled turns result caching off entirely.
func CacheDisabled() Option {
	return func(e *Engine) { e.cacheEnabled = false }
}

// WithTriggerStore replaces the default trigger store.
func WithTriggerStore(s *trigger.Store) Option {
	return func(e *Engine) { e.triggers = s }
}

// WithClock injects a clock for execution timing. Cache expiry follows the
// cache store's own clock; pair this with WithCacheStore and
// cachestore.NewWithClock when both must move together.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New returns an engine with an empty tree set.
func New(opts ...Option) *Engine {
	e := &Engine{
		trees:        make(map[string]*tree.Tree),
		cacheEnabled: true,
		now:          time.Now,
		last:         make(map[string]map[string]*process.State),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = cachestore.New(cachestore.DefaultSize)
	}
	if e.triggers == nil {
		e.triggers = trigger.NewStore()
	}
	return e
}

// AddTree registers a tree after validating its dependency graph. Cycles
// and unknown dependencies surface here, never during Execute. An existing
// tree with the same name is replaced.
func (e *Engine) AddTree(t *tree.Tree) error {
	if err := t.Validate(); err != nil {
		return err
	}
	e.trees[t.Name()] = t
	delete(e.last, t.Name())
	return nil
}

// RemoveTree drops a tree and its retained execution state.
func (e *Engine) RemoveTree(name string) {
	delete(e.trees, name)
	delete(e.last, name)
}

// Tree returns a registered tree.
func (e *Engine) Tree(name string) (*tree.Tree, bool) {
	t, ok := e.trees[name]
	return t, ok
}

// Trees lists registered tree names, sorted.
func (e *Engine) Trees() []string {
	names := make([]string, 0, len(e.trees))
	for name := range e.trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Triggers exposes the engine's trigger store for registration and manual
// fire/reset control.
func (e *Engine) Triggers() *trigger.Store {
	return e.triggers
}

// ExecutionOrder returns the topological order for a tree.
func (e *Engine) ExecutionOrder(name string) ([]string, error) {
	t, ok := e.trees[name]
	if !ok {
		return nil, &UnknownTreeError{Name: name}
	}
	return t.Order()
}

// DependencyGraph returns each process's direct dependencies for a tree.
func (e *Engine) DependencyGraph(name string) (map[string][]string, error) {
	t, ok := e.trees[name]
	if !ok {
		return nil, &UnknownTreeError{Name: name}
	}
	return t.DependencyGraph(), nil
}

// Status returns a process's status from the tree's most recent execution,
// or pending if the tree has not run since it was added.
func (e *Engine) Status(treeName, processName string) (process.Status, error) {
	t, ok := e.trees[treeName]
	if !ok {
		return "", &UnknownTreeError{Name: treeName}
	}
	if _, ok := t.Definition(processName); !ok {
		return "", &UnknownProcessError{Tree: treeName, Name: processName}
	}
	if states, ok := e.last[treeName]; ok {
		if st, ok := states[processName]; ok {
			return st.Status, nil
		}
	}
	return process.StatusPending, nil
}

// Result returns a process's result from the tree's most recent execution.
func (e *Engine) Result(treeName, processName string) (any, error) {
	t, ok := e.trees[treeName]
	if !ok {
		return nil, &UnknownTreeError{Name: treeName}
	}
	if _, ok := t.Definition(processName); !ok {
		return nil, &UnknownProcessError{Tree: treeName, Name: processName}
	}
	if states, ok := e.last[treeName]; ok {
		if st, ok := states[processName]; ok {
			return st.Result, nil
		}
	}
	return nil, nil
}

// Reset discards a tree's retained execution state.
func (e *Engine) Reset(treeName string) error {
	if _, ok := e.trees[treeName]; !ok {
		return &UnknownTreeError{Name: treeName}
	}
	delete(e.last, treeName)
	return nil
}

// ClearCache removes one cache key.
func (e *Engine) ClearCache(key string) {
	e.cache.Clear(key)
}

// ClearAllCaches removes every cached result.
func (e *Engine) ClearAllCaches() {
	e.cache.ClearAll()
}

// FireTrigger forces the named trigger into the fired state and executes
// every tree subscribed to it. Results are keyed by tree name.
func (e *Engine) FireTrigger(ctx context.Context, name string, opts ...ExecOption) (map[string]*Result, error) {
	if err := e.triggers.Fire(name); err != nil {
		return nil, err
	}
	results := make(map[string]*Result)
	for _, treeName := range e.triggers.Subscriptions(name) {
		res, err := e.Execute(ctx, treeName, opts...)
		if err != nil {
			return results, err
		}
		results[treeName] = res
	}
	return results, nil
}
