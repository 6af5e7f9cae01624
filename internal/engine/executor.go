package engine

import (
	"context"
	"errors"
	"time"

	"github.com/acctflow/procgraph/internal/ctxlog"
	"github.com/acctflow/procgraph/internal/process"
	"github.com/acctflow/procgraph/internal/tree"
	"github.com/acctflow/procgraph/internal/trigger"
)

// ExecOption tunes a single Execute call.
type ExecOption func(*execConfig)

type execConfig struct {
	args          map[string]any
	stopOnError   bool
	skipCached    bool
	onlyOutOfSync bool
}

func newExecConfig(opts []ExecOption) execConfig {
	cfg := execConfig{
		stopOnError:   true,
		skipCached:    true,
		onlyOutOfSync: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithArgs supplies the caller's execution context, passed to every process
// function alongside its dependencies' results.
func WithArgs(args map[string]any) ExecOption {
	return func(c *execConfig) { c.args = args }
}

// ContinueOnError keeps executing later processes after a required process
// fails, instead of leaving them pending.
func ContinueOnError() ExecOption {
	return func(c *execConfig) { c.stopOnError = false }
}

// IgnoreCache runs every process even when a valid cached result exists.
func IgnoreCache() ExecOption {
	return func(c *execConfig) { c.skipCached = false }
}

// RunAll makes a sync-aware execution run the whole tree rather than just
// the out-of-sync processes and their direct dependents.
func RunAll() ExecOption {
	return func(c *execConfig) { c.onlyOutOfSync = false }
}

// Execute runs a tree in dependency order and returns the collected
// outcome. Per-process failures are captured in the result, never returned
// as an error; only an unknown tree name errors.
func (e *Engine) Execute(ctx context.Context, treeName string, opts ...ExecOption) (*Result, error) {
	t, ok := e.trees[treeName]
	if !ok {
		return nil, &UnknownTreeError{Name: treeName}
	}
	order, err := t.Order()
	if err != nil {
		// AddTree validated the graph; a tree mutated into a cycle since
		// then still fails eagerly here, before any process runs.
		return nil, err
	}
	cfg := newExecConfig(opts)
	return e.execute(ctx, t, order, cfg), nil
}

// execute walks the given order sequentially, applying the per-process
// state machine: cached short-circuit, trigger gate, outdated gate, failed
// dependency cascade, then run + validate.
func (e *Engine) execute(ctx context.Context, t *tree.Tree, order []string, cfg execConfig) *Result {
	logger := ctxlog.FromContext(ctx).With("tree", t.Name())
	logger.Info("Executing process tree.", "processes", len(order))

	states := make(map[string]*process.State, t.Len())
	for _, name := range t.Names() {
		states[name] = process.NewState()
	}

	res := &Result{
		Results:        make(map[string]any),
		Status:         make(map[string]process.Status, len(order)),
		Errors:         make(map[string]string),
		ExecutionTimes: make(map[string]time.Duration),
		Cached:         make(map[string]bool),
	}

	for _, name := range order {
		def, _ := t.Definition(name)
		st := states[name]

		// 1. Valid cache hit short-circuits every other check.
		if cfg.skipCached && e.cacheEnabled && def.CacheKey != "" {
			if cached, ok := e.cache.Get(def.CacheKey); ok {
				st.Status = process.StatusCached
				st.Result = cached
				st.Cached = true
				res.Results[name] = cached
				res.Cached[name] = true
				logger.Info("Process using cached result.", "process", name, "cache_key", def.CacheKey)
				continue
			}
		}

		checkArgs := mergeArgs(cfg.args, def.Dependencies, states)

		// 2. Trigger gate. A missing trigger or evaluation problem is
		// logged and the process proceeds; only an explicit "did not
		// fire" skips it.
		if def.TriggerRef != "" {
			fired, err := e.triggers.Evaluate(ctx, def.TriggerRef, checkArgs)
			var notFound *trigger.ErrNotFound
			switch {
			case errors.As(err, &notFound):
				logger.Warn("Trigger not found for process, skipping trigger check.",
					"process", name, "trigger", def.TriggerRef)
			case err != nil:
				logger.Warn("Error checking trigger, proceeding with execution.",
					"process", name, "trigger", def.TriggerRef, "error", err)
			case !fired:
				st.Status = process.StatusSkipped
				st.Error = "trigger '" + def.TriggerRef + "' did not fire"
				res.Errors[name] = st.Error
				logger.Info("Skipping process: trigger did not fire.",
					"process", name, "trigger", def.TriggerRef)
				continue
			}
		}

		// 3. Outdated gate: skip when the underlying data is current.
		if def.OutdatedCheck != nil {
			outdated, err := def.OutdatedCheck(ctx, checkArgs)
			if err != nil {
				logger.Warn("Error checking outdated status, proceeding with execution.",
					"process", name, "error", err)
			} else if !outdated {
				st.Status = process.StatusSkipped
				st.Error = "data is up-to-date"
				res.Errors[name] = st.Error
				logger.Info("Skipping process: data is up-to-date.", "process", name)
				continue
			}
		}

		// 4. A failed direct dependency cascades only into required
		// processes. A skipped dependency does not cascade.
		if def.Required && anyDependencyFailed(def.Dependencies, states) {
			st.Status = process.StatusSkipped
			st.Error = "dependency failed"
			res.Errors[name] = st.Error
			logger.Warn("Skipping process due to failed dependency.", "process", name)
			continue
		}

		// 5-8. Run the function against the merged context.
		st.Status = process.StatusRunning
		logger.Info("Executing process.", "process", name)
		start := e.now()
		result, runErr := def.Func(ctx, checkArgs)
		st.ExecutionTime = e.now().Sub(start)
		res.ExecutionTimes[name] = st.ExecutionTime

		if runErr == nil && def.Validate != nil {
			if verr := def.Validate(result); verr != nil {
				runErr = verr
			}
		}

		if runErr != nil {
			st.Status = process.StatusFailed
			st.Error = runErr.Error()
			res.Errors[name] = st.Error
			logger.Error("Process failed.", "process", name, "error", runErr)
			if cfg.stopOnError && def.Required {
				// Remaining processes stay pending, distinct from skipped.
				break
			}
			continue
		}

		st.Result = result
		st.Status = process.StatusCompleted
		st.Cached = false
		res.Results[name] = result
		res.Cached[name] = false
		if e.cacheEnabled && def.CacheKey != "" {
			e.cache.Set(def.CacheKey, result, def.CacheTTL)
		}
		logger.Info("Process completed.", "process", name, "duration", st.ExecutionTime)
	}

	// Tree success: every required process in the executed order finished
	// as completed or cached. Optional processes never block success.
	res.Success = true
	for _, name := range order {
		res.Status[name] = states[name].Status
		def, _ := t.Definition(name)
		if !def.Required {
			continue
		}
		if s := states[name].Status; s != process.StatusCompleted && s != process.StatusCached {
			res.Success = false
		}
	}

	e.last[t.Name()] = states
	logger.Info("Process tree finished.", "success", res.Success)
	return res
}

// mergeArgs merges the caller context with the results of dependencies that
// finished as completed or cached. Skipped and failed dependencies are
// simply absent, never nil-padded.
func mergeArgs(base map[string]any, deps []string, states map[string]*process.State) map[string]any {
	merged := make(map[string]any, len(base)+len(deps))
	for k, v := range base {
		merged[k] = v
	}
	for _, dep := range deps {
		if st, ok := states[dep]; ok {
			if st.Status == process.StatusCompleted || st.Status == process.StatusCached {
				merged[dep] = st.Result
			}
		}
	}
	return merged
}

func anyDependencyFailed(deps []string, states map[string]*process.State) bool {
	for _, dep := range deps {
		if st, ok := states[dep]; ok && st.Status == process.StatusFailed {
			return true
		}
	}
	return false
}
