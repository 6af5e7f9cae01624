package engine

import (
	"context"

	"github.com/acctflow/procgraph/internal/ctxlog"
)

// syncCheckFailed is the synthetic process name reported when the sync
// checker itself errors. It never matches a tree process, so a selective
// run selects nothing while the overall result still reports out-of-sync.
const syncCheckFailed = "sync_check_failed"

// SyncCheckFunc is the external collaborator that reports which processes
// are out of sync with their upstream source.
type SyncCheckFunc func(ctx context.Context, args map[string]any) (*SyncReport, error)

// CheckOutOfSync runs the sync checker and derives the engine-level flags.
// A checker error is folded into the result as a synthetic out-of-sync
// entry rather than propagated.
func (e *Engine) CheckOutOfSync(ctx context.Context, check SyncCheckFunc, args map[string]any) *SyncCheckResult {
	report, err := check(ctx, args)
	if err != nil {
		ctxlog.FromContext(ctx).Error("Error checking sync status.", "error", err)
		return &SyncCheckResult{
			HasOutOfSync: true,
			OutOfSync:    []string{syncCheckFailed},
			Details: map[string]SyncDetail{
				syncCheckFailed: {OutOfSync: true, Error: err.Error()},
			},
			AllInSync: false,
		}
	}
	return &SyncCheckResult{
		HasOutOfSync: len(report.OutOfSync) > 0,
		OutOfSync:    report.OutOfSync,
		Details:      report.Details,
		AllInSync:    len(report.OutOfSync) == 0,
	}
}

// ExecuteWithSyncCheck runs the sync checker first and, by default,
// restricts execution to the out-of-sync processes plus their direct
// dependents. The restriction is deliberately one hop: a process two edges
// downstream of an out-of-sync one is not selected. Overall success
// requires both a successful execution and an all-in-sync report.
func (e *Engine) ExecuteWithSyncCheck(ctx context.Context, treeName string, check SyncCheckFunc, opts ...ExecOption) (*SyncResult, error) {
	t, ok := e.trees[treeName]
	if !ok {
		return nil, &UnknownTreeError{Name: treeName}
	}
	order, err := t.Order()
	if err != nil {
		return nil, err
	}
	cfg := newExecConfig(opts)
	logger := ctxlog.FromContext(ctx).With("tree", treeName)

	logger.Info("Checking sync status.")
	syncResult := e.CheckOutOfSync(ctx, check, cfg.args)

	runOrder := order
	if cfg.onlyOutOfSync && syncResult.HasOutOfSync {
		outOfSync := make(map[string]bool, len(syncResult.OutOfSync))
		for _, name := range syncResult.OutOfSync {
			outOfSync[name] = true
		}
		runSet := make(map[string]bool, len(outOfSync))
		for name := range outOfSync {
			runSet[name] = true
		}
		for _, name := range t.DirectDependents(outOfSync) {
			runSet[name] = true
		}

		// Filter the precomputed order, preserving relative order.
		runOrder = runOrder[:0:0]
		for _, name := range order {
			if runSet[name] {
				runOrder = append(runOrder, name)
			}
		}
		logger.Info("Restricting run to out-of-sync processes and direct dependents.",
			"out_of_sync", len(syncResult.OutOfSync), "selected", len(runOrder))
	} else {
		logger.Info("Running all processes.")
	}

	execResult := e.execute(ctx, t, runOrder, cfg)

	return &SyncResult{
		SyncCheck: syncResult,
		Execution: execResult,
		Success:   execResult.Success && syncResult.AllInSync,
	}, nil
}
