package app

import (
	"context"
	"fmt"

	"github.com/acctflow/procgraph/internal/ctxlog"
	"github.com/acctflow/procgraph/internal/engine"
)

// Run executes the configured trees and reports per-tree outcomes. It
// returns an error when any required process in any tree failed.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	trees := a.config.Trees
	if len(trees) == 0 {
		trees = a.engine.Trees()
	}
	if len(trees) == 0 {
		a.logger.Warn("No trees loaded, nothing to run.")
		return nil
	}

	var execOpts []engine.ExecOption
	if a.config.ContinueOnError {
		execOpts = append(execOpts, engine.ContinueOnError())
	}
	if a.config.NoCache {
		execOpts = append(execOpts, engine.IgnoreCache())
	}

	failed := 0
	for _, name := range trees {
		result, err := a.runTree(ctx, name, execOpts)
		if err != nil {
			return err
		}
		summary := result.Summarize(name)
		a.logger.Info("Tree finished.",
			"tree", name,
			"success", summary.Success,
			"completed", summary.Completed,
			"cached", summary.Cached,
			"skipped", summary.Skipped,
			"failed", summary.Failed,
			"pending", summary.Pending,
		)
		for proc, msg := range result.Errors {
			a.logger.Error("Process did not complete.", "tree", name, "process", proc, "reason", msg)
		}
		if !summary.Success {
			failed++
		}
	}

	a.logger.Debug("App.Run method finished.")
	if failed > 0 {
		return fmt.Errorf("%d of %d trees failed", failed, len(trees))
	}
	return nil
}

// runTree dispatches one tree through plain or sync-aware execution.
func (a *App) runTree(ctx context.Context, name string, opts []engine.ExecOption) (*engine.Result, error) {
	if !a.config.SyncCheck {
		return a.engine.Execute(ctx, name, opts...)
	}

	res, err := a.engine.ExecuteWithSyncCheck(ctx, name, a.syncer.SyncCheck(), opts...)
	if err != nil {
		return nil, err
	}
	a.logger.Info("Sync check complete.",
		"tree", name,
		"all_in_sync", res.SyncCheck.AllInSync,
		"out_of_sync", res.SyncCheck.OutOfSync,
	)
	return res.Execution, nil
}
