package engine

import (
	"time"

	"github.com/acctflow/procgraph/internal/process"
)

// Result is the per-tree outcome of one execution. All maps are keyed by
// process name; Status covers every process in the executed order, the
// other maps only the processes they apply to.
type Result struct {
	Success        bool
	Results        map[string]any
	Status         map[string]process.Status
	Errors         map[string]string
	ExecutionTimes map[string]time.Duration
	Cached         map[string]bool
}

// Summary condenses a Result for log reporting.
type Summary struct {
	Tree      string
	Total     int
	Completed int
	Cached    int
	Failed    int
	Skipped   int
	Pending   int
	Success   bool
}

// Summarize tallies statuses for the given tree name.
func (r *Result) Summarize(treeName string) Summary {
	s := Summary{Tree: treeName, Success: r.Success, Total: len(r.Status)}
	for _, status := range r.Status {
		switch status {
		case process.StatusCompleted:
			s.Completed++
		case process.StatusCached:
			s.Cached++
		case process.StatusFailed:
			s.Failed++
		case process.StatusSkipped:
			s.Skipped++
		case process.StatusPending:
			s.Pending++
		}
	}
	return s
}

// SyncDetail is a sync checker's verdict for one process.
type SyncDetail struct {
	OutOfSync bool
	Error     string
}

// SyncReport is what an external sync checker returns: the names it found
// out of sync and per-name detail.
type SyncReport struct {
	OutOfSync []string
	Details   map[string]SyncDetail
}

// SyncCheckResult wraps a SyncReport with the engine's derived flags.
type SyncCheckResult struct {
	HasOutOfSync bool
	OutOfSync    []string
	Details      map[string]SyncDetail
	AllInSync    bool
}

// SyncResult is the outcome of a sync-aware execution. Success requires
// both a successful execution and an all-in-sync report: a clean run that
// left something out of sync is still reported unsuccessful.
type SyncResult struct {
	SyncCheck *SyncCheckResult
	Execution *Result
	Success   bool
}
