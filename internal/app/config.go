package app

import (
	"errors"
	"time"
)

// Config holds everything an App instance needs to run.
type Config struct {
	DefsPath string // tree definition files (.hcl), file or directory

	LogFormat string
	LogLevel  string

	Trees           []string // trees to run; empty means all loaded trees
	SyncCheck       bool     // run sync-aware selective execution
	ContinueOnError bool
	NoCache         bool

	// Ledger wiring. Snapshot and DSN come from the environment so secrets
	// stay out of argv.
	LedgerSnapshot string // JSON snapshot path, enables the file client
	LedgerDSN      string // Postgres DSN for the last-update store
	LedgerMaxAge   time.Duration
}

// NewConfig validates a config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.DefsPath == "" {
		return nil, errors.New("DefsPath is a required configuration field and cannot be empty")
	}
	if cfg.SyncCheck && cfg.LedgerSnapshot == "" {
		return nil, errors.New("sync-check requires a ledger snapshot (set LEDGER_SNAPSHOT)")
	}
	return &cfg, nil
}
