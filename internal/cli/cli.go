// Package cli parses command-line arguments into an app configuration.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/acctflow/procgraph/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("procgraph", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
procgraph - runs process dependency trees from definition files.

Usage:
  procgraph [options] [DEFS_PATH]

Arguments:
  DEFS_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	defsFlag := flagSet.String("defs", "", "Path to the definition file or directory.")
	dFlag := flagSet.String("d", "", "Path to the definition file or directory (shorthand).")
	treesFlag := flagSet.String("trees", "", "Comma-separated tree names to run. Empty runs all loaded trees.")
	treeFlag := flagSet.String("tree", "", "Single tree name to run (shorthand for -trees with one name).")
	syncCheckFlag := flagSet.Bool("sync-check", false, "Check ledger sync status first and only re-run stale processes.")
	continueFlag := flagSet.Bool("continue-on-error", false, "Keep walking the tree after a required process fails.")
	noCacheFlag := flagSet.Bool("no-cache", false, "Ignore and bypass cached process results.")
	maxAgeFlag := flagSet.Duration("max-age", time.Hour, "Age beyond which synced ledger data counts as stale.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *defsFlag != "" {
		path = *defsFlag
	} else if *dFlag != "" {
		path = *dFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Definitions path determined.", "path", path)

	if path == "" {
		slog.Debug("No definitions path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}
	slog.Debug("CLI parameter validation complete.")

	var trees []string
	for _, name := range strings.Split(*treesFlag, ",") {
		if name = strings.TrimSpace(name); name != "" {
			trees = append(trees, name)
		}
	}
	if *treeFlag != "" {
		trees = append(trees, strings.TrimSpace(*treeFlag))
	}

	config, err := app.NewConfig(app.Config{
		DefsPath:        path,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		Trees:           trees,
		SyncCheck:       *syncCheckFlag,
		ContinueOnError: *continueFlag,
		NoCache:         *noCacheFlag,
		LedgerSnapshot:  os.Getenv("LEDGER_SNAPSHOT"),
		LedgerDSN:       os.Getenv("LEDGER_PG_DSN"),
		LedgerMaxAge:    *maxAgeFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
