package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullFlagSet(t *testing.T) {
	// --- Arrange ---
	t.Setenv("LEDGER_SNAPSHOT", "/data/ledger.json")
	t.Setenv("LEDGER_PG_DSN", "postgres://localhost/procgraph")
	var out bytes.Buffer

	// --- Act ---
	cfg, shouldExit, err := Parse([]string{
		"-defs", "/etc/procgraph/defs",
		"-trees", "ledger_sync, billing",
		"-sync-check",
		"-continue-on-error",
		"-no-cache",
		"-max-age", "30m",
		"-log-level", "debug",
		"-log-format", "text",
	}, &out)

	// --- Assert ---
	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, "/etc/procgraph/defs", cfg.DefsPath)
	assert.Equal(t, []string{"ledger_sync", "billing"}, cfg.Trees)
	assert.True(t, cfg.SyncCheck)
	assert.True(t, cfg.ContinueOnError)
	assert.True(t, cfg.NoCache)
	assert.Equal(t, 30*time.Minute, cfg.LedgerMaxAge)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "/data/ledger.json", cfg.LedgerSnapshot)
	assert.Equal(t, "postgres://localhost/procgraph", cfg.LedgerDSN)
}

func TestParse_PositionalPath(t *testing.T) {
	var out bytes.Buffer

	cfg, shouldExit, err := Parse([]string{"./defs"}, &out)

	require.NoError(t, err)
	assert.False(t, shouldExit)
	assert.Equal(t, "./defs", cfg.DefsPath)
}

func TestParse_NoPathPrintsUsage(t *testing.T) {
	var out bytes.Buffer

	cfg, shouldExit, err := Parse(nil, &out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidLogFormat(t *testing.T) {
	var out bytes.Buffer

	_, _, err := Parse([]string{"-defs", "x", "-log-format", "xml"}, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestParse_SyncCheckRequiresSnapshot(t *testing.T) {
	t.Setenv("LEDGER_SNAPSHOT", "")
	var out bytes.Buffer

	_, _, err := Parse([]string{"-defs", "x", "-sync-check"}, &out)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Message, "LEDGER_SNAPSHOT")
}
