package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acctflow/procgraph/internal/engine"
	"github.com/acctflow/procgraph/internal/process"
	"github.com/acctflow/procgraph/internal/registry"
)

// fakeClient serves a fixed, balanced ledger and counts fetches.
type fakeClient struct {
	journalsErr   error
	fetchCounts   map[string]int
	journalsSince time.Time
}

func newFakeClient() *fakeClient {
	return &fakeClient{fetchCounts: map[string]int{}}
}

func (c *fakeClient) Accounts(context.Context) ([]Account, error) {
	c.fetchCounts["accounts"]++
	return []Account{
		{ID: "1", Code: "200", Name: "Sales", Type: "REVENUE"},
		{ID: "2", Code: "610", Name: "Accounts Receivable", Type: "ASSET"},
	}, nil
}

func (c *fakeClient) Contacts(context.Context) ([]Contact, error) {
	c.fetchCounts["contacts"]++
	return []Contact{{ID: "c1", Name: "Acme Ltd", Email: "ap@acme.test"}}, nil
}

func (c *fakeClient) Journals(_ context.Context, since time.Time) ([]Journal, error) {
	c.fetchCounts["journals"]++
	c.journalsSince = since
	if c.journalsErr != nil {
		return nil, c.journalsErr
	}
	return []Journal{
		{ID: "j1", Number: 1, Lines: []JournalLine{
			{AccountCode: "610", Debit: 150},
			{AccountCode: "200", Credit: 150},
		}},
	}, nil
}

func TestSyncTree_EndToEnd(t *testing.T) {
	// --- Arrange ---
	client := newFakeClient()
	store := NewMemStore()
	checkers := NewCheckers(store, time.Hour)
	syncer := NewSyncer(client, store, checkers)

	tr, err := syncer.Tree()
	require.NoError(t, err)

	e := engine.New()
	require.NoError(t, e.AddTree(tr))

	// --- Act ---
	res, err := e.Execute(context.Background(), TreeName)

	// --- Assert ---
	require.NoError(t, err)
	require.True(t, res.Success, "errors: %v", res.Errors)

	processed := res.Results[ProcProcessJournals].(map[string]any)
	balances := processed["balances"].(map[string]Balance)
	assert.Equal(t, 150.0, balances["610"].Debit)
	assert.Equal(t, 150.0, balances["200"].Credit)

	cube := res.Results[ProcBuildCube].(map[string]any)["cube"].(map[string]float64)
	assert.Equal(t, 150.0, cube["ASSET"])
	assert.Equal(t, -150.0, cube["REVENUE"])

	validated := res.Results[ProcValidateBalances].(map[string]any)
	assert.True(t, validated["balanced"].(bool))

	// The fetches recorded their endpoints.
	updates, err := store.Endpoints(context.Background())
	require.NoError(t, err)
	assert.Contains(t, updates, EndpointAccounts)
	assert.Contains(t, updates, EndpointContacts)
	assert.Contains(t, updates, EndpointJournals)
}

func TestFetchJournals_UsesLastSyncAsSince(t *testing.T) {
	// --- Arrange ---
	client := newFakeClient()
	store := NewMemStore()
	last := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetLastUpdate(context.Background(), EndpointJournals, last))
	syncer := NewSyncer(client, store, NewCheckers(store, time.Hour))

	// --- Act ---
	_, err := syncer.FetchJournals(context.Background(), nil)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, last, client.journalsSince)
}

func TestBalanced_RejectsUnbalancedLedger(t *testing.T) {
	err := Balanced(map[string]any{"balanced": false, "debits": 150.0, "credits": 100.0})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of balance")
	assert.NoError(t, Balanced(map[string]any{"balanced": true}))
}

func TestCheckers_Staleness(t *testing.T) {
	// --- Arrange ---
	store := NewMemStore()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	checkers := NewCheckersWithClock(store, time.Hour, func() time.Time { return clock })
	ctx := context.Background()

	// Never synced reads as stale.
	outdated := checkers.Outdated(EndpointJournals)
	stale, err := outdated(ctx, nil)
	require.NoError(t, err)
	assert.True(t, stale)

	// Freshly synced reads as current.
	require.NoError(t, store.SetLastUpdate(ctx, EndpointJournals, clock))
	stale, err = outdated(ctx, nil)
	require.NoError(t, err)
	assert.False(t, stale)

	// Past the max age it is stale again.
	clock = clock.Add(2 * time.Hour)
	stale, err = outdated(ctx, nil)
	require.NoError(t, err)
	assert.True(t, stale)

	// A per-endpoint override wins over the default.
	checkers.SetMaxAge(EndpointJournals, 4*time.Hour)
	stale, err = outdated(ctx, nil)
	require.NoError(t, err)
	assert.False(t, stale)
}

func TestSyncCheck_EndpointErrorIsReportedNotFatal(t *testing.T) {
	// --- Arrange ---
	store := &failingStore{err: errors.New("db down")}
	checkers := NewCheckers(store, time.Hour)

	// --- Act ---
	report, err := checkers.SyncCheck(EndpointJournals)(context.Background(), nil)

	// --- Assert ---
	require.NoError(t, err)
	require.Contains(t, report.Details, EndpointJournals)
	assert.True(t, report.Details[EndpointJournals].OutOfSync)
	assert.Equal(t, "db down", report.Details[EndpointJournals].Error)
}

type failingStore struct{ err error }

func (s *failingStore) LastUpdate(context.Context, string) (time.Time, error) {
	return time.Time{}, s.err
}
func (s *failingStore) SetLastUpdate(context.Context, string, time.Time) error { return s.err }
func (s *failingStore) Endpoints(context.Context) (map[string]time.Time, error) {
	return nil, s.err
}

func TestSyncer_SelectiveRunRefreshesOnlyStaleBranch(t *testing.T) {
	// --- Arrange ---
	client := newFakeClient()
	store := NewMemStore()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	checkers := NewCheckersWithClock(store, time.Hour, now)
	syncer := NewSyncerWithClock(client, store, checkers, now)
	ctx := context.Background()

	// Metadata is fresh, journals were never synced.
	require.NoError(t, store.SetLastUpdate(ctx, EndpointAccounts, clock))
	require.NoError(t, store.SetLastUpdate(ctx, EndpointContacts, clock))

	tr, err := syncer.Tree()
	require.NoError(t, err)
	e := engine.New()
	require.NoError(t, e.AddTree(tr))

	// --- Act ---
	res, err := e.ExecuteWithSyncCheck(ctx, TreeName, syncer.SyncCheck())

	// --- Assert ---
	require.NoError(t, err)
	assert.Zero(t, client.fetchCounts["accounts"], "fresh metadata is not refetched")
	assert.Equal(t, 1, client.fetchCounts["journals"])
	assert.Equal(t, process.StatusCompleted, res.Execution.Status[ProcFetchJournals])
	assert.Equal(t, process.StatusCompleted, res.Execution.Status[ProcProcessJournals])
	assert.NotContains(t, res.Execution.Status, ProcBuildCube,
		"two hops downstream of the stale fetch, so not selected")
}

func TestModule_RegistersResolvableReferences(t *testing.T) {
	// --- Arrange ---
	client := newFakeClient()
	store := NewMemStore()
	checkers := NewCheckers(store, time.Hour)
	syncer := NewSyncer(client, store, checkers)

	// --- Act ---
	r := registry.New(NewModule(syncer))
	resolver := registry.NewResolver(r)

	// --- Assert ---
	for _, ref := range []string{
		"ledger.fetch_metadata",
		"ledger.fetch_journals",
		"ledger.process_journals",
		"ledger.build_cube",
		"ledger.validate_balances",
	} {
		_, err := resolver.Func(ref)
		assert.NoError(t, err, ref)
	}
	_, err := resolver.Validator("ledger.balanced")
	assert.NoError(t, err)
	_, err = resolver.OutdatedCheck("ledger.journals_outdated")
	assert.NoError(t, err)
	_, err = resolver.LastUpdated("ledger.journals_last_updated")
	assert.NoError(t, err)
}
