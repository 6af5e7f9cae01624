package ledger

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/acctflow/procgraph/internal/engine"
	"github.com/acctflow/procgraph/internal/tree"
)

// Process names in the canonical sync tree.
const (
	ProcFetchMetadata    = "fetch_metadata"
	ProcFetchJournals    = "fetch_journals"
	ProcProcessJournals  = "process_journals"
	ProcBuildCube        = "build_cube"
	ProcValidateBalances = "validate_balances"
)

// TreeName is the canonical sync tree's name.
const TreeName = "ledger_sync"

// Balance is the per-account debit/credit aggregate produced by
// process_journals.
type Balance struct {
	Debit  float64
	Credit float64
}

// Net is the account's debit-normal net movement.
func (b Balance) Net() float64 { return b.Debit - b.Credit }

// Syncer owns the process functions of the canonical sync tree. Fetch
// processes record their endpoint's last update on success, which is what
// the staleness checks and the sync checker read back.
type Syncer struct {
	client   Client
	store    UpdateStore
	checkers *Checkers
	now      func() time.Time
}

// NewSyncer wires a syncer over the upstream client and the update store.
func NewSyncer(client Client, store UpdateStore, checkers *Checkers) *Syncer {
	return &Syncer{client: client, store: store, checkers: checkers, now: time.Now}
}

// NewSyncerWithClock is NewSyncer with an injectable clock.
func NewSyncerWithClock(client Client, store UpdateStore, checkers *Checkers, now func() time.Time) *Syncer {
	s := NewSyncer(client, store, checkers)
	s.now = now
	return s
}

// FetchMetadata pulls the chart of accounts and the contact list.
func (s *Syncer) FetchMetadata(ctx context.Context, _ map[string]any) (any, error) {
	accounts, err := s.client.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}
	contacts, err := s.client.Contacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch contacts: %w", err)
	}
	at := s.now()
	if err := s.store.SetLastUpdate(ctx, EndpointAccounts, at); err != nil {
		return nil, err
	}
	if err := s.store.SetLastUpdate(ctx, EndpointContacts, at); err != nil {
		return nil, err
	}
	return map[string]any{"accounts": accounts, "contacts": contacts}, nil
}

// FetchJournals pulls journals posted since the last successful sync.
func (s *Syncer) FetchJournals(ctx context.Context, _ map[string]any) (any, error) {
	since, err := s.store.LastUpdate(ctx, EndpointJournals)
	if err != nil {
		return nil, err
	}
	journals, err := s.client.Journals(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journals: %w", err)
	}
	if err := s.store.SetLastUpdate(ctx, EndpointJournals, s.now()); err != nil {
		return nil, err
	}
	return map[string]any{"journals": journals, "count": len(journals)}, nil
}

// ProcessJournals aggregates journal lines into per-account balances.
func (s *Syncer) ProcessJournals(_ context.Context, args map[string]any) (any, error) {
	fetched, ok := args[ProcFetchJournals].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing '%s' result", ProcFetchJournals)
	}
	journals, _ := fetched["journals"].([]Journal)

	balances := make(map[string]Balance)
	var debits, credits float64
	for _, j := range journals {
		for _, line := range j.Lines {
			b := balances[line.AccountCode]
			b.Debit += line.Debit
			b.Credit += line.Credit
			balances[line.AccountCode] = b
			debits += line.Debit
			credits += line.Credit
		}
	}
	return map[string]any{
		"balances": balances,
		"debits":   debits,
		"credits":  credits,
	}, nil
}

// BuildCube rolls per-account balances up by account type.
func (s *Syncer) BuildCube(_ context.Context, args map[string]any) (any, error) {
	processed, ok := args[ProcProcessJournals].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing '%s' result", ProcProcessJournals)
	}
	balances, _ := processed["balances"].(map[string]Balance)

	typeByCode := make(map[string]string)
	if meta, ok := args[ProcFetchMetadata].(map[string]any); ok {
		if accounts, ok := meta["accounts"].([]Account); ok {
			for _, a := range accounts {
				typeByCode[a.Code] = a.Type
			}
		}
	}

	cube := make(map[string]float64)
	for code, b := range balances {
		accountType := typeByCode[code]
		if accountType == "" {
			accountType = "UNCLASSIFIED"
		}
		cube[accountType] += b.Net()
	}
	return map[string]any{"cube": cube}, nil
}

// balanceTolerance absorbs float accumulation error when comparing totals.
const balanceTolerance = 0.005

// ValidateBalances verifies the processed totals actually balance.
func (s *Syncer) ValidateBalances(_ context.Context, args map[string]any) (any, error) {
	processed, ok := args[ProcProcessJournals].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("missing '%s' result", ProcProcessJournals)
	}
	debits, _ := processed["debits"].(float64)
	credits, _ := processed["credits"].(float64)
	return map[string]any{
		"debits":   debits,
		"credits":  credits,
		"balanced": math.Abs(debits-credits) <= balanceTolerance,
	}, nil
}

// Balanced rejects a validation result whose totals do not balance.
func Balanced(result any) error {
	m, ok := result.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected validation result %T", result)
	}
	if balanced, _ := m["balanced"].(bool); !balanced {
		debits, _ := m["debits"].(float64)
		credits, _ := m["credits"].(float64)
		return fmt.Errorf("ledger out of balance: debits %.2f, credits %.2f", debits, credits)
	}
	return nil
}

// Tree assembles the canonical sync tree. Fetch processes carry staleness
// checks so an already-fresh endpoint is skipped; downstream processing
// always depends on the fetches.
func (s *Syncer) Tree() (*tree.Tree, error) {
	b := tree.NewBuilder(TreeName)
	b.Add(ProcFetchMetadata, s.FetchMetadata,
		tree.WithCache("ledger_metadata", time.Hour),
		tree.WithRefs("ledger.fetch_metadata", "", ""))
	b.Add(ProcFetchJournals, s.FetchJournals,
		tree.WithDependencies(ProcFetchMetadata),
		tree.WithRefs("ledger.fetch_journals", "", ""))
	b.Add(ProcProcessJournals, s.ProcessJournals,
		tree.WithDependencies(ProcFetchJournals),
		tree.WithRefs("ledger.process_journals", "", ""))
	b.Add(ProcBuildCube, s.BuildCube,
		tree.WithDependencies(ProcFetchMetadata, ProcProcessJournals),
		tree.WithRefs("ledger.build_cube", "", ""))
	b.Add(ProcValidateBalances, s.ValidateBalances,
		tree.WithDependencies(ProcProcessJournals),
		tree.WithValidation(Balanced),
		tree.WithRefs("ledger.validate_balances", "ledger.balanced", ""))
	return b.Build()
}

// SyncCheck reports staleness keyed by the sync tree's process names, so a
// selective run re-executes exactly the stale fetches and their direct
// dependents.
func (s *Syncer) SyncCheck() engine.SyncCheckFunc {
	return func(ctx context.Context, _ map[string]any) (*engine.SyncReport, error) {
		report := &engine.SyncReport{Details: make(map[string]engine.SyncDetail, 2)}

		mark := func(proc string, stale bool, err error) {
			detail := engine.SyncDetail{OutOfSync: stale}
			if err != nil {
				detail.OutOfSync = true
				detail.Error = err.Error()
			}
			report.Details[proc] = detail
			if detail.OutOfSync {
				report.OutOfSync = append(report.OutOfSync, proc)
			}
		}

		accountsStale, err := s.checkers.stale(ctx, EndpointAccounts)
		if err == nil {
			var contactsStale bool
			contactsStale, err = s.checkers.stale(ctx, EndpointContacts)
			accountsStale = accountsStale || contactsStale
		}
		mark(ProcFetchMetadata, accountsStale, err)

		journalsStale, err := s.checkers.stale(ctx, EndpointJournals)
		mark(ProcFetchJournals, journalsStale, err)

		return report, nil
	}
}
