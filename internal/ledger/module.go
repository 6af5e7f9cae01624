package ledger

import (
	"github.com/acctflow/procgraph/internal/registry"
)

// Module contributes the ledger callables to a registry under "ledger.*"
// references, so saved definition files can resolve them at load time.
type Module struct {
	Syncer *Syncer
}

// NewModule bundles syncer registrations.
func NewModule(syncer *Syncer) *Module {
	return &Module{Syncer: syncer}
}

// Register implements registry.Module.
func (m *Module) Register(r *registry.Registry) {
	s := m.Syncer

	r.RegisterFunc("ledger.fetch_metadata", s.FetchMetadata)
	r.RegisterFunc("ledger.fetch_journals", s.FetchJournals)
	r.RegisterFunc("ledger.process_journals", s.ProcessJournals)
	r.RegisterFunc("ledger.build_cube", s.BuildCube)
	r.RegisterFunc("ledger.validate_balances", s.ValidateBalances)

	r.RegisterValidator("ledger.balanced", Balanced)

	r.RegisterOutdatedCheck("ledger.accounts_outdated", s.checkers.Outdated(EndpointAccounts))
	r.RegisterOutdatedCheck("ledger.contacts_outdated", s.checkers.Outdated(EndpointContacts))
	r.RegisterOutdatedCheck("ledger.journals_outdated", s.checkers.Outdated(EndpointJournals))

	r.RegisterLastUpdated("ledger.accounts_last_updated", s.checkers.LastUpdated(EndpointAccounts))
	r.RegisterLastUpdated("ledger.contacts_last_updated", s.checkers.LastUpdated(EndpointContacts))
	r.RegisterLastUpdated("ledger.journals_last_updated", s.checkers.LastUpdated(EndpointJournals))
}
