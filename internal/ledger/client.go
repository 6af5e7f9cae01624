// Package ledger supplies the accounting-domain collaborators the engine
// orchestrates: an upstream ledger client, a last-update store, staleness
// checks, a sync-status checker, and the canonical sync tree wiring them
// together.
package ledger

import (
	"context"
	"time"
)

// Endpoint names tracked by the last-update store.
const (
	EndpointAccounts = "accounts"
	EndpointContacts = "contacts"
	EndpointJournals = "journals"
)

// Account is a chart-of-accounts entry.
type Account struct {
	ID   string
	Code string
	Name string
	Type string
}

// Contact is a counterparty on ledger transactions.
type Contact struct {
	ID    string
	Name  string
	Email string
}

// JournalLine is a single debit or credit against an account.
type JournalLine struct {
	AccountCode string
	Debit       float64
	Credit      float64
}

// Journal is a posted journal entry.
type Journal struct {
	ID     string
	Number int
	Date   time.Time
	Lines  []JournalLine
}

// Client is the narrow surface of an upstream accounting ledger the sync
// tree pulls from.
type Client interface {
	Accounts(ctx context.Context) ([]Account, error)
	Contacts(ctx context.Context) ([]Contact, error)
	Journals(ctx context.Context, since time.Time) ([]Journal, error)
}
