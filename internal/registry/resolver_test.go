package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acctflow/procgraph/internal/process"
)

func stub(ctx context.Context, args map[string]any) (any, error) { return "stub", nil }

func TestResolver_FullReference(t *testing.T) {
	r := New()
	r.RegisterFunc("ledger.FetchJournals", stub)
	res := NewResolver(r)

	fn, err := res.Func("ledger.FetchJournals")

	require.NoError(t, err)
	got, err := fn(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", got)
}

func TestResolver_BareSymbolFallback(t *testing.T) {
	// Registered under the bare symbol, referenced with a module prefix.
	r := New()
	r.RegisterFunc("FetchJournals", stub)
	res := NewResolver(r)

	_, err := res.Func("ledger.FetchJournals")

	require.NoError(t, err)
}

func TestResolver_FallbackChain(t *testing.T) {
	r := New()
	res := NewResolver(r, func(module, symbol string) (any, bool) {
		if module == "plugins" && symbol == "Extra" {
			return process.Func(stub), true
		}
		return nil, false
	})

	_, err := res.Func("plugins.Extra")

	require.NoError(t, err)
}

func TestResolver_UnresolvedIsTypedError(t *testing.T) {
	res := NewResolver(New())

	_, err := res.Func("ghost.Missing")

	var resErr *FunctionResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "ghost.Missing", resErr.Ref)
	assert.Equal(t, "function", resErr.Kind)
}

func TestResolver_ValidatorAndCheck(t *testing.T) {
	r := New()
	r.RegisterValidator("ledger.ValidateBalances", func(result any) error { return nil })
	r.RegisterOutdatedCheck("ledger.JournalsOutdated", func(ctx context.Context, args map[string]any) (bool, error) {
		return true, nil
	})
	res := NewResolver(r)

	_, err := res.Validator("ledger.ValidateBalances")
	require.NoError(t, err)

	_, err = res.OutdatedCheck("ledger.JournalsOutdated")
	require.NoError(t, err)

	_, err = res.Validator("ledger.Missing")
	var resErr *FunctionResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, "validator", resErr.Kind)
}

func TestResolver_Predicate(t *testing.T) {
	r := New()
	r.RegisterPredicate("ledger.HasPendingReports", func(ctx context.Context, args map[string]any) (bool, error) {
		return false, nil
	})
	res := NewResolver(r)

	_, err := res.Predicate("ledger.HasPendingReports")
	require.NoError(t, err)
}

func TestRegistry_DuplicatePanics(t *testing.T) {
	r := New()
	r.RegisterFunc("f", stub)

	assert.Panics(t, func() { r.RegisterFunc("f", stub) })
}

type testModule struct{}

func (testModule) Register(r *Registry) {
	r.RegisterFunc("mod.Fn", stub)
}

func TestRegistry_ModuleRegistration(t *testing.T) {
	r := New(testModule{})

	_, err := NewResolver(r).Func("mod.Fn")

	require.NoError(t, err)
}
