package dag

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSort_LinearChain(t *testing.T) {
	// --- Arrange ---
	nodes := []string{"step1", "step2", "step3"}
	deps := map[string][]string{
		"step2": {"step1"},
		"step3": {"step2"},
	}

	// --- Act ---
	order, err := Sort(nodes, deps)

	// --- Assert ---
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"step1", "step2", "step3"}, order); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestSort_EveryEdgeRespectsOrder(t *testing.T) {
	// --- Arrange ---
	nodes := []string{"a", "b", "c", "d", "e"}
	deps := map[string][]string{
		"c": {"a", "b"},
		"d": {"c"},
		"e": {"a", "d"},
	}

	// --- Act ---
	order, err := Sort(nodes, deps)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, order, len(nodes))
	index := make(map[string]int, len(order))
	for i, name := range order {
		index[name] = i
	}
	for name, nodeDeps := range deps {
		for _, dep := range nodeDeps {
			assert.Less(t, index[dep], index[name],
				"dependency %q must precede %q", dep, name)
		}
	}
}

func TestSort_Deterministic(t *testing.T) {
	// --- Arrange ---
	nodes := []string{"z", "m", "a"}
	deps := map[string][]string{}

	// --- Act / Assert ---
	// Independent nodes come out in definition order, every time.
	for i := 0; i < 10; i++ {
		order, err := Sort(nodes, deps)
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "m", "a"}, order)
	}
}

func TestSort_UnknownDependency(t *testing.T) {
	// --- Arrange ---
	nodes := []string{"a"}
	deps := map[string][]string{"a": {"ghost"}}

	// --- Act ---
	_, err := Sort(nodes, deps)

	// --- Assert ---
	var unknownErr *UnknownDependencyError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "a", unknownErr.Node)
	assert.Equal(t, "ghost", unknownErr.Dependency)
}

func TestSort_Cycle(t *testing.T) {
	// --- Arrange ---
	nodes := []string{"a", "b"}
	deps := map[string][]string{
		"a": {"b"},
		"b": {"a"},
	}

	// --- Act ---
	_, err := Sort(nodes, deps)

	// --- Assert ---
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.Remaining)
}

func TestSort_CycleReportsOnlyCyclicSet(t *testing.T) {
	// --- Arrange ---
	// "root" is acyclic; the cycle is b <-> c.
	nodes := []string{"root", "b", "c"}
	deps := map[string][]string{
		"b": {"root", "c"},
		"c": {"b"},
	}

	// --- Act ---
	_, err := Sort(nodes, deps)

	// --- Assert ---
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.ElementsMatch(t, []string{"b", "c"}, cycleErr.Remaining)
}
