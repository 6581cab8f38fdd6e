package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardfs/internal/testutil"
	"github.com/roach88/cardfs/internal/tree"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Type: "invocation", Action: "create", Args: map[string]any{"name": "A", "parent": "root"}, Seq: 1},
		{Type: "completion", Action: "create", OutputCase: CaseSuccess, Seq: 2},
		{Type: "invocation", Action: "copy", Args: map[string]any{"ids": []any{"a"}}, Seq: 3},
		{Type: "completion", Action: "copy", OutputCase: CaseSuccess, Seq: 4},
		{Type: "invocation", Action: "paste", Args: map[string]any{"target": "root"}, Seq: 5},
		{Type: "completion", Action: "paste", OutputCase: CaseSuccess, Seq: 6},
		{Type: "invocation", Action: "create", Args: map[string]any{"name": "B"}, Seq: 7},
		{Type: "completion", Action: "create", OutputCase: CaseSuccess, Seq: 8},
	}
}

func sampleTree() *tree.Tree {
	b := tree.Default().Edit()
	b.Put(tree.NewFolder("a", "A", tree.RootID, testutil.Epoch))
	b.Put(tree.NewSet("s", "S", "a", &tree.Content{Text: "x, y", Languages: tree.DefaultLanguages()}, testutil.Epoch))
	b.Put(tree.NewSet("e", "Empty", "a", nil, testutil.Epoch))
	return b.Build()
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "create", Args: map[string]any{"name": "B"}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "copy", Args: map[string]any{"ids": []string{"a"}}}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Action: "paste"}))

	err := assertTraceContains(trace, Assertion{Action: "create", Args: map[string]any{"name": "C"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")
	assert.Contains(t, err.Error(), "[1] create")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Actions: []string{"create", "copy", "paste"}}))

	err := assertTraceOrder(trace, Assertion{Actions: []string{"paste", "copy"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paste (pos 5) should be before copy (pos 3)")

	err = assertTraceOrder(trace, Assertion{Actions: []string{"create", "move"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing action: move")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "create", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Action: "delete", Count: 0}))

	err := assertTraceCount(trace, Assertion{Action: "create", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invoked 2 times")
}

func TestAssertNode(t *testing.T) {
	tr := sampleTree()

	assert.NoError(t, assertNode(tr, Assertion{ID: "s", Expect: map[string]any{
		"name": "S", "parent": "a", "kind": "set", "permission": "private", "text": "x, y",
	}}))
	assert.NoError(t, assertNode(tr, Assertion{ID: "e", Expect: map[string]any{"text": ""}}))

	err := assertNode(tr, Assertion{ID: "s", Expect: map[string]any{"name": "T"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `s.name = "T"`)

	err = assertNode(tr, Assertion{ID: "ghost"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	err = assertNode(tr, Assertion{ID: "s", Expect: map[string]any{"colour": "red"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown field "colour"`)
}

func TestAssertChildren(t *testing.T) {
	tr := sampleTree()

	assert.NoError(t, assertChildren(tr, Assertion{ID: "a", Names: []string{"Empty", "S"}}))
	assert.NoError(t, assertChildren(tr, Assertion{ID: "s"}))

	err := assertChildren(tr, Assertion{ID: "a", Names: []string{"S", "Empty"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "children of a")
}

func TestAssertMissing(t *testing.T) {
	tr := sampleTree()

	assert.NoError(t, assertMissing(tr, Assertion{IDs: []string{"x", "y"}}))

	err := assertMissing(tr, Assertion{IDs: []string{"x", "s"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[s] present")
}

func TestAssertAcyclic(t *testing.T) {
	assert.NoError(t, assertAcyclic(sampleTree()))
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{Trace: sampleTrace(), Tree: sampleTree()}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Action: "create", Count: 2},
		{Type: AssertTreeSize, Count: 4},
		{Type: AssertTreeSize, Count: 9},
		{Type: AssertChildren, ID: tree.RootID, Names: []string{"A"}},
		{Type: AssertAcyclic},
	})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "9 nodes")
}

func TestEvaluateAssertions_NoTree(t *testing.T) {
	errs := EvaluateAssertions(&Result{}, []Assertion{{Type: AssertTreeSize, Count: 1}})
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "no final tree")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual([]any{"a"}, []string{"a"}))
	assert.True(t, valuesEqual([]any{}, []any{}))
	assert.False(t, valuesEqual([]any{"a"}, []any{"b"}))
	assert.True(t, valuesEqual(nil, nil))
}
