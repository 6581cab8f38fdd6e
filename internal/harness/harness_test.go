package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cardfs/internal/testutil"
)

func TestRun_Walkthrough(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/walkthrough.yaml")
	require.NoError(t, err)

	result, err := RunWithLogger(s, testutil.Logger(t))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Trace, 20)
}

func TestRun_MoveRules(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/move_rules.yaml")
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	n, ok := result.Tree.Get("s")
	require.True(t, ok)
	c, ok := n.Content()
	require.True(t, ok)
	assert.Equal(t, "es-ES", c.Languages.Term)
	assert.Equal(t, "en-US", c.Languages.Definition)
}

func TestRun_TraceShape(t *testing.T) {
	s := &Scenario{
		Name:        "trace_shape",
		Description: "setup and flow are both traced",
		IDs:         []string{"x"},
		Setup: []FlowStep{
			{Invoke: ActionCreate, Args: map[string]any{"kind": "folder", "name": "X"}},
		},
		Flow: []FlowStep{
			{Invoke: ActionRename, Args: map[string]any{"id": "x", "name": "Y"}},
		},
		Assertions: []Assertion{{Type: AssertAcyclic}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass)
	require.Len(t, result.Trace, 4)

	assert.Equal(t, "invocation", result.Trace[0].Type)
	assert.Equal(t, ActionCreate, result.Trace[0].Action)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "completion", result.Trace[1].Type)
	assert.Equal(t, CaseSuccess, result.Trace[1].OutputCase)
	assert.Equal(t, map[string]any{"id": "x"}, result.Trace[1].Result)

	assert.Equal(t, ActionRename, result.Trace[2].Action)
	assert.Equal(t, int64(4), result.Trace[3].Seq)
}

func TestRun_IDsFallBackToSequence(t *testing.T) {
	s := &Scenario{
		Name:        "ids",
		Description: "fixed ids then a sequence",
		IDs:         []string{"first"},
		Flow: []FlowStep{
			{Invoke: ActionCreate, Args: map[string]any{"kind": "folder", "name": "A"}, Expect: &ExpectClause{Case: CaseSuccess, Result: map[string]any{"id": "first"}}},
			{Invoke: ActionCreate, Args: map[string]any{"kind": "folder", "name": "B"}, Expect: &ExpectClause{Case: CaseSuccess, Result: map[string]any{"id": "n-1"}}},
		},
		Assertions: []Assertion{{Type: AssertTreeSize, Count: 3}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	s := &Scenario{
		Name:        "mismatch",
		Description: "wrong expectations are reported",
		Flow: []FlowStep{
			{Invoke: ActionDelete, Args: map[string]any{"ids": []any{"root"}}, Expect: &ExpectClause{Case: CaseSuccess}},
			{Invoke: ActionCreate, Args: map[string]any{"kind": "set", "name": "S"}, Expect: &ExpectClause{Case: CaseSuccess, Result: map[string]any{"id": "other"}}},
			{Invoke: ActionCreate, Args: map[string]any{"kind": "set", "name": "T"}, Expect: &ExpectClause{Case: CaseSuccess, Result: map[string]any{"nope": 1}}},
		},
		Assertions: []Assertion{{Type: AssertTreeSize, Count: 3}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected case Success, got Unchanged")
	assert.Contains(t, result.Errors[1], `result field "id": expected other, got n-1`)
	assert.Contains(t, result.Errors[2], `result field "nope" missing`)
}

func TestRun_RejectedSetupFails(t *testing.T) {
	s := &Scenario{
		Name:        "bad_setup",
		Description: "setup must not be rejected",
		Setup: []FlowStep{
			{Invoke: ActionCreate, Args: map[string]any{"kind": "set", "name": "S", "parent": "nowhere"}},
		},
		Flow:       []FlowStep{{Invoke: ActionPaste, Args: map[string]any{}}},
		Assertions: []Assertion{{Type: AssertAcyclic}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0: create was rejected")
}

func TestRun_RejectedCarriesError(t *testing.T) {
	s := &Scenario{
		Name:        "rejected",
		Description: "rejections record the engine error",
		Flow: []FlowStep{
			{Invoke: ActionCreate, Args: map[string]any{"kind": "folder", "name": "X", "parent": "ghost"}, Expect: &ExpectClause{Case: CaseRejected}},
		},
		Assertions: []Assertion{{Type: AssertTreeSize, Count: 1}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "create ghost: parent is not an existing folder", result.Trace[1].Result["error"])
}

func TestStrs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, strs(map[string]any{"ids": []any{"a", "b"}}, "ids"))
	assert.Equal(t, []string{"a"}, strs(map[string]any{"ids": "a"}, "ids"))
	assert.Nil(t, strs(map[string]any{}, "ids"))
}
