package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_Walkthrough(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/walkthrough.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/move_rules.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), "scenario: move_rules\n")
	assert.Contains(t, string(a), "Rejected")
}

func TestSnapshot_WithoutTree(t *testing.T) {
	r := NewResult()
	r.AddInvocationTrace("paste", map[string]any{}, 1)
	r.AddCompletionTrace("paste", CaseUnchanged, nil, 2)

	data, err := Snapshot("bare", r)
	require.NoError(t, err)
	assert.Equal(t, "scenario: bare\n\ntrace:\n  1 paste {}\n  2   -> Unchanged\n", string(data))
}
