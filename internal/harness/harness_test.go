package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tdrive/internal/testutil"
)

func ptr(s string) *string { return &s }

func TestRun_MinimalScenario(t *testing.T) {
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Flow: []Step{
			{Invoke: "CreateAsset", Args: []string{"asset1", "blue", "5", "Tomoko", "300"}},
		},
		Assertions: []Assertion{
			{Type: AssertTraceContains, Function: "CreateAsset"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.True(t, result.Pass)
	assert.Empty(t, result.Errors)

	require.Len(t, result.Trace, 2)
	assert.Equal(t, EventInvocation, result.Trace[0].Type)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, ModeSubmit, result.Trace[0].Mode)

	done := result.Trace[1]
	assert.Equal(t, EventCompletion, done.Type)
	assert.Equal(t, int64(2), done.Seq)
	assert.Equal(t, OutcomeOK, done.Outcome)
	assert.Equal(t, "tx-0001", done.TxID)
	assert.Equal(t, uint64(1), done.Version)
	assert.Len(t, done.ResponseHash, 64)

	assert.Equal(t, uint64(1), result.Height)
	assert.Len(t, result.StateDigest, 64)
}

func TestRun_ExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:        "mismatch",
		Description: "Expectations that do not hold",
		Flow: []Step{
			{
				Invoke: "ReadAsset",
				Mode:   ModeEvaluate,
				Args:   []string{"ghost"},
				Expect: &ExpectClause{Outcome: OutcomeOK},
			},
			{
				Invoke: "AssetExists",
				Mode:   ModeEvaluate,
				Args:   []string{"ghost"},
				Expect: &ExpectClause{Outcome: OutcomeOK, Payload: ptr("true")},
			},
			{
				Invoke: "DeleteAsset",
				Args:   []string{"ghost"},
				Expect: &ExpectClause{Outcome: "NOT_FOUND", Error: ptr("gone")},
			},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Function: "ReadAsset", Count: 1},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "expected outcome ok, got NOT_FOUND (The asset ghost does not exist)")
	assert.Contains(t, result.Errors[1], `expected payload true, got false`)
	assert.Contains(t, result.Errors[2], `expected error "gone", got "The asset ghost does not exist"`)
}

func TestRun_SetupFailureAborts(t *testing.T) {
	scenario := &Scenario{
		Name:        "bad_setup",
		Description: "Setup step that fails",
		Setup: []Step{
			{Invoke: "DeleteAsset", Args: []string{"ghost"}},
		},
		Flow: []Step{
			{Invoke: "GetAllAssets"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Function: "GetAllAssets", Count: 1},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "setup step 0 (DeleteAsset) failed")
}

func TestRun_EvaluateLeavesNoState(t *testing.T) {
	scenario := &Scenario{
		Name:        "evaluate_only",
		Description: "Evaluated writes are discarded",
		Flow: []Step{
			{Invoke: "CreateAsset", Mode: ModeEvaluate, Args: []string{"asset1", "blue", "5", "Tomoko", "300"}},
		},
		Assertions: []Assertion{
			{Type: AssertFinalState, Key: "asset1", Absent: true},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
	assert.Equal(t, uint64(0), result.Height)
	assert.Zero(t, result.Trace[1].Version)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/walkthrough.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRun_BackendsAgree(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/walkthrough.yaml")
	require.NoError(t, err)

	var snapshots [][]byte
	for _, backend := range testutil.Backends {
		result, err := Run(scenario, WithBackend(backend))
		require.NoError(t, err, backend)
		assert.True(t, result.Pass, "%s: %v", backend, result.Errors)

		data, err := Snapshot(scenario, result)
		require.NoError(t, err)
		snapshots = append(snapshots, data)
	}

	for _, s := range snapshots[1:] {
		assert.Equal(t, string(snapshots[0]), string(s))
	}
}
