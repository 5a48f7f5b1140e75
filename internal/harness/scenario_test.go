package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: test_scenario
description: "Test scenario for validation"
backend: sqlite
tx_prefix: t
setup:
  - invoke: CreateAsset
    args: ["asset1", "blue", "5", "Tomoko", "300"]
flow:
  - invoke: ReadAsset
    mode: evaluate
    args: ["asset1"]
    expect:
      outcome: ok
      payload: '{"ID":"asset1"}'
assertions:
  - type: trace_contains
    function: ReadAsset
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "sqlite", scenario.Backend)
	assert.Equal(t, "t", scenario.TxPrefix)
	require.Len(t, scenario.Setup, 1)
	assert.Equal(t, ModeSubmit, scenario.Setup[0].mode())
	require.Len(t, scenario.Flow, 1)
	assert.Equal(t, ModeEvaluate, scenario.Flow[0].mode())
	assert.Equal(t, []string{"asset1"}, scenario.Flow[0].Args)
	require.NotNil(t, scenario.Flow[0].Expect.Payload)
	assert.Equal(t, `{"ID":"asset1"}`, *scenario.Flow[0].Expect.Payload)
	assert.Nil(t, scenario.Flow[0].Expect.Error)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_RepositoryScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		_, err := LoadScenario(f)
		assert.NoError(t, err, f)
	}
}

func TestParseScenario_Invalid(t *testing.T) {
	const flow = `
flow:
  - invoke: AssetExists
    args: ["a"]
`
	const assertions = `
assertions:
  - type: trace_count
    function: AssetExists
    count: 1
`

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"missing name", `description: d` + flow + assertions, "name is required"},
		{"missing description", `name: n` + flow + assertions, "description is required"},
		{"unknown backend", "name: n\ndescription: d\nbackend: badger" + flow + assertions, `unknown backend "badger"`},
		{"missing flow", "name: n\ndescription: d" + assertions, "flow list is required"},
		{"missing assertions", "name: n\ndescription: d" + flow, "assertions list is required"},
		{"unknown field", "name: n\ndescription: d\nflow_token: x" + flow + assertions, "failed to parse YAML"},
		{"missing invoke", "name: n\ndescription: d\nflow:\n  - args: []" + assertions, "flow[0]: invoke is required"},
		{"bad mode", "name: n\ndescription: d\nflow:\n  - invoke: X\n    mode: endorse" + assertions, "flow[0]: mode must be"},
		{"unknown outcome", "name: n\ndescription: d\nflow:\n  - invoke: X\n    expect:\n      outcome: MAYBE" + assertions, `unknown outcome "MAYBE"`},
		{"missing outcome", "name: n\ndescription: d\nflow:\n  - invoke: X\n    expect:\n      payload: x" + assertions, "outcome is required"},
		{"payload on failure", "name: n\ndescription: d\nflow:\n  - invoke: X\n    expect:\n      outcome: NOT_FOUND\n      payload: x" + assertions, "payload is only valid"},
		{"error on success", "name: n\ndescription: d\nflow:\n  - invoke: X\n    expect:\n      outcome: ok\n      error: x" + assertions, "error is only valid"},
		{"setup with expect", "name: n\ndescription: d\nsetup:\n  - invoke: X\n    expect:\n      outcome: ok" + flow + assertions, "setup steps must succeed"},
		{"assertion without type", "name: n\ndescription: d" + flow + "\nassertions:\n  - function: X", "type is required"},
		{"unknown assertion", "name: n\ndescription: d" + flow + "\nassertions:\n  - type: eventually", `unknown assertion type "eventually"`},
		{"trace_contains without function", "name: n\ndescription: d" + flow + "\nassertions:\n  - type: trace_contains", "function is required for trace_contains"},
		{"trace_order without functions", "name: n\ndescription: d" + flow + "\nassertions:\n  - type: trace_order", "functions list is required"},
		{"negative count", "name: n\ndescription: d" + flow + "\nassertions:\n  - type: trace_count\n    function: X\n    count: -1", "count must be non-negative"},
		{"final_state without key", "name: n\ndescription: d" + flow + "\nassertions:\n  - type: final_state\n    absent: true", "key is required"},
		{"final_state with both", "name: n\ndescription: d" + flow + "\nassertions:\n  - type: final_state\n    key: k\n    absent: true\n    expect: {a: b}", "exactly one of expect or absent"},
		{"final_state with neither", "name: n\ndescription: d" + flow + "\nassertions:\n  - type: final_state\n    key: k", "exactly one of expect or absent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
