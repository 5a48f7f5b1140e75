package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tdrive/internal/ir"
)

// GoldenDir is where scenario golden files live, relative to the
// scenarios directory.
const GoldenDir = "golden"

// Snapshot renders the scenario's trace and final world state as
// canonical JSON. The backend is deliberately absent: every backend must
// produce the same snapshot.
func Snapshot(scenario *Scenario, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		trace[i] = eventMap(ev)
	}

	snapshot := map[string]any{
		"scenario_name": scenario.Name,
		"trace":         trace,
		"height":        int64(result.Height),
		"state_digest":  result.StateDigest,
	}
	if scenario.TxPrefix != "" {
		snapshot["tx_prefix"] = scenario.TxPrefix
	}
	return ir.MarshalCanonical(snapshot)
}

func eventMap(ev TraceEvent) map[string]any {
	m := map[string]any{
		"type": ev.Type,
		"seq":  ev.Seq,
	}
	if ev.Function != "" {
		m["function"] = ev.Function
	}
	if ev.Mode != "" {
		m["mode"] = ev.Mode
	}
	if len(ev.Args) > 0 {
		args := make([]any, len(ev.Args))
		for i, a := range ev.Args {
			args[i] = a
		}
		m["args"] = args
	}
	if ev.Outcome != "" {
		m["outcome"] = ev.Outcome
	}
	if ev.Payload != "" {
		m["payload"] = ev.Payload
	}
	if ev.Error != "" {
		m["error"] = ev.Error
	}
	if ev.TxID != "" {
		m["tx_id"] = ev.TxID
	}
	if ev.ResponseHash != "" {
		m["response_hash"] = ev.ResponseHash
	}
	if ev.Version != 0 {
		m["version"] = int64(ev.Version)
	}
	return m
}

// RunWithGolden executes a scenario and compares its snapshot against
// {fixtureDir}/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails; a snapshot mismatch fails t.
func RunWithGolden(t *testing.T, fixtureDir string, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, fixtureDir, scenario, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, fixtureDir string, scenario *Scenario, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(fixtureDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
	return nil
}
