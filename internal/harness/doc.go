// Package harness runs t-drive transaction scenarios end to end.
//
// A scenario is a YAML list of transactions. The harness executes each one
// through the real runtime and router against a fresh in-memory store,
// checks the declared expectations, evaluates assertions over the trace
// and the final world state, and can compare the whole trace against a
// golden file.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	backend: leveldb            # or sqlite; optional
//	tx_prefix: walkthrough      # transaction id prefix; optional
//	setup:
//	  - invoke: CreateUser
//	    args: ["user_a@x.com", "a@x.com", "pw", "a"]
//	flow:
//	  - invoke: FindUser
//	    mode: evaluate
//	    args: ["a@x.com", "pw"]
//	    expect:
//	      outcome: ok
//	      payload: '{"DocType":"user",...}'
//	assertions:
//	  - type: trace_contains
//	    function: FindUser
//	  - type: final_state
//	    key: user_a@x.com
//	    expect: { Name: "a" }
//
// # Assertion Types
//
//   - trace_contains: a transaction with the function (and args, if given) ran
//   - trace_order: functions first ran in the given order
//   - trace_count: a function ran exactly N times
//   - final_state: the record at key has the given fields, or is absent
//
// # Deterministic Testing
//
// Transaction ids come from testutil.SequentialTxIDs and trace sequence
// numbers from a fresh shim.Clock per run, so a scenario produces a
// byte-identical trace on every run and on every backend. Each run also
// journals its commits and replays them on a second store; a replay that
// diverges fails the run.
package harness
