package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tdrive/internal/config"
	"github.com/roach88/tdrive/internal/fault"
)

// Step modes.
const (
	ModeSubmit   = "submit"
	ModeEvaluate = "evaluate"
)

// Scenario defines a sequence of transactions with expectations and
// assertions over the resulting trace and world state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Backend selects the store backend. Empty means leveldb.
	Backend string `yaml:"backend,omitempty"`

	// TxPrefix prefixes the deterministic transaction ids. Empty means "tx".
	TxPrefix string `yaml:"tx_prefix,omitempty"`

	// Setup transactions run before the flow and must all succeed.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow contains the transactions under test.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one transaction.
type Step struct {
	// Invoke is the function name.
	Invoke string `yaml:"invoke"`

	// Args are the positional string arguments.
	Args []string `yaml:"args"`

	// Mode is submit (the default) or evaluate.
	Mode string `yaml:"mode,omitempty"`

	// Expect specifies the expected outcome. If nil, any outcome is
	// accepted.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Outcome is "ok" or a fault code such as NOT_FOUND.
	Outcome string `yaml:"outcome"`

	// Payload, if set, must equal the response payload exactly.
	Payload *string `yaml:"payload,omitempty"`

	// Error, if set, must equal the failure message exactly.
	Error *string `yaml:"error,omitempty"`
}

// Assertion validates trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Function is used by trace_contains and trace_count.
	Function string `yaml:"function,omitempty"`

	// Args, if set, must equal the invocation arguments (trace_contains).
	Args []string `yaml:"args,omitempty"`

	// Functions is the expected order (trace_order).
	Functions []string `yaml:"functions,omitempty"`

	// Count is the expected number of invocations (trace_count).
	Count int `yaml:"count,omitempty"`

	// Key is the world-state key (final_state).
	Key string `yaml:"key,omitempty"`

	// Expect contains expected record fields (final_state). Subset match.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Absent asserts that Key holds no value (final_state).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

var knownOutcomes = map[string]bool{
	OutcomeOK:                         true,
	OutcomeError:                      true,
	string(fault.CodeNotFound):        true,
	string(fault.CodeAlreadyExists):   true,
	string(fault.CodeUnauthorized):    true,
	string(fault.CodeCorrupt):         true,
	string(fault.CodeInvalidArgument): true,
	string(fault.CodeUnknownFunction): true,
	string(fault.CodeConflict):        true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	switch s.Backend {
	case "", config.BackendLevelDB, config.BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: setup steps must succeed and take no expect clause", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step) error {
	if step.Invoke == "" {
		return fmt.Errorf("%s: invoke is required", where)
	}
	switch step.Mode {
	case "", ModeSubmit, ModeEvaluate:
	default:
		return fmt.Errorf("%s: mode must be %q or %q", where, ModeSubmit, ModeEvaluate)
	}
	if step.Expect != nil {
		if step.Expect.Outcome == "" {
			return fmt.Errorf("%s.expect: outcome is required", where)
		}
		if !knownOutcomes[step.Expect.Outcome] {
			return fmt.Errorf("%s.expect: unknown outcome %q", where, step.Expect.Outcome)
		}
		if step.Expect.Outcome == OutcomeOK && step.Expect.Error != nil {
			return fmt.Errorf("%s.expect: error is only valid for failing outcomes", where)
		}
		if step.Expect.Outcome != OutcomeOK && step.Expect.Payload != nil {
			return fmt.Errorf("%s.expect: payload is only valid for outcome ok", where)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Functions) == 0 {
			return fmt.Errorf("assertions[%d]: functions list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Function == "" {
			return fmt.Errorf("assertions[%d]: function is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for final_state", index)
		}
		if a.Absent == (len(a.Expect) > 0) {
			return fmt.Errorf("assertions[%d]: final_state needs exactly one of expect or absent", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func (s Step) mode() string {
	if s.Mode == "" {
		return ModeSubmit
	}
	return s.Mode
}
