package harness

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/state"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		n := 0
		for _, event := range e.Trace {
			if event.Type == EventInvocation {
				n++
				fmt.Fprintf(&buf, "  [%d] %s %s %v\n", n, event.Mode, event.Function, event.Args)
			}
		}
	}

	return buf.String()
}

// assertTraceContains checks if the trace contains an invocation of the
// function, with exactly the given args when any are specified.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Type != EventInvocation || event.Function != assertion.Function {
			continue
		}
		if len(assertion.Args) == 0 || slices.Equal(event.Args, assertion.Args) {
			return nil
		}
	}

	expected := assertion.Function
	if len(assertion.Args) > 0 {
		expected = fmt.Sprintf("%s with args %v", assertion.Function, assertion.Args)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the functions first appear in the given
// order. Intervening invocations are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	n := 0
	for _, event := range trace {
		if event.Type != EventInvocation {
			continue
		}
		n++
		if _, seen := positions[event.Function]; !seen {
			positions[event.Function] = n
		}
	}

	for _, fn := range assertion.Functions {
		if positions[fn] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all functions present: %v", assertion.Functions),
				Actual:   fmt.Sprintf("missing function: %s", fn),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Functions); i++ {
		prev := assertion.Functions[i-1]
		curr := assertion.Functions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("functions in order: %v", assertion.Functions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the function was invoked exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == EventInvocation && event.Function == assertion.Function {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d invocations of %s", assertion.Count, assertion.Function),
			Actual:   fmt.Sprintf("%d invocations", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks the committed value at assertion.Key. With
// Absent the key must hold nothing; otherwise the value must be a JSON
// object containing every expected field (subset semantics).
func assertFinalState(ctx context.Context, st state.Store, assertion Assertion) error {
	vv, err := st.GetState(ctx, assertion.Key)
	if err != nil {
		return fmt.Errorf("final_state: read %s: %w", assertion.Key, err)
	}

	if assertion.Absent {
		if vv != nil && len(vv.Value) > 0 {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("no value at %s", assertion.Key),
				Actual:   string(vv.Value),
			}
		}
		return nil
	}

	if vv == nil || len(vv.Value) == 0 {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("record at %s", assertion.Key),
			Actual:   "key not found",
		}
	}

	obj, err := ir.UnmarshalIRObject(vv.Value)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("JSON object at %s", assertion.Key),
			Actual:   fmt.Sprintf("%s (%v)", vv.Value, err),
		}
	}

	fields := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for _, field := range fields {
		want, err := ir.FromGo(assertion.Expect[field])
		if err != nil {
			return fmt.Errorf("final_state: expected %s: %w", field, err)
		}
		got, ok := obj[field]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q at %s", field, assertion.Key),
				Actual:   fmt.Sprintf("field missing from %s", vv.Value),
			}
		}
		if !irEqual(want, got) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %s", assertion.Key, field, mustCanonical(want)),
				Actual:   fmt.Sprintf("%s.%s = %s", assertion.Key, field, mustCanonical(got)),
			}
		}
	}
	return nil
}

// irEqual compares two values by their canonical encoding.
func irEqual(a, b ir.IRValue) bool {
	ab, err := ir.MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := ir.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

func mustCanonical(v ir.IRValue) string {
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(b)
}

// EvaluateAssertions evaluates all assertions against the result and the
// final store. Returns a slice of error messages for failed assertions.
func EvaluateAssertions(ctx context.Context, result *Result, assertions []Assertion, st state.Store) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if st == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires a store", i)
			} else {
				err = assertFinalState(ctx, st, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
