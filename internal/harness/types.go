package harness

// Trace event types.
const (
	EventInvocation = "invocation"
	EventCompletion = "completion"
)

// OutcomeOK is the outcome of a transaction that returned a payload.
// Failed transactions report their fault code, or OutcomeError when the
// failure carries none.
const (
	OutcomeOK    = "ok"
	OutcomeError = "ERROR"
)

// TraceEvent is one invocation or completion in the trace.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// Invocation fields.
	Function string   `json:"function,omitempty"`
	Args     []string `json:"args,omitempty"`
	Mode     string   `json:"mode,omitempty"`

	// Completion fields. TxID, ResponseHash and Version are only known
	// for transactions that succeeded; Version only when they committed.
	Outcome      string `json:"outcome,omitempty"`
	Payload      string `json:"payload,omitempty"`
	Error        string `json:"error,omitempty"`
	TxID         string `json:"tx_id,omitempty"`
	ResponseHash string `json:"response_hash,omitempty"`
	Version      uint64 `json:"version,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains all invocations and completions in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Height and StateDigest describe the final world state.
	Height      uint64 `json:"height"`
	StateDigest string `json:"state_digest"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddInvocationTrace adds an invocation to the trace.
func (r *Result) AddInvocationTrace(function string, args []string, mode string, seq int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:     EventInvocation,
		Function: function,
		Args:     args,
		Mode:     mode,
		Seq:      seq,
	})
}

// AddCompletionTrace adds a completion to the trace.
func (r *Result) AddCompletionTrace(ev TraceEvent) {
	ev.Type = EventCompletion
	r.Trace = append(r.Trace, ev)
}

// Invocations returns the invocation events in order.
func (r *Result) Invocations() []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventInvocation {
			out = append(out, ev)
		}
	}
	return out
}
