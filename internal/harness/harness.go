package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/tdrive/internal/chaincode"
	"github.com/roach88/tdrive/internal/config"
	"github.com/roach88/tdrive/internal/fault"
	"github.com/roach88/tdrive/internal/journal"
	"github.com/roach88/tdrive/internal/shim"
	"github.com/roach88/tdrive/internal/state"
	"github.com/roach88/tdrive/internal/testutil"
)

// Harness executes scenario steps through a runtime.
type Harness struct {
	runtime *shim.Runtime
	clock   *shim.Clock
	logger  *slog.Logger
}

type runConfig struct {
	backend string
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

// WithBackend runs the scenario on backend regardless of the scenario's
// own backend field.
func WithBackend(backend string) Option {
	return func(c *runConfig) { c.backend = backend }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory store for isolation.
// Execution flow:
// 1. Open the store and wire runtime, router and deterministic helpers
// 2. Execute setup steps, failing the run if any of them fails
// 3. Execute flow steps and check their expect clauses
// 4. Evaluate assertions and record the final height and state digest
// 5. Replay the run's journal on a second store and check it reproduces
//    the same digest
//
// A non-nil error means the scenario could not be executed; expectation
// and assertion failures are reported in the Result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	rc := runConfig{
		backend: scenario.Backend,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(&rc)
	}
	if rc.backend == "" {
		rc.backend = config.BackendLevelDB
	}

	storeCfg := &config.Config{Backend: rc.backend}
	st, err := storeCfg.OpenStore(rc.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	j, err := journal.Open("")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	router := chaincode.NewRouter(chaincode.New(rc.logger))
	h := &Harness{
		runtime: shim.NewRuntime(st, router,
			shim.WithTxIDs(testutil.NewSequentialTxIDs(scenario.TxPrefix)),
			shim.WithJournal(j),
			shim.WithLogger(rc.logger)),
		clock:  shim.NewClock(),
		logger: rc.logger.With("component", "harness", "scenario", scenario.Name),
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Setup {
		ev := h.execute(ctx, step, result)
		if ev.Outcome != OutcomeOK {
			return nil, fmt.Errorf("setup step %d (%s) failed: %s", i, step.Invoke, ev.Error)
		}
	}

	for i, step := range scenario.Flow {
		ev := h.execute(ctx, step, result)
		if step.Expect == nil {
			continue
		}
		for _, msg := range checkExpect(step.Expect, ev) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Invoke, msg))
		}
	}

	for _, msg := range EvaluateAssertions(ctx, result, scenario.Assertions, st) {
		result.AddError(msg)
	}

	if result.Height, err = st.Height(ctx); err != nil {
		return nil, fmt.Errorf("read height: %w", err)
	}
	if result.StateDigest, err = state.Digest(ctx, st); err != nil {
		return nil, err
	}

	for _, msg := range verifyReplay(ctx, j, storeCfg, router, result, rc.logger) {
		result.AddError(msg)
	}
	return result, nil
}

// verifyReplay rebuilds the world state from the journal and reports how it
// differs from the run.
func verifyReplay(ctx context.Context, j *journal.Journal, cfg *config.Config, handler shim.Handler, result *Result, logger *slog.Logger) []string {
	scratch, err := cfg.OpenStore(logger)
	if err != nil {
		return []string{fmt.Sprintf("journal replay: open store: %v", err)}
	}
	defer scratch.Close()

	replayed, err := journal.Replay(ctx, j, scratch, handler, logger)
	if err != nil {
		return []string{fmt.Sprintf("journal replay: %v", err)}
	}

	var msgs []string
	for _, d := range replayed.Divergences {
		msgs = append(msgs, fmt.Sprintf("journal replay: %s (version %d): %s", d.TxID, d.Version, d.Reason))
	}
	if replayed.StateDigest != result.StateDigest {
		msgs = append(msgs, fmt.Sprintf("journal replay: state digest %s, run ended with %s", replayed.StateDigest, result.StateDigest))
	}
	return msgs
}

// execute runs one step and records its invocation and completion.
func (h *Harness) execute(ctx context.Context, step Step, result *Result) TraceEvent {
	mode := step.mode()
	result.AddInvocationTrace(step.Invoke, step.Args, mode, h.clock.Next())

	var (
		res *shim.Result
		err error
	)
	if mode == ModeEvaluate {
		res, err = h.runtime.Evaluate(ctx, step.Invoke, step.Args...)
	} else {
		res, err = h.runtime.Submit(ctx, step.Invoke, step.Args...)
	}

	ev := TraceEvent{Seq: h.clock.Next()}
	if err != nil {
		ev.Outcome = outcomeOf(err)
		ev.Error = err.Error()
	} else {
		ev.Outcome = OutcomeOK
		ev.Payload = res.Payload
		ev.TxID = res.TxID
		ev.ResponseHash = res.ResponseHash
		ev.Version = res.Version
	}
	result.AddCompletionTrace(ev)

	h.logger.Debug("step completed",
		"function", step.Invoke,
		"mode", mode,
		"outcome", ev.Outcome,
		"tx_id", ev.TxID)
	return ev
}

func outcomeOf(err error) string {
	if code := fault.CodeOf(err); code != "" {
		return string(code)
	}
	return OutcomeError
}

func checkExpect(want *ExpectClause, got TraceEvent) []string {
	var errs []string
	if want.Outcome != got.Outcome {
		detail := ""
		if got.Error != "" {
			detail = fmt.Sprintf(" (%s)", got.Error)
		}
		errs = append(errs, fmt.Sprintf("expected outcome %s, got %s%s", want.Outcome, got.Outcome, detail))
		return errs
	}
	if want.Payload != nil && *want.Payload != got.Payload {
		errs = append(errs, fmt.Sprintf("expected payload %s, got %s", *want.Payload, got.Payload))
	}
	if want.Error != nil && *want.Error != got.Error {
		errs = append(errs, fmt.Sprintf("expected error %q, got %q", *want.Error, got.Error))
	}
	return errs
}
