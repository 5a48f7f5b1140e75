// Package shim executes transaction handlers against a world-state store.
//
// Each invocation gets a fresh TxStub. Submit commits the stub's write set
// atomically after validating its read set; Evaluate runs the handler and
// discards the writes. A failed handler never leaves writes behind.
package shim

import (
	"context"
	"io"
	"log/slog"

	"github.com/roach88/tdrive/internal/ir"
	"github.com/roach88/tdrive/internal/state"
)

// Handler dispatches one invocation.
type Handler interface {
	Invoke(ctx context.Context, stub Stub, function string, args []string) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, stub Stub, function string, args []string) (string, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, stub Stub, function string, args []string) (string, error) {
	return f(ctx, stub, function, args)
}

// Result describes a completed invocation.
type Result struct {
	TxID     string
	Seq      int64
	Function string
	Args     []string
	Payload  string

	// ResponseHash identifies (function, args, payload); endorsing nodes
	// executing the same invocation must agree on it.
	ResponseHash string

	// Committed is true for submitted transactions; Version is then the
	// commit version assigned by the store.
	Committed bool
	Version   uint64

	Reads  int
	Writes int
}

// Journal records committed transactions.
type Journal interface {
	Append(ctx context.Context, res *Result, batch *state.UpdateBatch) error
}

// Runtime runs handlers against a store.
type Runtime struct {
	store   state.Store
	handler Handler
	txIDs   TxIDGenerator
	seq     Sequencer
	journal Journal
	logger  *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithTxIDs sets the transaction id generator. Defaults to UUIDTxIDs.
func WithTxIDs(g TxIDGenerator) Option {
	return func(r *Runtime) { r.txIDs = g }
}

// WithSequencer sets the transaction sequencer. Defaults to a new Clock.
func WithSequencer(s Sequencer) Option {
	return func(r *Runtime) { r.seq = s }
}

// WithJournal appends every committed transaction to j. The commit is
// already durable when Append runs, so an append failure is logged rather
// than returned.
func WithJournal(j Journal) Option {
	return func(r *Runtime) { r.journal = j }
}

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// NewRuntime creates a runtime dispatching to handler over store.
func NewRuntime(store state.Store, handler Handler, opts ...Option) *Runtime {
	r := &Runtime{
		store:   store,
		handler: handler,
		txIDs:   UUIDTxIDs{},
		seq:     NewClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("component", "shim")
	return r
}

// Store returns the runtime's store.
func (r *Runtime) Store() state.Store {
	return r.store
}

// Submit executes function and commits its writes.
func (r *Runtime) Submit(ctx context.Context, function string, args ...string) (*Result, error) {
	return r.execute(ctx, true, function, args)
}

// Evaluate executes function without committing anything.
func (r *Runtime) Evaluate(ctx context.Context, function string, args ...string) (*Result, error) {
	return r.execute(ctx, false, function, args)
}

func (r *Runtime) execute(ctx context.Context, commit bool, function string, args []string) (*Result, error) {
	if args == nil {
		args = []string{}
	}
	txID := r.txIDs.Generate()
	seq := r.seq.Next()
	logger := r.logger.With("tx_id", txID, "seq", seq, "function", function)

	stub := NewTxStub(txID, r.store)
	payload, err := r.handler.Invoke(ctx, stub, function, args)
	if err != nil {
		logger.Debug("transaction failed", "error", err)
		return nil, err
	}

	hash, err := ir.ResponseHash(function, args, payload)
	if err != nil {
		return nil, err
	}

	batch := stub.Batch()
	res := &Result{
		TxID:         txID,
		Seq:          seq,
		Function:     function,
		Args:         args,
		Payload:      payload,
		ResponseHash: hash,
		Reads:        len(batch.Reads),
		Writes:       len(batch.Puts) + len(batch.Deletes),
	}

	if commit {
		version, err := r.store.Commit(ctx, batch)
		if err != nil {
			logger.Warn("commit rejected", "error", err)
			return nil, err
		}
		res.Committed = true
		res.Version = version

		if r.journal != nil {
			if err := r.journal.Append(ctx, res, batch); err != nil {
				logger.Error("journal append failed", "version", version, "error", err)
			}
		}
	}

	logger.Debug("transaction complete",
		"committed", res.Committed,
		"version", res.Version,
		"reads", res.Reads,
		"writes", res.Writes)
	return res, nil
}
