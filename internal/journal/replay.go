package journal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/tdrive/internal/shim"
	"github.com/roach88/tdrive/internal/state"
)

// Divergence is a journaled transaction that replayed differently.
type Divergence struct {
	TxID    string `json:"tx_id"`
	Version uint64 `json:"version"`
	Reason  string `json:"reason"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Replayed    int
	Height      uint64
	StateDigest string
	Divergences []Divergence
}

// OK reports whether every transaction replayed identically.
func (r *ReplayResult) OK() bool {
	return len(r.Divergences) == 0
}

// journaledTxIDs hands the runtime the recorded id of the entry being
// replayed.
type journaledTxIDs struct {
	next string
}

func (g *journaledTxIDs) Generate() string {
	return g.next
}

// Replay re-executes every journaled transaction, in commit order, on
// target through handler. target must be empty. A transaction diverges
// when it is rejected, commits under a different version, or produces a
// different response hash; replay continues past divergences so the
// result lists all of them.
func Replay(ctx context.Context, j *Journal, target state.Store, handler shim.Handler, logger *slog.Logger) (*ReplayResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "journal")

	height, err := target.Height(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if height != 0 {
		return nil, fmt.Errorf("replay: target world state is not empty (height %d)", height)
	}

	entries, err := j.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	ids := &journaledTxIDs{}
	rt := shim.NewRuntime(target, handler, shim.WithTxIDs(ids), shim.WithLogger(logger))

	result := &ReplayResult{Divergences: []Divergence{}}
	for _, e := range entries {
		ids.next = e.TxID
		res, err := rt.Submit(ctx, e.Function, e.Args...)
		result.Replayed++

		diverge := func(format string, args ...any) {
			d := Divergence{TxID: e.TxID, Version: e.Version, Reason: fmt.Sprintf(format, args...)}
			logger.Warn("replay diverged", "tx_id", d.TxID, "version", d.Version, "reason", d.Reason)
			result.Divergences = append(result.Divergences, d)
		}

		switch {
		case err != nil:
			diverge("rejected on replay: %v", err)
		case res.Version != e.Version:
			diverge("committed at version %d, journaled %d", res.Version, e.Version)
		case res.ResponseHash != e.ResponseHash:
			diverge("response %q differs from journaled %q", res.Payload, e.Payload)
		}
	}

	if result.Height, err = target.Height(ctx); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	if result.StateDigest, err = state.Digest(ctx, target); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	logger.Debug("replay complete",
		"replayed", result.Replayed,
		"height", result.Height,
		"divergences", len(result.Divergences))
	return result, nil
}
