package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tdrive/internal/chaincode"
	"github.com/roach88/tdrive/internal/config"
	"github.com/roach88/tdrive/internal/journal"
	"github.com/roach88/tdrive/internal/state"
)

// ReplayData is the JSON data of the replay command.
type ReplayData struct {
	Replayed    int                  `json:"replayed"`
	Height      uint64               `json:"height"`
	StateDigest string               `json:"state_digest"`
	Divergences []journal.Divergence `json:"divergences"`

	// LiveDigest is set when a database is configured to compare against.
	LiveDigest string `json:"live_digest,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Rebuild the world state from the journal",
		Long: `Re-execute every journaled transaction, in commit order, on an empty
in-memory world state of the configured backend.

Each transaction must commit under its journaled version with the same
response hash. When a database is configured, the rebuilt state digest
must also match the live world state.

Exit codes:
  0 - Replay reproduced the journal (and the live state)
  1 - One or more transactions diverged, or the digests differ
  2 - Command error

Example:
  tdrive --db ./ledger --journal ./journal.db replay`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}
	j, err := openJournal(cfg, logger)
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	scratch, err := (&config.Config{Backend: cfg.Backend}).OpenStore(logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open scratch store", err)
	}
	defer scratch.Close()

	result, err := journal.Replay(ctx, j, scratch, chaincode.NewRouter(chaincode.New(logger)), logger)
	if err != nil {
		return out.Fail(err)
	}

	data := ReplayData{
		Replayed:    result.Replayed,
		Height:      result.Height,
		StateDigest: result.StateDigest,
		Divergences: result.Divergences,
	}

	if cfg.Path != "" {
		live, err := cfg.OpenStore(logger)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		data.LiveDigest, err = state.Digest(ctx, live)
		live.Close()
		if err != nil {
			return out.Fail(err)
		}
	}

	failed := !result.OK() || (data.LiveDigest != "" && data.LiveDigest != data.StateDigest)
	if out.Format == "json" {
		if err := out.Success(data); err != nil {
			return err
		}
	} else {
		printReplay(out, data)
	}

	if failed {
		return &ExitError{Code: ExitFailure, Message: "replay diverged from the journal", Reported: out.Format == "json"}
	}
	return nil
}

func printReplay(out *OutputFormatter, data ReplayData) {
	w := out.Writer
	fmt.Fprintf(w, "replayed: %d\n", data.Replayed)
	fmt.Fprintf(w, "height: %d\n", data.Height)
	fmt.Fprintf(w, "digest: %s\n", data.StateDigest)
	for _, d := range data.Divergences {
		fmt.Fprintf(w, "DIVERGED %d %s: %s\n", d.Version, d.TxID, d.Reason)
	}
	if data.LiveDigest == "" {
		return
	}
	if data.LiveDigest == data.StateDigest {
		fmt.Fprintln(w, "live state: matches")
	} else {
		fmt.Fprintf(w, "live state: differs (%s)\n", data.LiveDigest)
	}
}
