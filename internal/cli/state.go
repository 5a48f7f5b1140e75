package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tdrive/internal/state"
)

// StateRow is one world-state entry in JSON output.
type StateRow struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Version uint64 `json:"version"`
}

// StateData is the JSON data of the state command.
type StateData struct {
	Height uint64     `json:"height"`
	Digest string     `json:"digest"`
	Rows   []StateRow `json:"rows"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	var prefix string

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Dump the committed world state",
		Long: `Print the commit height, the state digest and the committed entries.

The digest covers the whole world state; --prefix only narrows the
entries that are listed.

Example:
  tdrive --db ./ledger state --prefix user_`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dumpState(rootOpts, cmd, prefix)
		},
	}

	cmd.Flags().StringVar(&prefix, "prefix", "", "only list keys with this prefix")

	return cmd
}

func dumpState(opts *RootOptions, cmd *cobra.Command, prefix string) error {
	st, _, logger, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	height, err := st.Height(ctx)
	if err != nil {
		return out.Fail(err)
	}
	digest, err := state.Digest(ctx, st)
	if err != nil {
		return out.Fail(err)
	}
	rows, err := state.Dump(ctx, st, prefix)
	if err != nil {
		return out.Fail(err)
	}

	data := StateData{Height: height, Digest: digest, Rows: make([]StateRow, len(rows))}
	for i, kv := range rows {
		data.Rows[i] = StateRow{Key: kv.Key, Value: string(kv.Value), Version: kv.Version}
	}

	if out.Format == "json" {
		return out.Success(data)
	}

	w := out.Writer
	fmt.Fprintf(w, "height: %d\n", data.Height)
	fmt.Fprintf(w, "digest: %s\n", data.Digest)
	for _, row := range data.Rows {
		fmt.Fprintf(w, "%s @%d %s\n", row.Key, row.Version, row.Value)
	}
	return nil
}
