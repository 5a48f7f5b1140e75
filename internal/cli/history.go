package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tdrive/internal/journal"
)

// HistoryEntry is one journaled transaction in JSON output.
type HistoryEntry struct {
	TxID         string   `json:"tx_id"`
	Version      uint64   `json:"version"`
	Function     string   `json:"function"`
	Args         []string `json:"args"`
	Payload      string   `json:"payload"`
	ResponseHash string   `json:"response_hash"`
	Writes       []string `json:"writes"`
}

// KeyChange is one change to a key in JSON output.
type KeyChange struct {
	TxID     string `json:"tx_id"`
	Version  uint64 `json:"version"`
	Function string `json:"function"`
	Value    string `json:"value,omitempty"`
	Deleted  bool   `json:"deleted"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var key string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled transactions",
		Long: `List the committed transactions recorded in the journal, oldest first.

With --key, list only the changes to that key: the value each
transaction wrote, or its deletion.

Example:
  tdrive --journal ./journal.db history --key file_1`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(rootOpts, cmd, key)
		},
	}

	cmd.Flags().StringVar(&key, "key", "", "only list changes to this key")

	return cmd
}

func showHistory(opts *RootOptions, cmd *cobra.Command, key string) error {
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

	if key != "" {
		mods, err := j.KeyHistory(ctx, key)
		if err != nil {
			return out.Fail(err)
		}
		return printKeyHistory(out, mods)
	}

	entries, err := j.Entries(ctx)
	if err != nil {
		return out.Fail(err)
	}
	return printEntries(out, entries)
}

func printEntries(out *OutputFormatter, entries []journal.Entry) error {
	if out.Format == "json" {
		data := make([]HistoryEntry, len(entries))
		for i, e := range entries {
			writes := make([]string, len(e.Writes))
			for k, w := range e.Writes {
				writes[k] = w.Key
			}
			data[i] = HistoryEntry{
				TxID:         e.TxID,
				Version:      e.Version,
				Function:     e.Function,
				Args:         e.Args,
				Payload:      e.Payload,
				ResponseHash: e.ResponseHash,
				Writes:       writes,
			}
		}
		return out.Success(data)
	}

	for _, e := range entries {
		fmt.Fprintf(out.Writer, "%d %s %s(%s) -> %s\n", e.Version, e.TxID, e.Function, strings.Join(e.Args, ", "), e.Payload)
	}
	return nil
}

func printKeyHistory(out *OutputFormatter, mods []journal.KeyModification) error {
	if out.Format == "json" {
		data := make([]KeyChange, len(mods))
		for i, m := range mods {
			data[i] = KeyChange{
				TxID:     m.TxID,
				Version:  m.Version,
				Function: m.Function,
				Value:    string(m.Value),
				Deleted:  m.IsDelete,
			}
		}
		return out.Success(data)
	}

	for _, m := range mods {
		value := string(m.Value)
		if m.IsDelete {
			value = "(deleted)"
		}
		fmt.Fprintf(out.Writer, "%d %s %s %s\n", m.Version, m.TxID, m.Function, value)
	}
	return nil
}
