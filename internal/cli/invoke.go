package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/tdrive/internal/shim"
)

// InvocationData is the JSON data of a completed invoke or query.
type InvocationData struct {
	TxID         string   `json:"tx_id"`
	Function     string   `json:"function"`
	Args         []string `json:"args"`
	Payload      string   `json:"payload"`
	ResponseHash string   `json:"response_hash"`
	Committed    bool     `json:"committed"`
	Version      uint64   `json:"version,omitempty"`
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <function> [args...]",
		Short: "Submit a transaction",
		Long: `Submit a transaction and commit its writes to the world state.

Arguments are passed positionally as strings, exactly as a client would
pass them to the contract. The response payload is printed on success.

Example:
  tdrive --db ./ledger invoke CreateUser user_arif@gmail.com arif@gmail.com 123456 arif`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvocation(rootOpts, cmd, true, args[0], args[1:])
		},
	}
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <function> [args...]",
		Short: "Evaluate a transaction without committing",
		Long: `Evaluate a transaction against the committed world state.

The handler runs exactly as for invoke, but its writes are discarded.

Example:
  tdrive --db ./ledger query FindFileByUser arif@gmail.com`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvocation(rootOpts, cmd, false, args[0], args[1:])
		},
	}
}

func runInvocation(opts *RootOptions, cmd *cobra.Command, submit bool, function string, args []string) error {
	rt, closeStore, err := opts.openRuntime(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	out := opts.formatter(cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var res *shim.Result
	if submit {
		res, err = rt.Submit(ctx, function, args...)
	} else {
		res, err = rt.Evaluate(ctx, function, args...)
	}
	if err != nil {
		return out.Fail(err)
	}

	out.VerboseLog("tx %s: %d reads, %d writes", res.TxID, res.Reads, res.Writes)
	if res.Committed {
		out.VerboseLog("committed at version %d", res.Version)
	}

	if out.Format != "json" {
		fmt.Fprintln(out.Writer, res.Payload)
		return nil
	}
	if args == nil {
		args = []string{}
	}
	return out.Success(InvocationData{
		TxID:         res.TxID,
		Function:     res.Function,
		Args:         args,
		Payload:      res.Payload,
		ResponseHash: res.ResponseHash,
		Committed:    res.Committed,
		Version:      res.Version,
	})
}
