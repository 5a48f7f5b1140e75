package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tdrive/internal/chaincode"
)

// FunctionInfo is the JSON form of one registered function.
type FunctionInfo struct {
	Name     string   `json:"name"`
	Params   []string `json:"params"`
	ReadOnly bool     `json:"read_only"`
}

// NewFunctionsCommand creates the functions command.
func NewFunctionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "functions",
		Short:         "List the contract's transaction functions",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			router := chaincode.NewRouter(chaincode.New(logger))
			out := rootOpts.formatter(cmd)

			fns := router.Functions()
			if out.Format == "json" {
				infos := make([]FunctionInfo, len(fns))
				for i, fn := range fns {
					infos[i] = FunctionInfo{Name: fn.Name, Params: fn.Params, ReadOnly: fn.ReadOnly}
				}
				return out.Success(infos)
			}

			for _, fn := range fns {
				line := fmt.Sprintf("%s(%s)", fn.Name, strings.Join(fn.Params, ", "))
				if fn.ReadOnly {
					line += " [read-only]"
				}
				fmt.Fprintln(out.Writer, line)
			}
			return nil
		},
	}
}
