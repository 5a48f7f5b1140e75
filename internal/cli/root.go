// Package cli implements the tdrive command line: submitting and
// evaluating transactions against a local world state, inspecting that
// state, and running scenario files.
package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/tdrive/internal/chaincode"
	"github.com/roach88/tdrive/internal/config"
	"github.com/roach88/tdrive/internal/journal"
	"github.com/roach88/tdrive/internal/shim"
	"github.com/roach88/tdrive/internal/state"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"; empty defers to the config file
	ConfigFile string
	Backend    string
	DB         string
	Journal    string

	// TxIDs overrides transaction id generation (for testing).
	// If nil, defaults to shim.UUIDTxIDs.
	TxIDs shim.TxIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tdrive CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// newRootCommand builds the command tree around opts so tests can inject
// fields that have no flag, such as TxIDs.
func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tdrive",
		Short: "t-drive file custody ledger",
		Long: `Run t-drive transactions against a local world state.

Users, file metadata, file shares and assets are stored as JSON records.
Transactions are submitted (committed) or evaluated (read only), exactly
as a client would against the deployed contract. With a journal
configured, every committed transaction is also logged, and the world
state can be rebuilt from that log.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Format != "" && !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "", "output format (json|text), default text")
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "path to a CUE config file")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "world-state backend (leveldb|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "world-state location (leveldb directory or sqlite file)")
	cmd.PersistentFlags().StringVar(&opts.Journal, "journal", "", "transaction journal file")

	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewFunctionsCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// load resolves the configuration (defaults, config file, flags) and
// builds the logger. The resolved format is written back to o.Format.
func (o *RootOptions) load(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	ov := config.Overrides{Backend: o.Backend, Path: o.DB, Journal: o.Journal, Format: o.Format}
	if o.Verbose {
		ov.LogLevel = "debug"
	}
	cfg, err := config.Load(o.ConfigFile, ov)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	o.Format = cfg.Format

	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.Level()})
	return cfg, slog.New(handler), nil
}

// openStore opens the configured persistent store. An in-memory store
// would lose every commit when the command exits, so a path is required.
func (o *RootOptions) openStore(cmd *cobra.Command) (state.Store, *config.Config, *slog.Logger, error) {
	cfg, logger, err := o.load(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.Path == "" {
		return nil, nil, nil, NewExitError(ExitCommandError, "no database: set --db or path in the config file")
	}

	logger.Debug("opening world state", "backend", cfg.Backend, "path", cfg.Path)
	st, err := cfg.OpenStore(logger)
	if err != nil {
		return nil, nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, cfg, logger, nil
}

// openJournal opens the configured journal.
func openJournal(cfg *config.Config, logger *slog.Logger) (*journal.Journal, error) {
	if cfg.Journal == "" {
		return nil, NewExitError(ExitCommandError, "no journal: set --journal or journal in the config file")
	}
	logger.Debug("opening journal", "path", cfg.Journal)
	j, err := journal.Open(cfg.Journal)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	return j, nil
}

// openRuntime opens the store, and the journal when one is configured, and
// wires the contract into a runtime. The returned close function releases
// both.
func (o *RootOptions) openRuntime(cmd *cobra.Command) (*shim.Runtime, func(), error) {
	st, cfg, logger, err := o.openStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	rtOpts := []shim.Option{shim.WithLogger(logger)}
	if o.TxIDs != nil {
		rtOpts = append(rtOpts, shim.WithTxIDs(o.TxIDs))
	}

	var j *journal.Journal
	if cfg.Journal != "" {
		if j, err = openJournal(cfg, logger); err != nil {
			st.Close()
			return nil, nil, err
		}
		rtOpts = append(rtOpts, shim.WithJournal(j))
	}
	rt := shim.NewRuntime(st, chaincode.NewRouter(chaincode.New(logger)), rtOpts...)

	closeFn := func() {
		if j != nil {
			if err := j.Close(); err != nil {
				logger.Error("error closing journal", "error", err)
			}
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}
	return rt, closeFn, nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
