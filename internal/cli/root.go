package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds the flags shared by every subcommand.
type RootOptions struct {
	Verbose bool
	Format  string
}

// ValidFormats lists the accepted --format values.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the causaloid command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "causaloid",
		Short: "Causal model evaluator",
		Long: `causaloid compiles causal models written in CUE, evaluates the
causal states they declare, and keeps an audit log of every evaluation.

A model declares causaloids (threshold, range, collection, graph) and
causal states that pair a causaloid with an action. Each evaluation
explains itself step by step and can be replayed against a changed model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				msg := fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
				fmt.Fprintln(cmd.ErrOrStderr(), "Error:", msg)
				return NewExitError(ExitCommandError, msg)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(
		NewValidateCommand(opts),
		NewInspectCommand(opts),
		NewEvalCommand(opts),
		NewExplainCommand(opts),
		NewCounterfactualCommand(opts),
		NewHistoryCommand(opts),
		NewReplayCommand(opts),
		NewTestCommand(opts),
	)

	return cmd
}

// formatter builds the OutputFormatter for a running command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
