package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/causaloid/internal/effect"
	"github.com/roach88/causaloid/internal/monad"
)

// CounterfactualOptions holds the flags of the counterfactual command.
type CounterfactualOptions struct {
	*RootOptions
	State string
	Chain []string
	Value string
	Force string
	At    int
}

// OutcomeInfo is one side of a counterfactual query.
type OutcomeInfo struct {
	Value   string `json:"value"`
	Error   string `json:"error,omitempty"`
	Explain string `json:"explain"`
}

// CounterfactualResult is the json payload of counterfactual.
type CounterfactualResult struct {
	Chain          []string    `json:"chain"`
	Input          string      `json:"input"`
	At             int         `json:"at"`
	Forced         string      `json:"forced"`
	Factual        OutcomeInfo `json:"factual"`
	Counterfactual OutcomeInfo `json:"counterfactual"`
	Changed        bool        `json:"changed"`
}

// NewCounterfactualCommand creates the counterfactual command.
func NewCounterfactualCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CounterfactualOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "counterfactual <model>",
		Short: "Compare a causal chain with and without an intervention",
		Long: `Run a chain of causaloids twice from the same input: once as observed
and once with the carried value forced to --force before step --at.

The chain is either --chain (causaloid names, evaluated in order) or the
causaloid of --state. --value defaults to the state's declared data.

  causaloid counterfactual model.cue --state boiler --force '{temperature: 90, bar: 5}'
  causaloid counterfactual model.cue --chain hot --value 70 --force 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCounterfactual(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.State, "state", "", "state whose causaloid forms the chain")
	cmd.Flags().StringSliceVar(&opts.Chain, "chain", nil, "causaloid names to chain, in order")
	cmd.Flags().StringVar(&opts.Value, "value", "", "input as a YAML literal")
	cmd.Flags().StringVar(&opts.Force, "force", "", "intervened value as a YAML literal (required)")
	cmd.Flags().IntVar(&opts.At, "at", 0, "intervene before this step (0 = before the first)")
	_ = cmd.MarkFlagRequired("force")
	cmd.MarkFlagsMutuallyExclusive("state", "chain")
	cmd.MarkFlagsOneRequired("state", "chain")

	return cmd
}

func runCounterfactual(opts *CounterfactualOptions, cmd *cobra.Command, path string) error {
	f := opts.formatter(cmd)

	model, err := loadModel(path)
	if err != nil {
		return reportError(f, ExitCommandError, err)
	}

	chain := opts.Chain
	var input effect.Value = effect.None{}
	if opts.State != "" {
		s, err := lookupState(model, opts.State)
		if err != nil {
			return reportError(f, ExitCommandError, err)
		}
		chain = []string{s.Causaloid}
		input = s.Data
	}

	steps := make([]monad.Step, 0, len(chain))
	for _, name := range chain {
		c, ok := model.Causaloid(name)
		if !ok {
			return reportError(f, ExitCommandError, &LoadError{Code: ErrCodeInput, Message: fmt.Sprintf("unknown causaloid %q", name)})
		}
		steps = append(steps, monad.FromCausaloid(c))
	}

	if cmd.Flags().Changed("value") {
		if input, err = parseValue("value", opts.Value); err != nil {
			return reportError(f, ExitCommandError, err)
		}
	}
	forced, err := parseValue("force", opts.Force)
	if err != nil {
		return reportError(f, ExitCommandError, err)
	}

	outcome, err := monad.Counterfactual(input, steps, opts.At, forced)
	if err != nil {
		return reportError(f, ExitCommandError, &LoadError{Code: ErrCodeInput, Message: "--at", Err: err})
	}

	res := CounterfactualResult{
		Chain:          chain,
		Input:          effect.Format(input),
		At:             opts.At,
		Forced:         effect.Format(forced),
		Factual:        outcomeInfo(outcome.Factual),
		Counterfactual: outcomeInfo(outcome.Counterfactual),
		Changed:        outcome.Changed(),
	}
	return f.Emit(res.text(), res)
}

func outcomeInfo(e effect.Propagating) OutcomeInfo {
	info := OutcomeInfo{Value: effect.Format(effect.OrNone(e.Value)), Explain: e.Explain()}
	if e.Err != nil {
		info.Error = e.Err.Error()
	}
	return info
}

func (r CounterfactualResult) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Factual (%s):\n%s\n\n", r.Input, indent(r.Factual.Explain))
	fmt.Fprintf(&b, "Counterfactual (%s forced before step %d):\n%s\n\n", r.Forced, r.At, indent(r.Counterfactual.Explain))
	if r.Changed {
		fmt.Fprintf(&b, "Changed: %s → %s", r.Factual.Value, r.Counterfactual.Value)
	} else {
		fmt.Fprintf(&b, "Unchanged: %s", r.Factual.Value)
	}
	return b.String()
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
