package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/causaloid/internal/compiler"
	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/effect"
)

// ExplainResult is the json payload of explain.
type ExplainResult struct {
	State     string   `json:"state"`
	Input     string   `json:"input"`
	Value     string   `json:"value"`
	WouldFire bool     `json:"would_fire"`
	Error     string   `json:"error,omitempty"`
	Log       []string `json:"log"`
	Explain   string   `json:"explain"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	var stateName, value string

	cmd := &cobra.Command{
		Use:   "explain <model>",
		Short: "Explain how one state evaluates, without firing its action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			model, err := loadModel(args[0])
			if err != nil {
				return reportError(f, ExitCommandError, err)
			}
			s, err := lookupState(model, stateName)
			if err != nil {
				return reportError(f, ExitCommandError, err)
			}
			input := s.Data
			if cmd.Flags().Changed("value") {
				if input, err = parseValue("value", value); err != nil {
					return reportError(f, ExitCommandError, err)
				}
			}

			machine, err := csm.New(model.Pairs(compiler.LogAction(f.Logger())), csm.WithLogger(f.Logger()))
			if err != nil {
				return reportError(f, ExitFailure, err)
			}
			e, err := machine.Explain(s.ID, input)
			if err != nil {
				return reportError(f, ExitFailure, err)
			}

			res := ExplainResult{
				State:   s.Name,
				Input:   effect.Format(input),
				Value:   effect.Format(effect.OrNone(e.Value)),
				Log:     e.Logs.Lines(),
				Explain: e.Explain(),
			}
			if e.Err != nil {
				res.Error = e.Err.Error()
			} else if b, ok := e.Bool(); ok {
				res.WouldFire = b
			}
			return f.Emit(res.Explain, res)
		},
	}

	cmd.Flags().StringVar(&stateName, "state", "", "state to explain (required)")
	cmd.Flags().StringVar(&value, "value", "", "input as a YAML literal (default: the state's declared data)")
	_ = cmd.MarkFlagRequired("state")

	return cmd
}
