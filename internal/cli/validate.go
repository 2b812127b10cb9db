package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/causaloid/internal/compiler"
)

// ValidateResult is the json payload of a successful validate.
type ValidateResult struct {
	Path       string `json:"path"`
	Causaloids int    `json:"causaloids"`
	States     int    `json:"states"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <model>",
		Short: "Check a causal model for errors",
		Long: `Load a CUE model (a .cue file or a directory of them), check every
causaloid and state definition, and report all problems at once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd, args[0])
		},
	}
}

func runValidate(rootOpts *RootOptions, cmd *cobra.Command, path string) error {
	f := rootOpts.formatter(cmd)
	if files, err := compiler.ModelFiles(path); err == nil {
		for _, file := range files {
			f.VerboseLog("Loading %s", file)
		}
	}

	model, err := loadModel(path)
	if err != nil {
		return reportError(f, ExitCommandError, err)
	}

	res := ValidateResult{Path: path, Causaloids: model.Arena.Len(), States: len(model.States)}
	return f.Emit(fmt.Sprintf("✓ Model valid: %d causaloids, %d states", res.Causaloids, res.States), res)
}
