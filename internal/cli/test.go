package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/causaloid/internal/harness"
)

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run YAML test scenarios against their models",
		Long: `Run every .yaml/.yml scenario under a directory, or a single scenario
file. Each scenario evaluates states of a model in an isolated in-memory
audit log and checks the expectations and assertions it declares.

Exits with status 1 when any scenario fails.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			paths, err := scenarioPaths(args[0], filter)
			if err != nil {
				return reportError(f, ExitCommandError, err)
			}
			if len(paths) == 0 {
				return reportError(f, ExitCommandError, &LoadError{Code: ErrCodePathNotFound, Message: "no scenarios found in " + args[0]})
			}
			for _, p := range paths {
				f.VerboseLog("Running %s", p)
			}

			res := harness.RunSuite(cmdContext(cmd), paths)
			if err := f.Emit(suiteText(res), res); err != nil {
				return WrapExitError(ExitCommandError, "failed to write output", err)
			}
			if !res.OK() {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", res.Failed, res.Total))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "only run scenario files whose name matches this glob")

	return cmd
}

func scenarioPaths(target, filter string) ([]string, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, &LoadError{Code: ErrCodePathNotFound, Message: "scenarios not found: " + target, Err: err}
	}

	paths := []string{target}
	if info.IsDir() {
		if paths, err = harness.FindScenarios(target); err != nil {
			return nil, &LoadError{Code: ErrCodePathNotFound, Message: "failed to scan scenarios", Err: err}
		}
	}
	if filter == "" {
		return paths, nil
	}

	var kept []string
	for _, p := range paths {
		ok, err := filepath.Match(filter, filepath.Base(p))
		if err != nil {
			return nil, &LoadError{Code: ErrCodeInput, Message: "invalid --filter", Err: err}
		}
		if ok {
			kept = append(kept, p)
		}
	}
	return kept, nil
}

func suiteText(res *harness.SuiteResult) string {
	var b strings.Builder
	for _, fail := range res.Failures {
		fmt.Fprintf(&b, "✗ %s (%s)\n", fail.Scenario, fail.Path)
		for _, e := range fail.Errors {
			fmt.Fprintf(&b, "%s\n", indent(strings.TrimSuffix(e, "\n")))
		}
	}
	if res.OK() {
		fmt.Fprintf(&b, "✓ %d scenarios passed", res.Total)
	} else {
		fmt.Fprintf(&b, "%d passed, %d failed", res.Passed, res.Failed)
	}
	return b.String()
}
