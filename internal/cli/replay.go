package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/causaloid/internal/compiler"
	"github.com/roach88/causaloid/internal/csm"
)

// DivergenceInfo is one record whose outcome changed on replay.
type DivergenceInfo struct {
	EvaluationID  string `json:"evaluation_id"`
	StateID       uint64 `json:"state_id"`
	Seq           int64  `json:"seq"`
	RecordedFired bool   `json:"recorded_fired"`
	ReplayedFired bool   `json:"replayed_fired"`
	RecordedError string `json:"recorded_error,omitempty"`
	ReplayedError string `json:"replayed_error,omitempty"`
	Trace         string `json:"trace,omitempty"`
}

// ReplayResult is the json payload of replay.
type ReplayResult struct {
	Records     int              `json:"records"`
	Divergences []DivergenceInfo `json:"divergences"`
	Clean       bool             `json:"clean"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "replay <model>",
		Short: "Re-evaluate recorded inputs against a model and report changes",
		Long: `Re-evaluate every input in the audit database against the given model,
without firing any action, and list the evaluations whose outcome differs
from what was recorded.

Exits with status 1 when any evaluation diverges.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			ctx := cmdContext(cmd)

			model, err := loadModel(args[0])
			if err != nil {
				return reportError(f, ExitCommandError, err)
			}
			st, err := openExisting(dbPath)
			if err != nil {
				return reportError(f, ExitCommandError, err)
			}
			defer st.Close()

			machine, err := csm.New(model.Pairs(compiler.LogAction(f.Logger())), csm.WithLogger(f.Logger()))
			if err != nil {
				return reportError(f, ExitFailure, err)
			}

			records, err := st.ReadAllEvaluations(ctx)
			if err != nil {
				return reportError(f, ExitCommandError, &LoadError{Code: ErrCodeDatabase, Message: "failed to read evaluations", Err: err})
			}
			divs, err := st.Replay(ctx, machine)
			if err != nil {
				return reportError(f, ExitCommandError, &LoadError{Code: ErrCodeDatabase, Message: "replay failed", Err: err})
			}

			res := ReplayResult{Records: len(records), Divergences: make([]DivergenceInfo, 0, len(divs)), Clean: len(divs) == 0}
			for _, d := range divs {
				res.Divergences = append(res.Divergences, DivergenceInfo{
					EvaluationID:  d.EvaluationID,
					StateID:       d.StateID,
					Seq:           d.Seq,
					RecordedFired: d.RecordedFired,
					ReplayedFired: d.ReplayedFired,
					RecordedError: d.RecordedError,
					ReplayedError: d.ReplayedError,
					Trace:         d.Trace,
				})
			}
			if err := f.Emit(res.text(rootOpts.Verbose), res); err != nil {
				return WrapExitError(ExitCommandError, "failed to write output", err)
			}
			if !res.Clean {
				return NewExitError(ExitFailure, fmt.Sprintf("%d of %d evaluations diverged", len(divs), len(records)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite audit database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func (r ReplayResult) text(verbose bool) string {
	if r.Clean {
		return fmt.Sprintf("✓ Replay clean: %d evaluations reproduced", r.Records)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✗ %d of %d evaluations diverged:\n", len(r.Divergences), r.Records)
	for _, d := range r.Divergences {
		fmt.Fprintf(&b, "  [%d] %s state=%d fired %t → %t", d.Seq, d.EvaluationID, d.StateID, d.RecordedFired, d.ReplayedFired)
		if d.RecordedError != d.ReplayedError {
			fmt.Fprintf(&b, " error %q → %q", d.RecordedError, d.ReplayedError)
		}
		b.WriteByte('\n')
		if verbose && d.Trace != "" {
			fmt.Fprintf(&b, "%s\n", indent(indent(d.Trace)))
		}
	}
	return strings.TrimSuffix(b.String(), "\n")
}
