package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/causaloid/internal/compiler"
	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/effect"
	"github.com/roach88/causaloid/internal/store"
)

// EvalOptions holds the flags of the eval command.
type EvalOptions struct {
	*RootOptions
	InputPath   string
	DBPath      string
	Parallelism int
	Explain     bool
}

// EvaluationInfo is one state's outcome.
type EvaluationInfo struct {
	State        string `json:"state"`
	StateID      uint64 `json:"state_id"`
	EvaluationID string `json:"evaluation_id"`
	Seq          int64  `json:"seq"`
	Input        string `json:"input"`
	Value        string `json:"value"`
	Fired        bool   `json:"fired"`
	Action       string `json:"action,omitempty"`
	Error        string `json:"error,omitempty"`
	Explain      string `json:"explain,omitempty"`
}

// EvalResult is the json payload of eval.
type EvalResult struct {
	Evaluations []EvaluationInfo `json:"evaluations"`
	Fired       int              `json:"fired"`
	Errors      int              `json:"errors"`
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EvalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "eval <model>",
		Short: "Evaluate every causal state of a model",
		Long: `Evaluate every state declared by the model and fire the actions whose
causaloid resolves to true. Actions only log that they fired.

Inputs default to each state's declared data. --input names a YAML file
mapping state names to input values, e.g.

  boiler: {temperature: 70, bar: 4}
  frost: 2

With --db every evaluation is appended to a SQLite audit log, and the
logical clock resumes after the highest sequence already recorded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.InputPath, "input", "", "YAML file of per-state inputs")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite audit database (created if missing)")
	cmd.Flags().IntVar(&opts.Parallelism, "parallel", 0, "maximum concurrent evaluations (0 = number of CPUs)")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "include the causal explanation of every evaluation")

	return cmd
}

func runEval(opts *EvalOptions, cmd *cobra.Command, path string) error {
	f := opts.formatter(cmd)
	logger := f.Logger()

	ctx, cancel := signal.NotifyContext(cmdContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	model, err := loadModel(path)
	if err != nil {
		return reportError(f, ExitCommandError, err)
	}

	var inputs map[uint64]effect.Value
	if opts.InputPath != "" {
		inputs, err = loadInputs(model, opts.InputPath)
		if err != nil {
			return reportError(f, ExitCommandError, err)
		}
	}

	csmOpts := []csm.Option{csm.WithLogger(logger)}
	if opts.Parallelism > 0 {
		csmOpts = append(csmOpts, csm.WithParallelism(opts.Parallelism))
	}
	if opts.DBPath != "" {
		st, err := store.Open(opts.DBPath)
		if err != nil {
			return reportError(f, ExitCommandError, &LoadError{Code: ErrCodeDatabase, Message: "failed to open audit database", Err: err})
		}
		defer st.Close()

		last, err := st.GetLastSeq(ctx)
		if err != nil {
			return reportError(f, ExitCommandError, &LoadError{Code: ErrCodeDatabase, Message: "failed to read audit database", Err: err})
		}
		f.VerboseLog("Resuming audit log %s at seq %d", opts.DBPath, last)
		csmOpts = append(csmOpts, csm.WithAuditSink(st), csm.WithClock(csm.NewClockAt(last)))
	}

	machine, err := csm.New(model.Pairs(compiler.LogAction(logger)), csmOpts...)
	if err != nil {
		return reportError(f, ExitFailure, err)
	}

	results, evalErr := machine.EvaluateAll(ctx, inputs)
	res := evalResult(model, inputs, results, opts.Explain)
	if err := f.Emit(res.text(), res); err != nil {
		return WrapExitError(ExitCommandError, "failed to write output", err)
	}

	if evalErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("%d evaluation(s) failed", res.Errors), evalErr)
	}
	return nil
}

func evalResult(model *compiler.Model, inputs map[uint64]effect.Value, results []csm.Result, explain bool) EvalResult {
	byID := make(map[uint64]compiler.StateSpec, len(model.States))
	for _, s := range model.States {
		byID[s.ID] = s
	}

	res := EvalResult{Evaluations: make([]EvaluationInfo, 0, len(results))}
	for _, r := range results {
		s := byID[r.StateID]
		input, ok := inputs[r.StateID]
		if !ok {
			input = s.Data
		}

		info := EvaluationInfo{
			State:        s.Name,
			StateID:      r.StateID,
			EvaluationID: r.EvaluationID,
			Seq:          r.Seq,
			Input:        effect.Format(input),
			Value:        effect.Format(effect.OrNone(r.Effect.Value)),
			Fired:        r.Fired,
		}
		if r.Fired {
			info.Action = s.Action
			res.Fired++
		}
		if r.Err != nil {
			info.Error = r.Err.Error()
			res.Errors++
		}
		if explain {
			info.Explain = r.Effect.Explain()
		}
		res.Evaluations = append(res.Evaluations, info)
	}
	return res
}

func (r EvalResult) text() string {
	var b strings.Builder
	for _, e := range r.Evaluations {
		mark := "·"
		switch {
		case e.Error != "":
			mark = "✗"
		case e.Fired:
			mark = "✓"
		}
		fmt.Fprintf(&b, "%s [%d] %s %s → %s", mark, e.Seq, e.State, e.Input, e.Value)
		if e.Fired {
			fmt.Fprintf(&b, " fired %s", e.Action)
		}
		if e.Error != "" {
			fmt.Fprintf(&b, " error: %s", e.Error)
		}
		b.WriteByte('\n')
		if e.Explain != "" {
			for _, line := range strings.Split(e.Explain, "\n") {
				fmt.Fprintf(&b, "    %s\n", line)
			}
		}
	}
	fmt.Fprintf(&b, "%d states evaluated, %d fired, %d errors", len(r.Evaluations), r.Fired, r.Errors)
	return b.String()
}

// cmdContext returns the command's context, or Background when the command
// was executed without one.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
