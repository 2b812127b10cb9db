package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/effect"
	"github.com/roach88/causaloid/internal/store"
)

// HistoryOptions holds the flags of the history command.
type HistoryOptions struct {
	*RootOptions
	DBPath       string
	StateID      uint64
	EvaluationID string
	FiredOnly    bool
}

// RecordInfo is one audit record.
type RecordInfo struct {
	EvaluationID string `json:"evaluation_id"`
	Seq          int64  `json:"seq"`
	StateID      uint64 `json:"state_id"`
	Version      uint32 `json:"version"`
	Input        string `json:"input"`
	InputHash    string `json:"input_hash,omitempty"`
	Fired        bool   `json:"fired"`
	Error        string `json:"error,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	Trace        string `json:"trace,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded evaluations from an audit database",
		Long: `List evaluations recorded by "eval --db", in log order.

--state limits the list to one state id. --evaluation shows a single
record together with its full causal explanation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite audit database (required)")
	cmd.Flags().Uint64Var(&opts.StateID, "state", 0, "only records for this state id")
	cmd.Flags().StringVar(&opts.EvaluationID, "evaluation", "", "show one evaluation with its trace")
	cmd.Flags().BoolVar(&opts.FiredOnly, "fired", false, "only evaluations that fired")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	ctx := cmdContext(cmd)

	st, err := openExisting(opts.DBPath)
	if err != nil {
		return reportError(f, ExitCommandError, err)
	}
	defer st.Close()

	if opts.EvaluationID != "" {
		rec, err := st.ReadEvaluation(ctx, opts.EvaluationID)
		if err != nil {
			return reportError(f, ExitCommandError, &LoadError{Code: ErrCodeDatabase, Message: "failed to read evaluation", Err: err})
		}
		info := recordInfo(rec, true)
		return f.Emit(info.line()+"\n"+info.Trace, info)
	}

	var records []csm.AuditRecord
	if cmd.Flags().Changed("state") {
		records, err = st.ReadEvaluations(ctx, opts.StateID)
	} else {
		records, err = st.ReadAllEvaluations(ctx)
	}
	if err != nil {
		return reportError(f, ExitCommandError, &LoadError{Code: ErrCodeDatabase, Message: "failed to read evaluations", Err: err})
	}

	infos := make([]RecordInfo, 0, len(records))
	for _, rec := range records {
		if opts.FiredOnly && !rec.Fired {
			continue
		}
		infos = append(infos, recordInfo(rec, false))
	}

	var b strings.Builder
	for _, info := range infos {
		b.WriteString(info.line())
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d evaluations", len(infos))
	return f.Emit(b.String(), infos)
}

// openExisting opens an audit database that must already exist. store.Open
// would otherwise create an empty one.
func openExisting(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &LoadError{Code: ErrCodePathNotFound, Message: "database not found: " + path, Err: err}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Message: "failed to open audit database", Err: err}
	}
	return st, nil
}

func recordInfo(rec csm.AuditRecord, withTrace bool) RecordInfo {
	info := RecordInfo{
		EvaluationID: rec.ID,
		Seq:          rec.Seq,
		StateID:      rec.StateID,
		Version:      rec.Version,
		Input:        effect.Format(effect.OrNone(rec.Input)),
		InputHash:    rec.InputHash,
		Fired:        rec.Fired,
		Error:        rec.Error,
		ErrorKind:    string(rec.ErrorKind),
	}
	if withTrace {
		info.Trace = rec.Trace
	}
	return info
}

func (r RecordInfo) line() string {
	s := fmt.Sprintf("[%d] %s state=%d v%d input=%s fired=%t", r.Seq, r.EvaluationID, r.StateID, r.Version, r.Input, r.Fired)
	if r.Error != "" {
		s += " error: " + r.Error
	}
	return s
}
