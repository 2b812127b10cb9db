package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/effect"
)

// Explainer evaluates a state without firing its action.
// Implemented by *csm.CSM.
type Explainer interface {
	Explain(id uint64, data effect.Value) (effect.Propagating, error)
}

// Divergence is a recorded evaluation whose outcome differs on replay.
type Divergence struct {
	EvaluationID string
	StateID      uint64
	Seq          int64

	RecordedFired bool
	ReplayedFired bool

	RecordedError string
	ReplayedError string

	// Trace is the explain output of the replayed evaluation.
	Trace string
}

// Replay re-evaluates every recorded input against the current causal model
// and returns the records whose outcome changed. Actions are never fired.
//
// The comparison covers whether the action would fire and whether the
// evaluation errored. Records of cancelled evaluations are skipped. Records
// are visited in log order, so the result is deterministic.
func (s *Store) Replay(ctx context.Context, x Explainer) ([]Divergence, error) {
	records, err := s.ReadAllEvaluations(ctx)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	divergences := []Divergence{}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay: %w", err)
		}

		// A cancelled evaluation never ran, so there is nothing to compare.
		if rec.ErrorKind == csm.ErrorKindCancelled {
			continue
		}

		d := Divergence{
			EvaluationID:  rec.ID,
			StateID:       rec.StateID,
			Seq:           rec.Seq,
			RecordedFired: rec.Fired,
			RecordedError: rec.Error,
		}

		e, err := x.Explain(rec.StateID, rec.Input)
		switch {
		case err != nil:
			d.ReplayedError = err.Error()
		case e.Err != nil:
			d.ReplayedError = e.Err.Error()
			d.Trace = e.Explain()
		default:
			active, _ := e.Bool()
			d.ReplayedFired = active
			d.Trace = e.Explain()
		}

		// A recorded action failure still fired; only evaluation errors count.
		recordedFailed := rec.Error != "" && !rec.Fired
		replayedFailed := d.ReplayedError != ""
		if d.RecordedFired != d.ReplayedFired || recordedFailed != replayedFailed {
			divergences = append(divergences, d)
		}
	}
	return divergences, nil
}

// GetLastSeq returns the highest seq in the log, or 0 if it is empty.
// Pass it to csm.NewClockAt to resume numbering after a restart.
func (s *Store) GetLastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM evaluations`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	if !seq.Valid {
		return 0, nil
	}
	return seq.Int64, nil
}

// ListStateIDs returns every state id that has at least one record,
// in ascending order.
func (s *Store) ListStateIDs(ctx context.Context) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT state_id FROM evaluations ORDER BY state_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list state ids: %w", err)
	}
	defer rows.Close()

	ids := []uint64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan state id: %w", err)
		}
		ids = append(ids, uint64(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state ids: %w", err)
	}
	return ids, nil
}
