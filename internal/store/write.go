package store

import (
	"context"
	"fmt"

	"github.com/roach88/causaloid/internal/csm"
)

var _ csm.AuditSink = (*Store)(nil)

// RecordEvaluation inserts an audit record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a record written twice
// is silently ignored. Other constraint violations still return errors.
//
// The input value is stored as tagged JSON so replay re-evaluates it as given.
func (s *Store) RecordEvaluation(ctx context.Context, rec csm.AuditRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("record evaluation: empty evaluation id")
	}

	inputJSON, err := marshalInput(rec.Input)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO evaluations
		(id, seq, state_id, version, input, input_hash, fired, error, error_kind, trace)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		int64(rec.StateID),
		int64(rec.Version),
		inputJSON,
		rec.InputHash,
		boolToInt(rec.Fired),
		rec.Error,
		string(rec.ErrorKind),
		rec.Trace,
	)
	if err != nil {
		return fmt.Errorf("record evaluation: %w", err)
	}

	return nil
}
