package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/causaloid/internal/csm"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

const selectEvaluation = `
	SELECT id, seq, state_id, version, input, input_hash, fired, error, error_kind, trace
	FROM evaluations
`

// ReadEvaluations returns every record for one state.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the state has no records.
func (s *Store) ReadEvaluations(ctx context.Context, stateID uint64) ([]csm.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectEvaluation+`
		WHERE state_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, int64(stateID))
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	return collectEvaluations(rows)
}

// ReadAllEvaluations returns every record in the log.
// Results are ordered deterministically: ORDER BY seq ASC, id ASC COLLATE BINARY.
func (s *Store) ReadAllEvaluations(ctx context.Context) ([]csm.AuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectEvaluation+`
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	return collectEvaluations(rows)
}

// ReadEvaluation returns one record by evaluation id.
// Returns ErrNotFound if the id is not in the log.
func (s *Store) ReadEvaluation(ctx context.Context, id string) (csm.AuditRecord, error) {
	row := s.db.QueryRowContext(ctx, selectEvaluation+`WHERE id = ?`, id)
	rec, err := scanEvaluation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return csm.AuditRecord{}, fmt.Errorf("read evaluation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return csm.AuditRecord{}, fmt.Errorf("read evaluation %s: %w", id, err)
	}
	return rec, nil
}

// CountFired returns how many times the state's action fired.
func (s *Store) CountFired(ctx context.Context, stateID uint64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM evaluations WHERE state_id = ? AND fired = 1`,
		int64(stateID),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count fired: %w", err)
	}
	return n, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEvaluation(row scanner) (csm.AuditRecord, error) {
	var (
		rec       csm.AuditRecord
		stateID   int64
		version   int64
		inputJSON string
		fired     int
		errorKind string
	)
	if err := row.Scan(&rec.ID, &rec.Seq, &stateID, &version, &inputJSON, &rec.InputHash, &fired, &rec.Error, &errorKind, &rec.Trace); err != nil {
		return csm.AuditRecord{}, err
	}

	input, err := unmarshalInput(inputJSON)
	if err != nil {
		return csm.AuditRecord{}, fmt.Errorf("evaluation %s: %w", rec.ID, err)
	}
	rec.StateID = uint64(stateID)
	rec.Version = uint32(version)
	rec.Input = input
	rec.Fired = fired == 1
	rec.ErrorKind = csm.ErrorKind(errorKind)
	return rec, nil
}

func collectEvaluations(rows *sql.Rows) ([]csm.AuditRecord, error) {
	defer rows.Close()

	records := []csm.AuditRecord{}
	for rows.Next() {
		rec, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evaluation: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return records, nil
}
