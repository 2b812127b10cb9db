package csm

import (
	"context"
	"errors"

	"github.com/roach88/causaloid/internal/effect"
)

// AuditRecord is the persisted account of one state evaluation.
type AuditRecord struct {
	ID        string // evaluation id from the IDGenerator
	Seq       int64  // logical clock stamp
	StateID   uint64
	Version   uint32
	Input     effect.Value
	Fired     bool
	Error     string // empty on success
	ErrorKind ErrorKind
	InputHash string // effect.Hash of the input, empty if unhashable
	Trace     string // effect explain output
}

// ErrorKind classifies the error of an audited evaluation.
type ErrorKind string

const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindEvaluation ErrorKind = "evaluation" // the causaloid failed
	ErrorKindAction     ErrorKind = "action"     // fired, but the action failed
	ErrorKindCancelled  ErrorKind = "cancelled"  // context done before evaluating
)

// errorKind classifies err as recorded in an AuditRecord.
func errorKind(err error) ErrorKind {
	var (
		actionErr *ActionError
		evalErr   *EvaluationError
	)
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.As(err, &actionErr):
		return ErrorKindAction
	case errors.As(err, &evalErr):
		return ErrorKindEvaluation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	default:
		return ErrorKindEvaluation
	}
}

// AuditSink receives one record per evaluation.
// Implemented by store.Store.
type AuditSink interface {
	RecordEvaluation(ctx context.Context, rec AuditRecord) error
}

// newAuditRecord builds the record for a finished evaluation.
func newAuditRecord(res Result, input effect.Value) AuditRecord {
	rec := AuditRecord{
		ID:      res.EvaluationID,
		Seq:     res.Seq,
		StateID: res.StateID,
		Version: res.Version,
		Input:   effect.OrNone(input),
		Fired:   res.Fired,
		Trace:   res.Effect.Explain(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
		rec.ErrorKind = errorKind(res.Err)
	}
	if h, err := effect.Hash(input); err == nil {
		rec.InputHash = h
	}
	return rec
}
