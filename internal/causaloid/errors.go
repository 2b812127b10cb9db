package causaloid

import (
	"errors"
	"fmt"
)

// StructuralErrorCode categorizes construction-time errors.
type StructuralErrorCode string

const (
	// ErrCodeDuplicateID indicates a causaloid id is already registered in the arena.
	ErrCodeDuplicateID StructuralErrorCode = "DUPLICATE_ID"

	// ErrCodeUnknownMember indicates a collection or graph references an unregistered id.
	ErrCodeUnknownMember StructuralErrorCode = "UNKNOWN_MEMBER"

	// ErrCodeDuplicateMember indicates the same member id appears twice in a collection.
	ErrCodeDuplicateMember StructuralErrorCode = "DUPLICATE_MEMBER"

	// ErrCodeSelfReference indicates a collection or graph lists itself as a member.
	ErrCodeSelfReference StructuralErrorCode = "SELF_REFERENCE"

	// ErrCodeNilFunction indicates a singleton was constructed without a function.
	ErrCodeNilFunction StructuralErrorCode = "NIL_FUNCTION"

	// ErrCodeInvalidPolicy indicates an aggregation policy that cannot be satisfied.
	ErrCodeInvalidPolicy StructuralErrorCode = "INVALID_POLICY"

	// ErrCodeEmpty indicates a collection without members or a missing graph/arena.
	ErrCodeEmpty StructuralErrorCode = "EMPTY"
)

// StructuralError rejects a causaloid before any evaluation can occur.
type StructuralError struct {
	Code        StructuralErrorCode
	CausaloidID uint64
	MemberID    uint64 // set for member-related codes
	Message     string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	switch e.Code {
	case ErrCodeUnknownMember, ErrCodeDuplicateMember, ErrCodeSelfReference:
		return fmt.Sprintf("%s: %s (causaloid=%d, member=%d)", e.Code, e.Message, e.CausaloidID, e.MemberID)
	default:
		return fmt.Sprintf("%s: %s (causaloid=%d)", e.Code, e.Message, e.CausaloidID)
	}
}

// IsStructuralError returns true if err is a construction-time rejection.
// Uses errors.As to handle wrapped errors.
func IsStructuralError(err error) bool {
	var se *StructuralError
	return errors.As(err, &se)
}

// EvalErrorCode categorizes failures raised by the evaluation engine itself,
// as opposed to failures returned by user causal functions.
type EvalErrorCode string

const (
	// ErrCodeNonBoolean indicates a member produced a non-boolean value under a boolean policy.
	ErrCodeNonBoolean EvalErrorCode = "NON_BOOLEAN"

	// ErrCodeInvalidRelay indicates a relay to an unknown node or to one already evaluated.
	ErrCodeInvalidRelay EvalErrorCode = "INVALID_RELAY"

	// ErrCodeMissingMember indicates an arena lookup failed during evaluation.
	// The arena is append-only, so this signals a broken internal invariant.
	ErrCodeMissingMember EvalErrorCode = "MISSING_MEMBER"
)

// EvalError is carried in the effect's error channel when evaluation itself
// cannot continue.
type EvalError struct {
	Code        EvalErrorCode
	CausaloidID uint64
	Message     string
}

// Error implements the error interface.
func (e *EvalError) Error() string {
	return fmt.Sprintf("%s: %s (causaloid=%d)", e.Code, e.Message, e.CausaloidID)
}

// FunctionError wraps a failure returned (or panicked) by a causal function.
type FunctionError struct {
	CausaloidID uint64
	Err         error
}

// Error implements the error interface.
func (e *FunctionError) Error() string {
	return fmt.Sprintf("causaloid %d: %v", e.CausaloidID, e.Err)
}

// Unwrap returns the underlying domain error.
func (e *FunctionError) Unwrap() error {
	return e.Err
}

// Context lookup failures returned by Resolve.
var (
	ErrNoContext           = errors.New("causaloid has no context")
	ErrContextMismatch     = errors.New("context link points at a different context")
	ErrContextNodeNotFound = errors.New("context node not found")
)
