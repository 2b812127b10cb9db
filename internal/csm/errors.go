package csm

import (
	"errors"
	"fmt"
)

// RegistryErrorCode categorizes registry-mutation errors.
type RegistryErrorCode string

const (
	// ErrCodeDuplicateID indicates two pairs in one batch share a state id.
	ErrCodeDuplicateID RegistryErrorCode = "DUPLICATE_ID"

	// ErrCodeAlreadyExists indicates Add found the state id already registered.
	ErrCodeAlreadyExists RegistryErrorCode = "ALREADY_EXISTS"

	// ErrCodeNotFound indicates the state id is not registered.
	ErrCodeNotFound RegistryErrorCode = "NOT_FOUND"

	// ErrCodeInvalidState indicates a pair with no causaloid or no action.
	ErrCodeInvalidState RegistryErrorCode = "INVALID_STATE"
)

// RegistryError is returned by a failed registry operation.
// The registry is left unchanged whenever one is returned.
type RegistryError struct {
	Code    RegistryErrorCode
	StateID uint64
	Message string
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	return fmt.Sprintf("%s: %s (state=%d)", e.Code, e.Message, e.StateID)
}

func newRegistryError(code RegistryErrorCode, id uint64) *RegistryError {
	var msg string
	switch code {
	case ErrCodeDuplicateID:
		msg = "state id appears more than once"
	case ErrCodeAlreadyExists:
		msg = "state id already registered"
	case ErrCodeNotFound:
		msg = "state id not registered"
	default:
		msg = "state pair is invalid"
	}
	return &RegistryError{Code: code, StateID: id, Message: msg}
}

func hasCode(err error, code RegistryErrorCode) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsAlreadyExists returns true if err reports an id that is already registered.
// Uses errors.As to handle wrapped errors.
func IsAlreadyExists(err error) bool {
	return hasCode(err, ErrCodeAlreadyExists)
}

// IsNotFound returns true if err reports an unregistered id.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsDuplicate returns true if err reports a repeated id within one batch.
func IsDuplicate(err error) bool {
	return hasCode(err, ErrCodeDuplicateID)
}

// EvaluationError reports a state whose causaloid resolved to an error.
// Trace is the explain output of the failed effect.
type EvaluationError struct {
	StateID uint64
	Err     error
	Trace   string
}

// Error implements the error interface.
func (e *EvaluationError) Error() string {
	return fmt.Sprintf("state %d: evaluation failed: %v", e.StateID, e.Err)
}

// Unwrap returns the causal-function error.
func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// ActionError reports an action that was fired and failed.
// The CSM never retries a failed action.
type ActionError struct {
	StateID uint64
	Action  string
	Err     error
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("state %d: action %q failed: %v", e.StateID, e.Action, e.Err)
}

// Unwrap returns the action's own error.
func (e *ActionError) Unwrap() error {
	return e.Err
}
