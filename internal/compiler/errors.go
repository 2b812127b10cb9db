package compiler

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError is a malformed model definition, located in the CUE source
// when a position is known.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if !e.Pos.IsValid() {
		return e.Field + ": " + e.Message
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s",
		e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
}

// fromCUE converts a CUE load or evaluation error into a CompileError at the
// first reported position. Errors without any position are returned as-is.
func fromCUE(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range errors.Errors(err) {
		if pos := errors.Positions(e); len(pos) > 0 {
			return &CompileError{Field: "cue", Message: e.Error(), Pos: pos[0]}
		}
	}
	return err
}
