package csm

import (
	"fmt"

	"github.com/roach88/causaloid/internal/causaloid"
	"github.com/roach88/causaloid/internal/effect"
)

// CausalState is a value-semantic record: a state id, a version, the data
// snapshot it was registered with, and the causaloid that decides whether
// the state is active.
type CausalState struct {
	ID        uint64
	Version   uint32
	Data      effect.Value
	Causaloid *causaloid.Causaloid

	// Context, when set, replaces the contexts bound inside the causaloid.
	Context causaloid.Context
}

// Evaluate runs the state's causaloid against data.
func (s CausalState) Evaluate(data effect.Value) effect.Propagating {
	if s.Causaloid == nil {
		return effect.Fail(fmt.Errorf("state %d has no causaloid", s.ID))
	}
	return s.Causaloid.EvaluateWith(s.Context, effect.Pure(data))
}

// EvaluateSnapshot runs the state's causaloid against its own Data.
func (s CausalState) EvaluateSnapshot() effect.Propagating {
	return s.Evaluate(s.Data)
}

// CausalAction is the side effect paired with a state.
//
// Thread-safety: an action may be fired from several goroutines at once
// when EvaluateAll or concurrent EvaluateSingle calls reach it; fn must be
// safe for that.
type CausalAction struct {
	name string
	fn   func() error
}

// NewAction creates an action. A nil fn makes Fire a no-op.
func NewAction(name string, fn func() error) *CausalAction {
	return &CausalAction{name: name, fn: fn}
}

// Name returns the action name.
func (a *CausalAction) Name() string {
	return a.name
}

// Fire runs the action once. A panic inside fn is returned as an error.
func (a *CausalAction) Fire() (err error) {
	if a.fn == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return a.fn()
}

// StateAction pairs a state with its action.
type StateAction struct {
	State  CausalState
	Action *CausalAction
}

func (p StateAction) validate() error {
	if p.State.Causaloid == nil || p.Action == nil {
		return newRegistryError(ErrCodeInvalidState, p.State.ID)
	}
	return nil
}
