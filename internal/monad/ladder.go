// Package monad composes causal steps on the effect monad into the three
// rungs of the ladder of causation:
//
//   - association: Chain binds steps in sequence
//   - intervention: InterveneAt forces a value part-way through a chain
//   - counterfactual: Counterfactual runs the factual and the intervened
//     chain side by side from the same input
//
// Every helper is built only from effect.Pure, effect.Bind and
// effect.Intervene, so the bind and intervene laws carry over unchanged.
package monad

import (
	"fmt"

	"github.com/roach88/causaloid/internal/causaloid"
	"github.com/roach88/causaloid/internal/effect"
)

// Step is one causal transformation on the carried value.
type Step func(effect.Value) effect.Propagating

// Lift wraps a plain function as a step that cannot fail and logs nothing.
func Lift(f func(effect.Value) effect.Value) Step {
	return func(v effect.Value) effect.Propagating {
		return effect.Pure(f(v))
	}
}

// FromCausaloid turns a causaloid into a step.
func FromCausaloid(c *causaloid.Causaloid) Step {
	return func(v effect.Value) effect.Propagating {
		return c.Evaluate(effect.Pure(v))
	}
}

// Chain binds steps in order, starting from e. An error in any step
// short-circuits the remaining steps.
func Chain(e effect.Propagating, steps ...Step) effect.Propagating {
	for _, s := range steps {
		e = effect.Bind(e, s)
	}
	return e
}

// InterveneAt runs steps[:at], forces the carried value to forced, then runs
// steps[at:]. at == 0 intervenes before the first step; at == len(steps)
// intervenes after the last.
func InterveneAt(e effect.Propagating, steps []Step, at int, forced effect.Value) (effect.Propagating, error) {
	if at < 0 || at > len(steps) {
		return effect.Propagating{}, fmt.Errorf("intervention point %d out of range [0, %d]", at, len(steps))
	}
	e = Chain(e, steps[:at]...)
	e = effect.Intervene(e, forced)
	return Chain(e, steps[at:]...), nil
}

// Outcome pairs the factual and the counterfactual result of one query.
type Outcome struct {
	Factual        effect.Propagating
	Counterfactual effect.Propagating
}

// Changed reports whether the intervention altered the final value or the
// error state.
func (o Outcome) Changed() bool {
	if (o.Factual.Err == nil) != (o.Counterfactual.Err == nil) {
		return true
	}
	return !effect.Equal(o.Factual.Value, o.Counterfactual.Value)
}

// Counterfactual answers "what would the result have been had the value at
// step at been forced": it runs the chain once as observed and once with
// the intervention, both from the same input.
func Counterfactual(input effect.Value, steps []Step, at int, forced effect.Value) (Outcome, error) {
	cf, err := InterveneAt(effect.Pure(input), steps, at, forced)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{
		Factual:        Chain(effect.Pure(input), steps...),
		Counterfactual: cf,
	}, nil
}
