package monad

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/causaloid/internal/effect"
	"github.com/roach88/causaloid/internal/testutil"
)

func double() Step {
	return func(v effect.Value) effect.Propagating {
		f, _ := effect.AsFloat(v)
		return effect.Pure(effect.Numeric(f * 2)).WithEntry(effect.Entry{
			Source: "test", Kind: effect.KindObservation, Message: "doubled",
		})
	}
}

func threshold(limit float64) Step {
	return FromCausaloid(testutil.Threshold(1, limit))
}

func TestChain_Association(t *testing.T) {
	r := Chain(effect.Pure(effect.Numeric(3)), double(), double())
	require.NoError(t, r.Err)
	assert.Equal(t, effect.Numeric(12), r.Value)
	assert.Len(t, r.Logs, 2)
}

func TestChain_NoSteps(t *testing.T) {
	start := effect.Pure(effect.Numeric(1))
	assert.Equal(t, start, Chain(start))
}

func TestChain_ShortCircuits(t *testing.T) {
	calls := 0
	counting := func(v effect.Value) effect.Propagating {
		calls++
		return effect.Pure(v)
	}
	boom := errors.New("boom")
	failing := func(effect.Value) effect.Propagating { return effect.Fail(boom) }

	r := Chain(effect.Pure(effect.Numeric(1)), counting, failing, counting, counting)
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, 1, calls)
}

func TestChain_WithCausaloid(t *testing.T) {
	r := Chain(effect.Pure(effect.Numeric(20)), double(), threshold(30))
	require.NoError(t, r.Err)
	assert.Equal(t, effect.Boolean(true), r.Value)
	require.Len(t, r.Logs, 2)
	assert.Equal(t, "causaloid/1", r.Logs[1].Source)
}

func TestInterveneAt(t *testing.T) {
	steps := []Step{double(), threshold(30)}

	r, err := InterveneAt(effect.Pure(effect.Numeric(20)), steps, 1, effect.Numeric(5))
	require.NoError(t, err)
	require.NoError(t, r.Err)
	assert.Equal(t, effect.Boolean(false), r.Value)

	require.Len(t, r.Logs, 3)
	assert.Equal(t, effect.KindIntervention, r.Logs[1].Kind)
	assert.Equal(t, "discarded Numeric(40), forced Numeric(5)", r.Logs[1].Message)
}

func TestInterveneAt_Bounds(t *testing.T) {
	steps := []Step{double()}

	r, err := InterveneAt(effect.Pure(effect.Numeric(1)), steps, 0, effect.Numeric(10))
	require.NoError(t, err)
	assert.Equal(t, effect.Numeric(20), r.Value)

	r, err = InterveneAt(effect.Pure(effect.Numeric(1)), steps, 1, effect.Numeric(10))
	require.NoError(t, err)
	assert.Equal(t, effect.Numeric(10), r.Value)

	_, err = InterveneAt(effect.Pure(effect.Numeric(1)), steps, 2, effect.Numeric(10))
	assert.Error(t, err)
	_, err = InterveneAt(effect.Pure(effect.Numeric(1)), steps, -1, effect.Numeric(10))
	assert.Error(t, err)
}

func TestInterveneAt_KeepsUpstreamError(t *testing.T) {
	boom := errors.New("sensor lost")
	failing := func(effect.Value) effect.Propagating { return effect.Fail(boom) }
	calls := 0
	after := func(v effect.Value) effect.Propagating {
		calls++
		return effect.Pure(v)
	}

	r, err := InterveneAt(effect.Pure(effect.Numeric(1)), []Step{failing, after}, 1, effect.Numeric(9))
	require.NoError(t, err)
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, 0, calls, "steps after an errored intervention still short-circuit")
	assert.Equal(t, effect.None{}, r.Value)
}

func TestCounterfactual(t *testing.T) {
	steps := []Step{double(), threshold(30)}

	out, err := Counterfactual(effect.Numeric(20), steps, 1, effect.Numeric(5))
	require.NoError(t, err)

	assert.Equal(t, effect.Boolean(true), out.Factual.Value)
	assert.Equal(t, effect.Boolean(false), out.Counterfactual.Value)
	assert.True(t, out.Changed())
	assert.Len(t, out.Factual.Logs, 2)
	assert.Len(t, out.Counterfactual.Logs, 3)
}

func TestCounterfactual_Unchanged(t *testing.T) {
	steps := []Step{double(), threshold(30)}

	out, err := Counterfactual(effect.Numeric(20), steps, 1, effect.Numeric(100))
	require.NoError(t, err)
	assert.False(t, out.Changed())
}

func TestCounterfactual_InterventionRepairsFailure(t *testing.T) {
	out, err := Counterfactual(effect.Boolean(true), []Step{threshold(30)}, 0, effect.Numeric(50))
	require.NoError(t, err)

	require.Error(t, out.Factual.Err)
	assert.Contains(t, out.Factual.Err.Error(), "expected numeric input, got Boolean(true)")
	require.NoError(t, out.Counterfactual.Err)
	assert.Equal(t, effect.Boolean(true), out.Counterfactual.Value)
	assert.True(t, out.Changed(), "an error on one side only is a change")
}

func TestCounterfactual_InvalidPoint(t *testing.T) {
	_, err := Counterfactual(effect.Numeric(1), nil, 1, effect.Numeric(1))
	assert.Error(t, err)
}

func TestLift(t *testing.T) {
	neg := Lift(func(v effect.Value) effect.Value {
		b, _ := effect.AsBool(v)
		return effect.Boolean(!b)
	})
	r := Chain(effect.Pure(effect.Boolean(true)), neg)
	assert.Equal(t, effect.Boolean(false), r.Value)
	assert.Empty(t, r.Logs)
}
