package causaloid

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/causaloid/internal/effect"
)

// above returns a singleton that is true when its numeric input exceeds limit.
func above(t *testing.T, id uint64, limit float64) *Causaloid {
	t.Helper()
	c, err := New(id, "above threshold", Infallible(func(v effect.Value) effect.Value {
		f, ok := effect.AsFloat(v)
		return effect.Boolean(ok && f > limit)
	}))
	require.NoError(t, err)
	return c
}

// constant returns a singleton that ignores its input and counts its calls.
func constant(t *testing.T, id uint64, out effect.Value, calls *atomic.Int32) *Causaloid {
	t.Helper()
	c, err := New(id, "", Infallible(func(effect.Value) effect.Value {
		if calls != nil {
			calls.Add(1)
		}
		return out
	}))
	require.NoError(t, err)
	return c
}

// addOne returns a singleton that increments its numeric input.
func addOne(t *testing.T, id uint64, calls *atomic.Int32) *Causaloid {
	t.Helper()
	c, err := New(id, "add one", func(v effect.Value) (effect.Value, error) {
		if calls != nil {
			calls.Add(1)
		}
		f, ok := effect.AsFloat(v)
		if !ok {
			return nil, errors.New("not numeric")
		}
		return effect.Numeric(f + 1), nil
	})
	require.NoError(t, err)
	return c
}

func TestSingleton_Evaluate(t *testing.T) {
	c := above(t, 1, 65)

	r := c.Evaluate(effect.Pure(effect.Numeric(70)))
	require.NoError(t, r.Err)
	assert.Equal(t, effect.Boolean(true), r.Value)
	require.Len(t, r.Logs, 1)
	assert.Equal(t, "causaloid/1", r.Logs[0].Source)
	assert.Equal(t, effect.KindObservation, r.Logs[0].Kind)
	assert.Equal(t, "above threshold: Numeric(70) → Boolean(true)", r.Logs[0].Message)

	r = c.Evaluate(effect.Pure(effect.Numeric(60)))
	require.NoError(t, r.Err)
	assert.Equal(t, effect.Boolean(false), r.Value)
}

func TestSingleton_PreservesIncomingLogs(t *testing.T) {
	c := above(t, 1, 65)
	prior := effect.Pure(effect.Numeric(70)).WithEntry(effect.Entry{Source: "monad", Kind: effect.KindObservation, Message: "seed"})

	r := c.Evaluate(prior)
	require.Len(t, r.Logs, 2)
	assert.Equal(t, "seed", r.Logs[0].Message)
	assert.Equal(t, "causaloid/1", r.Logs[1].Source)
}

func TestSingleton_SkipsErroredInput(t *testing.T) {
	var calls atomic.Int32
	c := addOne(t, 1, &calls)
	boom := errors.New("upstream failed")

	r := c.Evaluate(effect.Fail(boom))
	assert.Equal(t, int32(0), calls.Load())
	assert.ErrorIs(t, r.Err, boom)
	assert.Equal(t, effect.None{}, r.Value)
}

func TestSingleton_FunctionError(t *testing.T) {
	domainErr := errors.New("sensor offline")
	c, err := New(7, "reader", func(effect.Value) (effect.Value, error) {
		return nil, domainErr
	})
	require.NoError(t, err)

	r := c.Evaluate(effect.Pure(effect.Numeric(1)))
	require.Error(t, r.Err)
	assert.ErrorIs(t, r.Err, domainErr)

	var fe *FunctionError
	require.True(t, errors.As(r.Err, &fe))
	assert.Equal(t, uint64(7), fe.CausaloidID)
	assert.Equal(t, effect.None{}, r.Value)

	require.Len(t, r.Logs, 1)
	assert.Equal(t, effect.KindError, r.Logs[0].Kind)
	assert.Contains(t, r.Logs[0].Message, "sensor offline")
}

func TestSingleton_PanicBecomesError(t *testing.T) {
	c, err := New(3, "fragile", func(effect.Value) (effect.Value, error) {
		panic("index out of range")
	})
	require.NoError(t, err)

	var r effect.Propagating
	require.NotPanics(t, func() {
		r = c.Evaluate(effect.Pure(effect.Numeric(1)))
	})
	require.Error(t, r.Err)
	assert.Contains(t, r.Err.Error(), "panic: index out of range")
}

func TestSingleton_NilFunctionReturnsNone(t *testing.T) {
	c := constant(t, 1, nil, nil)
	r := c.Evaluate(effect.Pure(effect.Numeric(1)))
	require.NoError(t, r.Err)
	assert.Equal(t, effect.None{}, r.Value)
}

func TestNew_RejectsNilFunction(t *testing.T) {
	_, err := New(1, "x", nil)
	require.Error(t, err)
	assert.True(t, IsStructuralError(err))

	_, err = NewWithContext(1, "x", nil, nil)
	var se *StructuralError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, ErrCodeNilFunction, se.Code)
}

func TestNewWithContext_ResolvesLinks(t *testing.T) {
	ctx := NewMapContext(9, map[uint64]effect.Value{
		100: effect.Numeric(72),
	})
	fn := func(in effect.Value, ctx Context) (effect.Value, error) {
		link, ok := in.(effect.ContextLink)
		if !ok {
			return nil, errors.New("expected context link")
		}
		return Resolve(ctx, link)
	}
	c, err := NewWithContext(1, "lookup", ctx, fn)
	require.NoError(t, err)

	r := c.Evaluate(effect.Pure(effect.ContextLink{ContextID: 9, NodeID: 100}))
	require.NoError(t, r.Err)
	assert.Equal(t, effect.Numeric(72), r.Value)

	r = c.Evaluate(effect.Pure(effect.ContextLink{ContextID: 9, NodeID: 404}))
	assert.ErrorIs(t, r.Err, ErrContextNodeNotFound)

	r = c.Evaluate(effect.Pure(effect.ContextLink{ContextID: 8, NodeID: 100}))
	assert.ErrorIs(t, r.Err, ErrContextMismatch)
}

func TestEvaluateWith_OverridesContext(t *testing.T) {
	bound := NewMapContext(1, map[uint64]effect.Value{5: effect.Numeric(1)})
	override := NewMapContext(2, map[uint64]effect.Value{5: effect.Numeric(2)})

	c, err := NewWithContext(1, "ctx id", bound, func(_ effect.Value, ctx Context) (effect.Value, error) {
		return effect.Numeric(float64(ctx.ID())), nil
	})
	require.NoError(t, err)

	assert.Equal(t, effect.Numeric(1), c.Evaluate(effect.Pure(effect.None{})).Value)
	assert.Equal(t, effect.Numeric(2), c.EvaluateWith(override, effect.Pure(effect.None{})).Value)
	assert.Equal(t, effect.Numeric(1), c.EvaluateWith(nil, effect.Pure(effect.None{})).Value)

	// The override never sticks to the causaloid.
	assert.Equal(t, bound, c.Context())
}

func TestResolve_NoContext(t *testing.T) {
	_, err := Resolve(nil, effect.ContextLink{ContextID: 1, NodeID: 1})
	assert.ErrorIs(t, err, ErrNoContext)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "singleton", KindSingleton.String())
	assert.Equal(t, "collection", KindCollection.String())
	assert.Equal(t, "graph", KindGraph.String())
}
