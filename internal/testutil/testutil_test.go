package testutil

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/causaloid/internal/effect"
)

func TestDeterministicClock_NextAndReset(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, int64(0), clock.Current())

	assert.Equal(t, int64(1), clock.Next())
	assert.Equal(t, int64(2), clock.Next())
	assert.Equal(t, int64(2), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next())
}

func TestDeterministicClock_ThreadSafe(t *testing.T) {
	clock := NewDeterministicClock()
	const goroutines, calls = 50, 100

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[int64]bool)
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < calls; j++ {
				v := clock.Next()
				mu.Lock()
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, goroutines*calls)
	for i := int64(1); i <= goroutines*calls; i++ {
		assert.True(t, seen[i], "missing seq %d", i)
	}
}

func TestThreshold(t *testing.T) {
	c := Threshold(7, 65)
	assert.Equal(t, "above 65", c.Description())

	res := c.Evaluate(effect.Pure(effect.Numeric(70)))
	require.NoError(t, res.Err)
	assert.Equal(t, effect.Boolean(true), res.Value)

	res = c.Evaluate(effect.Pure(effect.Boolean(true)))
	assert.ErrorContains(t, res.Err, "expected numeric input")
}

func TestActionRecorder(t *testing.T) {
	r := NewActionRecorder()
	boom := errors.New("boom")
	r.FailWith("b", boom)

	require.NoError(t, r.Action("a").Fire())
	assert.ErrorIs(t, r.Action("b").Fire(), boom)
	require.NoError(t, r.Action("a").Fire())

	assert.Equal(t, []string{"a", "b", "a"}, r.Fired())
	assert.Equal(t, 3, r.Count())

	r.Reset()
	assert.Empty(t, r.Fired())
	assert.Equal(t, 0, r.Count())
}
