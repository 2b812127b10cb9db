package csm

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/causaloid/internal/causaloid"
	"github.com/roach88/causaloid/internal/effect"
)

// aboveThreshold returns a causaloid that is true when its input exceeds limit.
func aboveThreshold(t *testing.T, id uint64, limit float64) *causaloid.Causaloid {
	t.Helper()
	c, err := causaloid.New(id, "value above threshold", causaloid.Infallible(func(v effect.Value) effect.Value {
		f, ok := effect.AsFloat(v)
		return effect.Boolean(ok && f > limit)
	}))
	require.NoError(t, err)
	return c
}

// counter is an action body that counts how often it fired.
type counter struct {
	n atomic.Int32
}

func (c *counter) action(name string) *CausalAction {
	return NewAction(name, func() error {
		c.n.Add(1)
		return nil
	})
}

func (c *counter) count() int {
	return int(c.n.Load())
}

// state builds a CausalState around a >65 threshold.
func state(t *testing.T, id uint64, data effect.Value) CausalState {
	t.Helper()
	return CausalState{ID: id, Version: 1, Data: data, Causaloid: aboveThreshold(t, id, 65.0)}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingSink captures audit records in memory.
type recordingSink struct {
	mu      sync.Mutex
	records []AuditRecord
	err     error
}

func (s *recordingSink) RecordEvaluation(_ context.Context, rec AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *recordingSink) all() []AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]AuditRecord(nil), s.records...)
}
