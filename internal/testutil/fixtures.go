package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/causaloid/internal/causaloid"
	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/effect"
)

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Threshold returns a singleton causaloid that is true when its numeric
// input exceeds limit. Non-numeric input is an error.
func Threshold(id uint64, limit float64) *causaloid.Causaloid {
	c, err := causaloid.New(id, fmt.Sprintf("above %g", limit), func(in effect.Value) (effect.Value, error) {
		x, ok := effect.AsFloat(in)
		if !ok {
			return nil, fmt.Errorf("expected numeric input, got %s", effect.Format(in))
		}
		return effect.Boolean(x > limit), nil
	})
	if err != nil {
		panic(err) // only a nil function fails
	}
	return c
}

// ActionRecorder hands out actions that record, in order, which of them
// fired. Safe for concurrent use.
type ActionRecorder struct {
	mu    sync.Mutex
	fired []string
	fails map[string]error
	total atomic.Int64
}

// NewActionRecorder creates an empty recorder.
func NewActionRecorder() *ActionRecorder {
	return &ActionRecorder{fails: make(map[string]error)}
}

// FailWith makes the named action return err after recording its firing.
func (r *ActionRecorder) FailWith(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fails[name] = err
}

// Action returns a recording action with the given name.
func (r *ActionRecorder) Action(name string) *csm.CausalAction {
	return csm.NewAction(name, func() error {
		r.total.Add(1)
		r.mu.Lock()
		defer r.mu.Unlock()
		r.fired = append(r.fired, name)
		return r.fails[name]
	})
}

// Fired returns the names of fired actions in firing order.
func (r *ActionRecorder) Fired() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.fired))
	copy(out, r.fired)
	return out
}

// Count returns how many times any action fired.
func (r *ActionRecorder) Count() int {
	return int(r.total.Load())
}

// Reset forgets every recorded firing. Failures stay configured.
func (r *ActionRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fired = nil
	r.total.Store(0)
}
