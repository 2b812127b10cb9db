package csm

import (
	"log/slog"
	"runtime"
	"slices"
	"sync"
)

// entry is one registered pair. Entries are replaced, never mutated.
type entry struct {
	state  CausalState
	action *CausalAction
}

// registry maps state ids to entries.
type registry map[uint64]entry

// insert adds e unless its id is present. The return value is the
// registry's own verdict on uniqueness; callers never pre-check.
func (r registry) insert(e entry) bool {
	if _, exists := r[e.state.ID]; exists {
		return false
	}
	r[e.state.ID] = e
	return true
}

// CSM is the Causal State Machine.
//
// INVARIANTS:
//   - The registry never holds two entries with the same state id
//   - A failed mutation leaves the registry unchanged
//   - No lock is held while a causaloid evaluates or an action fires
type CSM struct {
	mu    sync.RWMutex
	state registry

	logger      *slog.Logger
	sink        AuditSink
	ids         IDGenerator
	clock       Sequencer
	parallelism int

	metrics *metrics
}

// Option configures a CSM.
type Option func(*CSM)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *CSM) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithAuditSink records every evaluation to sink.
func WithAuditSink(sink AuditSink) Option {
	return func(c *CSM) {
		c.sink = sink
	}
}

// WithIDGenerator sets the evaluation id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *CSM) {
		if g != nil {
			c.ids = g
		}
	}
}

// WithClock sets the logical clock, e.g. NewClockAt to resume after the
// last persisted audit record.
func WithClock(clock Sequencer) Option {
	return func(c *CSM) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithParallelism bounds the number of states EvaluateAll evaluates at once.
// Default: runtime.GOMAXPROCS(0). Values below 1 are treated as 1.
func WithParallelism(n int) Option {
	return func(c *CSM) {
		c.parallelism = max(n, 1)
	}
}

// New creates a CSM holding pairs.
//
// Construction fails closed: if two pairs share a state id, no CSM is
// returned. Duplicates are detected by the registry's own insert outcome.
func New(pairs []StateAction, opts ...Option) (*CSM, error) {
	c := &CSM{
		state:       make(registry, len(pairs)),
		logger:      slog.Default(),
		ids:         UUIDv7Generator{},
		clock:       NewClock(),
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newMetrics(c.logger)

	for _, p := range pairs {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if !c.state.insert(entry{state: p.State, action: p.Action}) {
			return nil, newRegistryError(ErrCodeDuplicateID, p.State.ID)
		}
	}

	c.logger.Debug("csm created", "states", len(c.state))
	return c, nil
}

// Add registers a new pair. Fails with ALREADY_EXISTS if the id is taken.
//
// CRITICAL: the existence check and the insert share one exclusive critical
// section. Of N concurrent Adds for one id, exactly one succeeds.
func (c *CSM) Add(state CausalState, action *CausalAction) error {
	p := StateAction{State: state, Action: action}
	if err := p.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	inserted := c.state.insert(entry{state: state, action: action})
	c.mu.Unlock()

	if !inserted {
		return newRegistryError(ErrCodeAlreadyExists, state.ID)
	}
	c.logger.Debug("state added", "state_id", state.ID, "version", state.Version)
	return nil
}

// Update replaces the pair registered under state.ID.
func (c *CSM) Update(state CausalState, action *CausalAction) error {
	p := StateAction{State: state, Action: action}
	if err := p.validate(); err != nil {
		return err
	}

	c.mu.Lock()
	_, exists := c.state[state.ID]
	if exists {
		c.state[state.ID] = entry{state: state, action: action}
	}
	c.mu.Unlock()

	if !exists {
		return newRegistryError(ErrCodeNotFound, state.ID)
	}
	c.logger.Debug("state updated", "state_id", state.ID, "version", state.Version)
	return nil
}

// UpdateAll replaces the whole registry with pairs.
//
// The replacement is built and checked for duplicate ids before it is
// swapped in, so a rejected batch leaves the old registry intact.
func (c *CSM) UpdateAll(pairs []StateAction) error {
	next := make(registry, len(pairs))
	for _, p := range pairs {
		if err := p.validate(); err != nil {
			return err
		}
		if !next.insert(entry{state: p.State, action: p.Action}) {
			return newRegistryError(ErrCodeDuplicateID, p.State.ID)
		}
	}

	c.mu.Lock()
	c.state = next
	c.mu.Unlock()

	c.logger.Debug("registry replaced", "states", len(next))
	return nil
}

// Remove deletes the pair registered under id.
func (c *CSM) Remove(id uint64) error {
	c.mu.Lock()
	_, exists := c.state[id]
	if exists {
		delete(c.state, id)
	}
	c.mu.Unlock()

	if !exists {
		return newRegistryError(ErrCodeNotFound, id)
	}
	c.logger.Debug("state removed", "state_id", id)
	return nil
}

// Len returns the number of registered states.
func (c *CSM) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.state)
}

// Get returns the pair registered under id.
func (c *CSM) Get(id uint64) (StateAction, bool) {
	c.mu.RLock()
	e, ok := c.state[id]
	c.mu.RUnlock()
	if !ok {
		return StateAction{}, false
	}
	return StateAction{State: e.state, Action: e.action}, true
}

// IDs returns the registered state ids in ascending order.
func (c *CSM) IDs() []uint64 {
	c.mu.RLock()
	ids := make([]uint64, 0, len(c.state))
	for id := range c.state {
		ids = append(ids, id)
	}
	c.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// lookup copies the entry for id under the read lock.
func (c *CSM) lookup(id uint64) (entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.state[id]
	return e, ok
}

// snapshot copies every entry under the read lock, sorted by state id.
func (c *CSM) snapshot() []entry {
	c.mu.RLock()
	out := make([]entry, 0, len(c.state))
	for _, e := range c.state {
		out = append(out, e)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b entry) int {
		switch {
		case a.state.ID < b.state.ID:
			return -1
		case a.state.ID > b.state.ID:
			return 1
		default:
			return 0
		}
	})
	return out
}
