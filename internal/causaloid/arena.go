package causaloid

import (
	"slices"
	"sync"
)

// slot locates a causaloid inside the arena's typed buckets.
type slot struct {
	kind  Kind
	index int
}

// Arena is an append-only registry of causaloids keyed by id.
//
// Collections and graphs reference their members by id into an arena rather
// than holding them directly, so logic never forms ownership cycles and
// evaluated data never points back into it. Causaloids are stored in one
// bucket per Kind; the id index maps to (kind, position).
//
// Thread-safety: all methods are safe for concurrent use. Entries are never
// removed or replaced, so a successful lookup stays valid forever.
type Arena struct {
	mu      sync.RWMutex
	buckets [kindCount][]*Causaloid
	index   map[uint64]slot
	order   []uint64 // registration order
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{index: make(map[uint64]slot)}
}

// Register appends c. A second causaloid with the same id is rejected and
// the arena is left unchanged.
func (a *Arena) Register(c *Causaloid) error {
	if c == nil {
		return &StructuralError{Code: ErrCodeEmpty, Message: "cannot register nil causaloid"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.index[c.id]; exists {
		return &StructuralError{
			Code:        ErrCodeDuplicateID,
			CausaloidID: c.id,
			Message:     "causaloid id already registered",
		}
	}
	a.buckets[c.kind] = append(a.buckets[c.kind], c)
	a.index[c.id] = slot{kind: c.kind, index: len(a.buckets[c.kind]) - 1}
	a.order = append(a.order, c.id)
	return nil
}

// MustRegister is like Register but panics on error.
// Use only in tests or static setup with known-unique ids.
func (a *Arena) MustRegister(cs ...*Causaloid) {
	for _, c := range cs {
		if err := a.Register(c); err != nil {
			panic(err)
		}
	}
}

// Get returns the causaloid registered under id.
func (a *Arena) Get(id uint64) (*Causaloid, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.index[id]
	if !ok {
		return nil, false
	}
	return a.buckets[s.kind][s.index], true
}

// Has reports whether id is registered.
func (a *Arena) Has(id uint64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.index[id]
	return ok
}

// Len returns the number of registered causaloids.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.order)
}

// IDs returns ids in registration order.
func (a *Arena) IDs() []uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.order)
}

// ByKind returns the causaloids of one kind in registration order.
func (a *Arena) ByKind(k Kind) []*Causaloid {
	if k < 0 || k >= kindCount {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.buckets[k])
}
