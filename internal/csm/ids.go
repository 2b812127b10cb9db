package csm

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces evaluation ids for audit correlation.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type IDGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 evaluation ids.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined ids for deterministic tests. Once
// they are used up it continues with "<last>-1", "<last>-2", ... ("fixed-N"
// when constructed empty), so evaluation never fails for want of an id.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu    sync.Mutex
	ids   []string
	idx   int
	extra int
}

// NewFixedGenerator creates a generator that returns ids in order.
func NewFixedGenerator(ids ...string) *FixedGenerator {
	return &FixedGenerator{ids: ids}
}

// Generate returns the next predetermined id, or an overflow id after the
// list is exhausted.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx < len(g.ids) {
		id := g.ids[g.idx]
		g.idx++
		return id
	}
	g.extra++
	prefix := "fixed"
	if len(g.ids) > 0 {
		prefix = g.ids[len(g.ids)-1]
	}
	return fmt.Sprintf("%s-%d", prefix, g.extra)
}

// SequenceGenerator returns "<prefix>-1", "<prefix>-2", ... without limit.
type SequenceGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequenceGenerator creates a counting generator.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// Generate returns the next id.
func (g *SequenceGenerator) Generate() string {
	return fmt.Sprintf("%s-%d", g.prefix, g.n.Add(1))
}

// Sequencer issues the logical sequence numbers stamped on evaluations.
// Implemented by Clock.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock stamping evaluations in the order they
// start. Wall-clock time is never used for ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming after start, e.g. the highest seq
// already persisted in an audit store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
