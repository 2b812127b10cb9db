package testutil

import (
	"sync"

	"github.com/roach88/causaloid/internal/csm"
)

var _ csm.Sequencer = (*DeterministicClock)(nil)

// DeterministicClock is a resettable logical clock for csm.WithClock.
//
// csm.Clock only moves forward. DeterministicClock can be rewound so one
// scenario run twice stamps identical seq values, which golden traces rely on.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock creates a clock whose first Next returns 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next advances the clock and returns the new seq.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the last issued seq.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset rewinds the clock so the next call to Next returns 1.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}
