package causaloid

import (
	"fmt"

	"github.com/roach88/causaloid/internal/effect"
)

// Context is read-only access to an external context store.
// Context-aware causal functions receive one; they must not mutate it.
type Context interface {
	// ID identifies the context; ContextLink values carry it.
	ID() uint64

	// Node looks up the value stored at a node id.
	Node(id uint64) (effect.Value, bool)
}

// MapContext is an in-memory Context backed by a map.
// It is immutable after construction and safe for concurrent use.
type MapContext struct {
	id    uint64
	nodes map[uint64]effect.Value
}

// NewMapContext creates a Context; nodes is copied.
func NewMapContext(id uint64, nodes map[uint64]effect.Value) *MapContext {
	c := &MapContext{id: id, nodes: make(map[uint64]effect.Value, len(nodes))}
	for k, v := range nodes {
		c.nodes[k] = v
	}
	return c
}

// ID returns the context id.
func (c *MapContext) ID() uint64 {
	return c.id
}

// Node returns the value at id.
func (c *MapContext) Node(id uint64) (effect.Value, bool) {
	v, ok := c.nodes[id]
	return v, ok
}

// Resolve follows a ContextLink into ctx.
func Resolve(ctx Context, link effect.ContextLink) (effect.Value, error) {
	if ctx == nil {
		return nil, ErrNoContext
	}
	if ctx.ID() != link.ContextID {
		return nil, fmt.Errorf("%w: link=%d context=%d", ErrContextMismatch, link.ContextID, ctx.ID())
	}
	v, ok := ctx.Node(link.NodeID)
	if !ok {
		return nil, fmt.Errorf("%w: node=%d", ErrContextNodeNotFound, link.NodeID)
	}
	return v, nil
}
