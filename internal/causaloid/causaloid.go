// Package causaloid implements the unit of causal logic and its evaluation.
//
// A causaloid is one of three shapes:
//   - Singleton: a causal function from an input value to an output value,
//     optionally reading an external Context
//   - Collection: an ordered list of member causaloids combined by a Policy
//   - Graph: member causaloids arranged in a DAG and evaluated in
//     topological order
//
// Members are referenced by id into an Arena, never held directly. Causaloids
// are immutable after construction; evaluation never mutates them, so one
// causaloid may be evaluated concurrently from many goroutines.
package causaloid

import (
	"fmt"
	"slices"

	"github.com/roach88/causaloid/internal/effect"
	"github.com/roach88/causaloid/internal/topology"
)

// Kind identifies the shape of a causaloid.
type Kind int

const (
	KindSingleton Kind = iota
	KindCollection
	KindGraph

	kindCount
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindSingleton:
		return "singleton"
	case KindCollection:
		return "collection"
	case KindGraph:
		return "graph"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Fn is a causal function. A returned error is fatal for the evaluation.
type Fn func(in effect.Value) (effect.Value, error)

// ContextFn is a causal function with read access to a Context.
// ctx is nil when the causaloid was built without one and no override is given.
type ContextFn func(in effect.Value, ctx Context) (effect.Value, error)

// Infallible adapts a function that cannot fail.
func Infallible(f func(effect.Value) effect.Value) Fn {
	return func(in effect.Value) (effect.Value, error) {
		return f(in), nil
	}
}

// Causaloid is an immutable unit of causal logic.
type Causaloid struct {
	id          uint64
	description string
	kind        Kind

	// Singleton
	fn    Fn
	ctxFn ContextFn
	ctx   Context

	// Collection and Graph
	arena     *Arena
	members   []uint64 // evaluation order
	positions map[uint64]int
	policy    Policy
	graph     *topology.Graph
}

// New creates a singleton causaloid.
func New(id uint64, description string, fn Fn) (*Causaloid, error) {
	if fn == nil {
		return nil, &StructuralError{Code: ErrCodeNilFunction, CausaloidID: id, Message: "singleton requires a causal function"}
	}
	return &Causaloid{id: id, description: description, kind: KindSingleton, fn: fn}, nil
}

// NewWithContext creates a singleton causaloid whose function reads ctx.
func NewWithContext(id uint64, description string, ctx Context, fn ContextFn) (*Causaloid, error) {
	if fn == nil {
		return nil, &StructuralError{Code: ErrCodeNilFunction, CausaloidID: id, Message: "singleton requires a causal function"}
	}
	return &Causaloid{id: id, description: description, kind: KindSingleton, ctxFn: fn, ctx: ctx}, nil
}

// NewCollection creates a collection over members already registered in arena.
// Members are evaluated in the given order.
func NewCollection(id uint64, description string, arena *Arena, memberIDs []uint64, policy Policy) (*Causaloid, error) {
	if arena == nil {
		return nil, &StructuralError{Code: ErrCodeEmpty, CausaloidID: id, Message: "collection requires an arena"}
	}
	if len(memberIDs) == 0 {
		return nil, &StructuralError{Code: ErrCodeEmpty, CausaloidID: id, Message: "collection has no members"}
	}

	positions := make(map[uint64]int, len(memberIDs))
	for i, m := range memberIDs {
		if err := checkMember(id, arena, m); err != nil {
			return nil, err
		}
		if _, dup := positions[m]; dup {
			return nil, &StructuralError{Code: ErrCodeDuplicateMember, CausaloidID: id, MemberID: m, Message: "member listed twice"}
		}
		positions[m] = i
	}
	if err := policy.validate(len(memberIDs)); err != nil {
		return nil, &StructuralError{Code: ErrCodeInvalidPolicy, CausaloidID: id, Message: err.Error()}
	}

	return &Causaloid{
		id:          id,
		description: description,
		kind:        KindCollection,
		arena:       arena,
		members:     slices.Clone(memberIDs),
		positions:   positions,
		policy:      policy,
	}, nil
}

// NewGraph creates a graph causaloid. Every node of g must be a causaloid id
// registered in arena. Members are evaluated in g's topological order.
func NewGraph(id uint64, description string, arena *Arena, g *topology.Graph, policy Policy) (*Causaloid, error) {
	if arena == nil {
		return nil, &StructuralError{Code: ErrCodeEmpty, CausaloidID: id, Message: "graph requires an arena"}
	}
	if g == nil || g.Len() == 0 {
		return nil, &StructuralError{Code: ErrCodeEmpty, CausaloidID: id, Message: "graph has no nodes"}
	}

	order := g.Order()
	positions := make(map[uint64]int, len(order))
	for i, m := range order {
		if err := checkMember(id, arena, m); err != nil {
			return nil, err
		}
		positions[m] = i
	}
	if err := policy.validate(len(order)); err != nil {
		return nil, &StructuralError{Code: ErrCodeInvalidPolicy, CausaloidID: id, Message: err.Error()}
	}

	return &Causaloid{
		id:          id,
		description: description,
		kind:        KindGraph,
		arena:       arena,
		members:     order,
		positions:   positions,
		policy:      policy,
		graph:       g,
	}, nil
}

func checkMember(id uint64, arena *Arena, member uint64) error {
	if member == id {
		return &StructuralError{Code: ErrCodeSelfReference, CausaloidID: id, MemberID: member, Message: "causaloid cannot contain itself"}
	}
	if !arena.Has(member) {
		return &StructuralError{Code: ErrCodeUnknownMember, CausaloidID: id, MemberID: member, Message: "member not registered in arena"}
	}
	return nil
}

// ID returns the causaloid id.
func (c *Causaloid) ID() uint64 { return c.id }

// Description returns the human-readable description.
func (c *Causaloid) Description() string { return c.description }

// Kind returns the causaloid shape.
func (c *Causaloid) Kind() Kind { return c.kind }

// Policy returns the aggregation policy (zero value for singletons).
func (c *Causaloid) Policy() Policy { return c.policy }

// Members returns member ids in evaluation order.
func (c *Causaloid) Members() []uint64 { return slices.Clone(c.members) }

// Graph returns the member graph, or nil for non-graph causaloids.
func (c *Causaloid) Graph() *topology.Graph { return c.graph }

// Context returns the bound context, or nil.
func (c *Causaloid) Context() Context { return c.ctx }

// String renders "<kind> <id> (<description>)".
func (c *Causaloid) String() string {
	return fmt.Sprintf("%s %d (%s)", c.kind, c.id, c.description)
}
