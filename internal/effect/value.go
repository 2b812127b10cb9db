package effect

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Value is a sealed interface over everything a causal computation can carry.
// Only None, Boolean, Numeric, Probabilistic, UncertainBoolean,
// UncertainNumeric, ContextLink, Map, Graph, and RelayTo implement it.
type Value interface {
	effectValue() // Sealed - only these types implement it
}

// None represents absence. It is the default value and the placeholder
// carried by an effect once an error has been recorded.
type None struct{}

func (None) effectValue() {}

// Boolean is a deterministic truth value.
type Boolean bool

func (Boolean) effectValue() {}

// Numeric is a plain numeric scalar.
type Numeric float64

func (Numeric) effectValue() {}

// Probabilistic is a numeric scalar tagged as a probability or confidence.
type Probabilistic float64

func (Probabilistic) effectValue() {}

// UncertainBoolean is a distribution-backed boolean, reduced to the
// probability that it is true. The distribution itself belongs to the
// embedding application.
type UncertainBoolean struct {
	Probability float64 `json:"probability"`
}

func (UncertainBoolean) effectValue() {}

// UncertainNumeric is a distribution-backed numeric value summarized by its
// mean and standard deviation.
type UncertainNumeric struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
}

func (UncertainNumeric) effectValue() {}

// ContextLink is a weak reference into an external context store.
// It names a relation and a lookup key; it never owns the referenced data.
type ContextLink struct {
	ContextID uint64 `json:"context_id"`
	NodeID    uint64 `json:"node_id"`
}

func (ContextLink) effectValue() {}

// Map is a keyed collection of nested values. Keys are unique; insertion
// order is irrelevant. Use SortedKeys() for deterministic iteration.
type Map map[string]Value

func (Map) effectValue() {}

// Graph carries a shared reference to an immutable effect sub-graph.
type Graph struct {
	G *EffectGraph
}

func (Graph) effectValue() {}

// RelayTo is a dispatch instruction, not a value: it redirects graph
// evaluation to the node identified by Target, carrying Value along.
type RelayTo struct {
	Target uint64
	Value  Value
}

func (RelayTo) effectValue() {}

// EffectGraph is an immutable graph of effect values keyed by node id.
// Construct it with NewEffectGraph; never mutate it afterwards.
type EffectGraph struct {
	nodes map[uint64]Value
	edges [][2]uint64
}

// NewEffectGraph creates an effect sub-graph. The node map and edge slice
// are copied so later changes by the caller cannot leak in.
func NewEffectGraph(nodes map[uint64]Value, edges [][2]uint64) *EffectGraph {
	g := &EffectGraph{
		nodes: make(map[uint64]Value, len(nodes)),
		edges: slices.Clone(edges),
	}
	for id, v := range nodes {
		g.nodes[id] = v
	}
	return g
}

// Node returns the value stored at id.
func (g *EffectGraph) Node(id uint64) (Value, bool) {
	v, ok := g.nodes[id]
	return v, ok
}

// NodeIDs returns node ids in ascending order.
func (g *EffectGraph) NodeIDs() []uint64 {
	ids := make([]uint64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Edges returns a copy of the edge list.
func (g *EffectGraph) Edges() [][2]uint64 {
	return slices.Clone(g.edges)
}

// Len returns the number of nodes.
func (g *EffectGraph) Len() int {
	return len(g.nodes)
}

// SortedKeys returns map keys in lexical order for deterministic iteration.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Pair is a key-value pair for Map construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewMap(P("temp", Numeric(70)), P("alarm", Boolean(false)))
func P(key string, v Value) Pair {
	return Pair{Key: key, Value: v}
}

// NewMap creates a Map from pairs. A later pair with the same key replaces
// an earlier one; use NewMapStrict when duplicates must be rejected.
func NewMap(pairs ...Pair) Map {
	m := make(Map, len(pairs))
	for _, p := range pairs {
		m[p.Key] = p.Value
	}
	return m
}

// NewMapStrict creates a Map from pairs and rejects duplicate keys.
func NewMapStrict(pairs ...Pair) (Map, error) {
	m := make(Map, len(pairs))
	for _, p := range pairs {
		if _, exists := m[p.Key]; exists {
			return nil, fmt.Errorf("duplicate map key %q", p.Key)
		}
		m[p.Key] = p.Value
	}
	return m, nil
}

// AsBool reports the truth of v when v is a Boolean.
func AsBool(v Value) (bool, bool) {
	b, ok := v.(Boolean)
	return bool(b), ok
}

// AsFloat extracts a float64 from the numeric variants.
func AsFloat(v Value) (float64, bool) {
	switch val := v.(type) {
	case Numeric:
		return float64(val), true
	case Probabilistic:
		return float64(val), true
	case UncertainNumeric:
		return val.Mean, true
	default:
		return 0, false
	}
}

// OrNone substitutes None for a nil Value.
func OrNone(v Value) Value {
	if v == nil {
		return None{}
	}
	return v
}

// TypeName returns the variant name used in JSON and log lines.
func TypeName(v Value) string {
	switch v.(type) {
	case nil, None:
		return "none"
	case Boolean:
		return "boolean"
	case Numeric:
		return "numeric"
	case Probabilistic:
		return "probabilistic"
	case UncertainBoolean:
		return "uncertain_boolean"
	case UncertainNumeric:
		return "uncertain_numeric"
	case ContextLink:
		return "context_link"
	case Map:
		return "map"
	case Graph:
		return "graph"
	case RelayTo:
		return "relay_to"
	default:
		return fmt.Sprintf("unknown(%T)", v)
	}
}

// Equal reports whether a and b are the same variant with equal contents.
// Graph values compare by reference. NaN is never equal to itself.
func Equal(a, b Value) bool {
	a, b = OrNone(a), OrNone(b)
	switch x := a.(type) {
	case None:
		_, ok := b.(None)
		return ok
	case Boolean:
		y, ok := b.(Boolean)
		return ok && x == y
	case Numeric:
		y, ok := b.(Numeric)
		return ok && x == y
	case Probabilistic:
		y, ok := b.(Probabilistic)
		return ok && x == y
	case UncertainBoolean:
		y, ok := b.(UncertainBoolean)
		return ok && x == y
	case UncertainNumeric:
		y, ok := b.(UncertainNumeric)
		return ok && x == y
	case ContextLink:
		y, ok := b.(ContextLink)
		return ok && x == y
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, exists := y[k]
			if !exists || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case Graph:
		y, ok := b.(Graph)
		return ok && x.G == y.G
	case RelayTo:
		y, ok := b.(RelayTo)
		return ok && x.Target == y.Target && Equal(x.Value, y.Value)
	default:
		return false
	}
}

// Format renders v for log lines and explain output.
func Format(v Value) string {
	switch val := OrNone(v).(type) {
	case None:
		return "None"
	case Boolean:
		return fmt.Sprintf("Boolean(%t)", bool(val))
	case Numeric:
		return "Numeric(" + formatFloat(float64(val)) + ")"
	case Probabilistic:
		return "Probabilistic(" + formatFloat(float64(val)) + ")"
	case UncertainBoolean:
		return "UncertainBoolean(p=" + formatFloat(val.Probability) + ")"
	case UncertainNumeric:
		return "UncertainNumeric(mean=" + formatFloat(val.Mean) + ", sd=" + formatFloat(val.StdDev) + ")"
	case ContextLink:
		return fmt.Sprintf("ContextLink(%d:%d)", val.ContextID, val.NodeID)
	case Map:
		parts := make([]string, 0, len(val))
		for _, k := range val.SortedKeys() {
			parts = append(parts, k+": "+Format(val[k]))
		}
		return "Map{" + strings.Join(parts, ", ") + "}"
	case Graph:
		if val.G == nil {
			return "Graph(nil)"
		}
		return fmt.Sprintf("Graph(nodes=%d)", val.G.Len())
	case RelayTo:
		return fmt.Sprintf("RelayTo(%d, %s)", val.Target, Format(val.Value))
	default:
		return fmt.Sprintf("%v", val)
	}
}

func formatFloat(f float64) string {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return fmt.Sprintf("%v", f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
