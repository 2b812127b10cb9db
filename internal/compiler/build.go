package compiler

import (
	"fmt"
	"log/slog"

	"cuelang.org/go/cue"

	"github.com/roach88/causaloid/internal/causaloid"
	"github.com/roach88/causaloid/internal/csm"
	"github.com/roach88/causaloid/internal/effect"
	"github.com/roach88/causaloid/internal/topology"
)

// Model is a compiled causal model: every causaloid registered in one
// arena, plus the states that reference them.
type Model struct {
	Arena  *causaloid.Arena
	States []StateSpec

	byName map[string]*causaloid.Causaloid
}

// Compile parses, validates, and builds a model from a CUE value.
// Validation problems are returned together as ValidationErrors.
func Compile(v cue.Value) (*Model, error) {
	spec, err := Parse(v)
	if err != nil {
		return nil, err
	}
	if errs := Validate(spec); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return Build(spec)
}

// Build constructs causaloids from a validated spec. Members are built
// before the composites that reference them.
func Build(spec *ModelSpec) (*Model, error) {
	order, err := buildOrder(spec)
	if err != nil {
		return nil, err
	}

	m := &Model{
		Arena:  causaloid.NewArena(),
		States: spec.States,
		byName: make(map[string]*causaloid.Causaloid, len(spec.Causaloids)),
	}
	for _, i := range order {
		cs := spec.Causaloids[i]
		c, err := m.build(cs)
		if err != nil {
			return nil, &CompileError{
				Field:   "causaloid." + cs.Name,
				Message: err.Error(),
				Pos:     cs.Pos,
			}
		}
		if err := m.Arena.Register(c); err != nil {
			return nil, &CompileError{
				Field:   "causaloid." + cs.Name,
				Message: err.Error(),
				Pos:     cs.Pos,
			}
		}
		m.byName[cs.Name] = c
	}

	for _, s := range spec.States {
		if _, ok := m.byName[s.Causaloid]; !ok {
			return nil, &CompileError{
				Field:   "state." + s.Name + ".causaloid",
				Message: fmt.Sprintf("undefined causaloid %q", s.Causaloid),
				Pos:     s.Pos,
			}
		}
	}
	return m, nil
}

// buildOrder returns spec indices ordered so members precede composites.
// Indices stand in for ids, which Validate has already checked.
func buildOrder(spec *ModelSpec) ([]uint64, error) {
	index := make(map[string]int, len(spec.Causaloids))
	for i, c := range spec.Causaloids {
		index[c.Name] = i
	}

	b := topology.NewBuilder()
	for i := range spec.Causaloids {
		b.AddNode(uint64(i))
	}
	for i, c := range spec.Causaloids {
		for _, ref := range references(c) {
			j, ok := index[ref]
			if !ok {
				return nil, &CompileError{
					Field:   "causaloid." + c.Name,
					Message: fmt.Sprintf("undefined causaloid %q", ref),
					Pos:     c.Pos,
				}
			}
			b.AddEdge(uint64(j), uint64(i))
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, &CompileError{Field: "causaloid", Message: err.Error()}
	}
	return g.Order(), nil
}

func (m *Model) build(cs CausaloidSpec) (*causaloid.Causaloid, error) {
	desc := cs.Description
	if desc == "" {
		desc = cs.Name
	}

	switch cs.Kind {
	case KindThreshold:
		cmp, ok := comparators[cs.Op]
		if !ok {
			return nil, fmt.Errorf("invalid operator %q", cs.Op)
		}
		limit := cs.Threshold
		return causaloid.New(cs.ID, desc, measure(cs.Field, func(x float64) bool {
			return cmp(x, limit)
		}))
	case KindRange:
		lo, hi := cs.Min, cs.Max
		return causaloid.New(cs.ID, desc, measure(cs.Field, func(x float64) bool {
			return x >= lo && x <= hi
		}))
	case KindCollection:
		policy, err := parsePolicyName(cs.Policy, cs.K)
		if err != nil {
			return nil, err
		}
		ids, err := m.ids(cs.Members)
		if err != nil {
			return nil, err
		}
		return causaloid.NewCollection(cs.ID, desc, m.Arena, ids, policy)
	case KindGraph:
		policy, err := parsePolicyName(cs.Policy, cs.K)
		if err != nil {
			return nil, err
		}
		ids, err := m.ids(cs.Nodes)
		if err != nil {
			return nil, err
		}
		b := topology.NewBuilder().AddNodes(ids...)
		for _, e := range cs.Edges {
			from, to := m.byName[e[0]], m.byName[e[1]]
			if from == nil || to == nil {
				return nil, fmt.Errorf("edge %s -> %s references an undefined node", e[0], e[1])
			}
			b.AddEdge(from.ID(), to.ID())
		}
		g, err := b.Build()
		if err != nil {
			return nil, err
		}
		return causaloid.NewGraph(cs.ID, desc, m.Arena, g, policy)
	default:
		return nil, fmt.Errorf("unknown kind %q", cs.Kind)
	}
}

func (m *Model) ids(names []string) ([]uint64, error) {
	ids := make([]uint64, len(names))
	for i, name := range names {
		c, ok := m.byName[name]
		if !ok {
			return nil, fmt.Errorf("undefined causaloid %q", name)
		}
		ids[i] = c.ID()
	}
	return ids, nil
}

var comparators = map[string]func(x, limit float64) bool{
	">":  func(x, limit float64) bool { return x > limit },
	">=": func(x, limit float64) bool { return x >= limit },
	"<":  func(x, limit float64) bool { return x < limit },
	"<=": func(x, limit float64) bool { return x <= limit },
	"==": func(x, limit float64) bool { return x == limit },
}

// measure builds a causal function over a numeric reading. With a field,
// the input must be a Map holding that key.
func measure(field string, test func(float64) bool) causaloid.Fn {
	return func(in effect.Value) (effect.Value, error) {
		reading := in
		if field != "" {
			m, ok := in.(effect.Map)
			if !ok {
				return nil, fmt.Errorf("expected map with field %q, got %s", field, effect.Format(in))
			}
			if reading, ok = m[field]; !ok {
				return nil, fmt.Errorf("missing field %q", field)
			}
		}
		x, ok := effect.AsFloat(reading)
		if !ok {
			return nil, fmt.Errorf("expected numeric input, got %s", effect.Format(reading))
		}
		return effect.Boolean(test(x)), nil
	}
}

// Causaloid returns the compiled causaloid declared under name.
func (m *Model) Causaloid(name string) (*causaloid.Causaloid, bool) {
	c, ok := m.byName[name]
	return c, ok
}

// State returns the state declared under name.
func (m *Model) State(name string) (StateSpec, bool) {
	for _, s := range m.States {
		if s.Name == name {
			return s, true
		}
	}
	return StateSpec{}, false
}

// ActionFactory supplies the action paired with a declared state.
type ActionFactory func(StateSpec) *csm.CausalAction

// LogAction returns a factory whose actions only log that they fired.
func LogAction(logger *slog.Logger) ActionFactory {
	return func(s StateSpec) *csm.CausalAction {
		return csm.NewAction(s.Action, func() error {
			logger.Info("action fired", "state", s.Name, "state_id", s.ID, "action", s.Action)
			return nil
		})
	}
}

// Pairs binds every declared state to its causaloid and an action from
// the factory, ready for csm.New.
func (m *Model) Pairs(actions ActionFactory) []csm.StateAction {
	pairs := make([]csm.StateAction, 0, len(m.States))
	for _, s := range m.States {
		pairs = append(pairs, csm.StateAction{
			State: csm.CausalState{
				ID:        s.ID,
				Version:   s.Version,
				Data:      s.Data,
				Causaloid: m.byName[s.Causaloid],
			},
			Action: actions(s),
		})
	}
	return pairs
}
