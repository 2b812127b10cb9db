package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/causaloid/internal/effect"
)

// Causaloid kinds accepted in a model.
const (
	KindThreshold  = "threshold"
	KindRange      = "range"
	KindCollection = "collection"
	KindGraph      = "graph"
)

// CausaloidSpec is one parsed causaloid definition.
type CausaloidSpec struct {
	Name        string
	ID          uint64
	Description string
	Kind        string

	// threshold: input <op> threshold
	Op        string
	Threshold float64

	// range: min <= input <= max
	Min float64
	Max float64

	// Field selects a key when the input is a Map (threshold and range).
	Field string

	// collection
	Members []string

	// collection and graph
	Policy string
	K      int

	// graph
	Nodes []string
	Edges [][2]string

	Pos token.Pos
}

// StateSpec is one parsed causal state definition.
type StateSpec struct {
	Name      string
	ID        uint64
	Version   uint32
	Causaloid string
	Data      effect.Value
	Action    string
	Pos       token.Pos
}

// ModelSpec is a parsed, not yet validated, causal model.
// Definitions keep their declaration order.
type ModelSpec struct {
	Causaloids []CausaloidSpec
	States     []StateSpec
}

// Parse reads a causal model from a CUE value.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The value holds two top-level structs, e.g.:
//
//	causaloid: hot: {id: 1, kind: "threshold", op: ">", threshold: 65}
//	state: boiler: {id: 1, causaloid: "hot", data: 60}
//
// Parse fails on the first malformed field. Cross-reference checks are
// left to Validate.
func Parse(v cue.Value) (*ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, fromCUE(err)
	}

	spec := &ModelSpec{}

	if cv := v.LookupPath(cue.ParsePath("causaloid")); cv.Exists() {
		iter, err := cv.Fields()
		if err != nil {
			return nil, fromCUE(err)
		}
		for iter.Next() {
			c, err := parseCausaloid(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			spec.Causaloids = append(spec.Causaloids, c)
		}
	}

	if sv := v.LookupPath(cue.ParsePath("state")); sv.Exists() {
		iter, err := sv.Fields()
		if err != nil {
			return nil, fromCUE(err)
		}
		for iter.Next() {
			s, err := parseState(iter.Selector().Unquoted(), iter.Value())
			if err != nil {
				return nil, err
			}
			spec.States = append(spec.States, s)
		}
	}

	if len(spec.Causaloids) == 0 {
		return nil, &CompileError{
			Field:   "causaloid",
			Message: "at least one causaloid is required",
			Pos:     v.Pos(),
		}
	}

	return spec, nil
}

func parseCausaloid(name string, v cue.Value) (CausaloidSpec, error) {
	c := CausaloidSpec{Name: name, Pos: v.Pos()}
	var err error

	if c.ID, err = requireUint(v, "id"); err != nil {
		return c, err
	}
	if c.Description, err = optionalString(v, "description"); err != nil {
		return c, err
	}
	if c.Kind, err = requireString(v, "kind"); err != nil {
		return c, err
	}

	switch c.Kind {
	case KindThreshold:
		if c.Op, err = requireString(v, "op"); err != nil {
			return c, err
		}
		if c.Threshold, err = requireFloat(v, "threshold"); err != nil {
			return c, err
		}
		if c.Field, err = optionalString(v, "field"); err != nil {
			return c, err
		}
	case KindRange:
		if c.Min, err = requireFloat(v, "min"); err != nil {
			return c, err
		}
		if c.Max, err = requireFloat(v, "max"); err != nil {
			return c, err
		}
		if c.Field, err = optionalString(v, "field"); err != nil {
			return c, err
		}
	case KindCollection:
		if c.Members, err = requireStrings(v, "members"); err != nil {
			return c, err
		}
		if err := parsePolicy(v, &c); err != nil {
			return c, err
		}
	case KindGraph:
		if c.Nodes, err = requireStrings(v, "nodes"); err != nil {
			return c, err
		}
		if c.Edges, err = parseEdges(v); err != nil {
			return c, err
		}
		if err := parsePolicy(v, &c); err != nil {
			return c, err
		}
	default:
		// Unknown kinds are reported by Validate with every other problem.
	}

	return c, nil
}

func parsePolicy(v cue.Value, c *CausaloidSpec) error {
	var err error
	if c.Policy, err = optionalString(v, "policy"); err != nil {
		return err
	}
	if c.Policy == "" {
		c.Policy = "chain"
	}
	k, err := optionalUint(v, "k")
	if err != nil {
		return err
	}
	c.K = int(k)
	return nil
}

// parseEdges reads `edges: [["from", "to"], ...]`.
func parseEdges(v cue.Value) ([][2]string, error) {
	ev := v.LookupPath(cue.ParsePath("edges"))
	if !ev.Exists() {
		return nil, nil
	}
	list, err := ev.List()
	if err != nil {
		return nil, fromCUE(err)
	}

	var edges [][2]string
	for list.Next() {
		pair, err := stringList(list.Value())
		if err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, &CompileError{
				Field:   "edges",
				Message: fmt.Sprintf("edge must be [from, to], got %d elements", len(pair)),
				Pos:     list.Value().Pos(),
			}
		}
		edges = append(edges, [2]string{pair[0], pair[1]})
	}
	return edges, nil
}

func parseState(name string, v cue.Value) (StateSpec, error) {
	s := StateSpec{Name: name, Pos: v.Pos(), Data: effect.None{}}
	var err error

	if s.ID, err = requireUint(v, "id"); err != nil {
		return s, err
	}
	version, err := optionalUint(v, "version")
	if err != nil {
		return s, err
	}
	if version > uint64(^uint32(0)) {
		return s, &CompileError{Field: "version", Message: "version exceeds uint32", Pos: v.Pos()}
	}
	s.Version = uint32(version)

	if s.Causaloid, err = requireString(v, "causaloid"); err != nil {
		return s, err
	}
	if s.Action, err = optionalString(v, "action"); err != nil {
		return s, err
	}
	if s.Action == "" {
		s.Action = name
	}

	if dv := v.LookupPath(cue.ParsePath("data")); dv.Exists() {
		if s.Data, err = DecodeValue(dv); err != nil {
			return s, err
		}
	}
	return s, nil
}

// DecodeValue converts concrete CUE data into an effect value:
// null → None, bool → Boolean, number → Numeric, struct → Map.
func DecodeValue(v cue.Value) (effect.Value, error) {
	v, _ = v.Default()
	switch v.Kind() {
	case cue.NullKind:
		return effect.None{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, fromCUE(err)
		}
		return effect.Boolean(b), nil
	case cue.IntKind, cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, fromCUE(err)
		}
		return effect.Numeric(f), nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, fromCUE(err)
		}
		m := effect.Map{}
		for iter.Next() {
			inner, err := DecodeValue(iter.Value())
			if err != nil {
				return nil, err
			}
			m[iter.Selector().Unquoted()] = inner
		}
		return m, nil
	default:
		if err := v.Err(); err != nil {
			return nil, fromCUE(err)
		}
		return nil, &CompileError{
			Field:   "data",
			Message: fmt.Sprintf("unsupported data kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func requireString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fv.String()
	if err != nil {
		return "", fromCUE(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", fromCUE(err)
	}
	return s, nil
}

func requireUint(v cue.Value, field string) (uint64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	n, err := fv.Uint64()
	if err != nil {
		return 0, fromCUE(err)
	}
	return n, nil
}

func optionalUint(v cue.Value, field string) (uint64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	n, err := fv.Uint64()
	if err != nil {
		return 0, fromCUE(err)
	}
	return n, nil
}

func requireFloat(v cue.Value, field string) (float64, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	f, err := fv.Float64()
	if err != nil {
		return 0, fromCUE(err)
	}
	return f, nil
}

func requireStrings(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	return stringList(fv)
}

func stringList(v cue.Value) ([]string, error) {
	list, err := v.List()
	if err != nil {
		return nil, fromCUE(err)
	}
	var out []string
	for list.Next() {
		s, err := list.Value().String()
		if err != nil {
			return nil, fromCUE(err)
		}
		out = append(out, s)
	}
	return out, nil
}
