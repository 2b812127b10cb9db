package effect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
)

// wireValue is the tagged JSON form of a Value.
// Only the fields relevant to Type are populated.
type wireValue struct {
	Type        string                     `json:"type"`
	Value       json.RawMessage            `json:"value,omitempty"`
	Probability *wireFloat                 `json:"probability,omitempty"`
	Mean        *wireFloat                 `json:"mean,omitempty"`
	StdDev      *wireFloat                 `json:"std_dev,omitempty"`
	ContextID   *uint64                    `json:"context_id,omitempty"`
	NodeID      *uint64                    `json:"node_id,omitempty"`
	Entries     map[string]json.RawMessage `json:"entries,omitempty"`
	Nodes       map[string]json.RawMessage `json:"nodes,omitempty"`
	Edges       [][2]uint64                `json:"edges,omitempty"`
	Target      *uint64                    `json:"target,omitempty"`
}

// wireFloat decodes a JSON number or one of the strings "NaN", "+Inf" and
// "-Inf" written by MarshalValue for non-finite floats.
type wireFloat float64

func (f *wireFloat) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*f = wireFloat(math.NaN())
		case "+Inf":
			*f = wireFloat(math.Inf(1))
		case "-Inf":
			*f = wireFloat(math.Inf(-1))
		default:
			return fmt.Errorf("invalid number %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = wireFloat(v)
	return nil
}

// MarshalValue marshals a Value to its tagged JSON form.
// Uses type-switch dispatch to handle every variant of the sealed union.
// The form is lossless: non-finite floats are written as "NaN", "+Inf" or
// "-Inf" and map keys are kept byte for byte.
func MarshalValue(v Value) ([]byte, error) {
	tree, err := toTree(v, true)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tree); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// toTree converts a Value into plain maps, slices, and scalars.
// The tree is shared by MarshalValue and the canonical encoder. Non-finite
// floats are rejected unless lossless is set.
func toTree(v Value, lossless bool) (map[string]any, error) {
	float := func(f float64) (any, error) {
		if lossless {
			return encodeFloat(f), nil
		}
		if err := checkFinite(f); err != nil {
			return nil, err
		}
		return f, nil
	}

	switch val := OrNone(v).(type) {
	case None:
		return map[string]any{"type": "none"}, nil
	case Boolean:
		return map[string]any{"type": "boolean", "value": bool(val)}, nil
	case Numeric:
		f, err := float(float64(val))
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "numeric", "value": f}, nil
	case Probabilistic:
		f, err := float(float64(val))
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "probabilistic", "value": f}, nil
	case UncertainBoolean:
		p, err := float(val.Probability)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "uncertain_boolean", "probability": p}, nil
	case UncertainNumeric:
		mean, err := float(val.Mean)
		if err != nil {
			return nil, err
		}
		sd, err := float(val.StdDev)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": "uncertain_numeric", "mean": mean, "std_dev": sd}, nil
	case ContextLink:
		return map[string]any{"type": "context_link", "context_id": val.ContextID, "node_id": val.NodeID}, nil
	case Map:
		entries := make(map[string]any, len(val))
		for k, elem := range val {
			sub, err := toTree(elem, lossless)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			entries[k] = sub
		}
		return map[string]any{"type": "map", "entries": entries}, nil
	case Graph:
		if val.G == nil {
			return nil, fmt.Errorf("graph value has nil sub-graph")
		}
		nodes := make(map[string]any, val.G.Len())
		for _, id := range val.G.NodeIDs() {
			node, _ := val.G.Node(id)
			sub, err := toTree(node, lossless)
			if err != nil {
				return nil, fmt.Errorf("graph node %d: %w", id, err)
			}
			nodes[strconv.FormatUint(id, 10)] = sub
		}
		edges := make([]any, 0, len(val.G.edges))
		for _, e := range val.G.edges {
			edges = append(edges, []any{e[0], e[1]})
		}
		return map[string]any{"type": "graph", "nodes": nodes, "edges": edges}, nil
	case RelayTo:
		sub, err := toTree(val.Value, lossless)
		if err != nil {
			return nil, fmt.Errorf("relay payload: %w", err)
		}
		return map[string]any{"type": "relay_to", "target": val.Target, "value": sub}, nil
	default:
		return nil, fmt.Errorf("unknown effect value type: %T", v)
	}
}

// encodeFloat returns f, or its string name when f is NaN or infinite.
func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	return f
}

func checkFinite(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v cannot be encoded", f)
	}
	return nil
}

// UnmarshalValue decodes the tagged JSON form produced by MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}

	switch w.Type {
	case "none":
		return None{}, nil
	case "boolean":
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			return nil, fmt.Errorf("boolean: %w", err)
		}
		return Boolean(b), nil
	case "numeric", "probabilistic":
		var f wireFloat
		if err := json.Unmarshal(w.Value, &f); err != nil {
			return nil, fmt.Errorf("%s: %w", w.Type, err)
		}
		if w.Type == "numeric" {
			return Numeric(f), nil
		}
		return Probabilistic(f), nil
	case "uncertain_boolean":
		if w.Probability == nil {
			return nil, fmt.Errorf("uncertain_boolean: missing probability")
		}
		return UncertainBoolean{Probability: float64(*w.Probability)}, nil
	case "uncertain_numeric":
		if w.Mean == nil || w.StdDev == nil {
			return nil, fmt.Errorf("uncertain_numeric: missing mean or std_dev")
		}
		return UncertainNumeric{Mean: float64(*w.Mean), StdDev: float64(*w.StdDev)}, nil
	case "context_link":
		if w.ContextID == nil || w.NodeID == nil {
			return nil, fmt.Errorf("context_link: missing context_id or node_id")
		}
		return ContextLink{ContextID: *w.ContextID, NodeID: *w.NodeID}, nil
	case "map":
		m := make(Map, len(w.Entries))
		for k, raw := range w.Entries {
			elem, err := UnmarshalValue(raw)
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m[k] = elem
		}
		return m, nil
	case "graph":
		nodes := make(map[uint64]Value, len(w.Nodes))
		for k, raw := range w.Nodes {
			id, err := strconv.ParseUint(k, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("graph node key %q: %w", k, err)
			}
			elem, err := UnmarshalValue(raw)
			if err != nil {
				return nil, fmt.Errorf("graph node %d: %w", id, err)
			}
			nodes[id] = elem
		}
		return Graph{G: NewEffectGraph(nodes, w.Edges)}, nil
	case "relay_to":
		if w.Target == nil {
			return nil, fmt.Errorf("relay_to: missing target")
		}
		payload, err := UnmarshalValue(w.Value)
		if err != nil {
			return nil, fmt.Errorf("relay_to payload: %w", err)
		}
		return RelayTo{Target: *w.Target, Value: payload}, nil
	default:
		return nil, fmt.Errorf("unknown effect value type %q", w.Type)
	}
}

// FromAny converts a decoded YAML or JSON value into a Value.
//
// Plain scalars map onto the obvious variants (bool → Boolean, numbers →
// Numeric, nil → None). A map carrying a string "type" key is decoded as the
// tagged form; any other map becomes a Map.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return None{}, nil
	case Value:
		return val, nil
	case bool:
		return Boolean(val), nil
	case int:
		return Numeric(float64(val)), nil
	case int64:
		return Numeric(float64(val)), nil
	case uint64:
		return Numeric(float64(val)), nil
	case float64:
		return Numeric(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number %s: %w", val, err)
		}
		return Numeric(f), nil
	case map[string]any:
		if _, tagged := val["type"].(string); tagged {
			raw, err := json.Marshal(val)
			if err != nil {
				return nil, err
			}
			return UnmarshalValue(raw)
		}
		m := make(Map, len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			elem, err := FromAny(val[k])
			if err != nil {
				return nil, fmt.Errorf("map[%q]: %w", k, err)
			}
			m[k] = elem
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
