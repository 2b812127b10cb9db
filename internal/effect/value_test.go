package effect

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEqual(t *testing.T) {
	g := NewEffectGraph(map[uint64]Value{1: Numeric(1)}, nil)

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"none", None{}, None{}, true},
		{"nil is none", nil, None{}, true},
		{"bool equal", Boolean(true), Boolean(true), true},
		{"bool differ", Boolean(true), Boolean(false), false},
		{"numeric vs probabilistic", Numeric(0.5), Probabilistic(0.5), false},
		{"numeric NaN", Numeric(math.NaN()), Numeric(math.NaN()), false},
		{"link", ContextLink{1, 2}, ContextLink{1, 2}, true},
		{"map equal", NewMap(P("a", Numeric(1)), P("b", Boolean(true))), NewMap(P("b", Boolean(true)), P("a", Numeric(1))), true},
		{"map nested differ", NewMap(P("a", NewMap(P("x", Numeric(1))))), NewMap(P("a", NewMap(P("x", Numeric(2))))), false},
		{"map size differ", NewMap(P("a", Numeric(1))), NewMap(), false},
		{"graph same ref", Graph{G: g}, Graph{G: g}, true},
		{"graph other ref", Graph{G: g}, Graph{G: NewEffectGraph(map[uint64]Value{1: Numeric(1)}, nil)}, false},
		{"relay", RelayTo{3, Numeric(1)}, RelayTo{3, Numeric(1)}, true},
		{"relay target differ", RelayTo{3, Numeric(1)}, RelayTo{4, Numeric(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "None", Format(nil))
	assert.Equal(t, "Numeric(70.5)", Format(Numeric(70.5)))
	assert.Equal(t, "Probabilistic(0.9)", Format(Probabilistic(0.9)))
	assert.Equal(t, "Map{a: Boolean(true), b: Numeric(2)}", Format(NewMap(P("b", Numeric(2)), P("a", Boolean(true)))))
	assert.Equal(t, "RelayTo(4, Numeric(1))", Format(RelayTo{Target: 4, Value: Numeric(1)}))
	assert.Equal(t, "UncertainNumeric(mean=1, sd=0.5)", Format(UncertainNumeric{Mean: 1, StdDev: 0.5}))
}

func TestNewMapStrict_RejectsDuplicateKeys(t *testing.T) {
	_, err := NewMapStrict(P("temp", Numeric(1)), P("temp", Numeric(2)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"temp"`)

	m, err := NewMapStrict(P("temp", Numeric(1)), P("humidity", Numeric(2)))
	require.NoError(t, err)
	assert.Equal(t, []string{"humidity", "temp"}, m.SortedKeys())
}

func TestEffectGraph_IsImmutableCopy(t *testing.T) {
	nodes := map[uint64]Value{2: Numeric(2), 1: Numeric(1)}
	edges := [][2]uint64{{1, 2}}
	g := NewEffectGraph(nodes, edges)

	nodes[3] = Numeric(3)
	edges[0] = [2]uint64{9, 9}

	assert.Equal(t, []uint64{1, 2}, g.NodeIDs())
	assert.Equal(t, [][2]uint64{{1, 2}}, g.Edges())
}

func TestAsFloat(t *testing.T) {
	f, ok := AsFloat(Numeric(3))
	assert.True(t, ok)
	assert.Equal(t, 3.0, f)

	f, ok = AsFloat(UncertainNumeric{Mean: 2.5, StdDev: 1})
	assert.True(t, ok)
	assert.Equal(t, 2.5, f)

	_, ok = AsFloat(Boolean(true))
	assert.False(t, ok)
}

func TestMarshalValue_TaggedForm(t *testing.T) {
	data, err := MarshalValue(NewMap(P("temp", Numeric(70)), P("link", ContextLink{ContextID: 1, NodeID: 9})))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"type": "map",
		"entries": {
			"temp": {"type": "numeric", "value": 70},
			"link": {"type": "context_link", "context_id": 1, "node_id": 9}
		}
	}`, string(data))
}

func TestUnmarshalValue_RoundTripsNestedStructures(t *testing.T) {
	g := NewEffectGraph(map[uint64]Value{1: Boolean(true), 2: UncertainBoolean{Probability: 0.25}}, [][2]uint64{{1, 2}})
	original := NewMap(
		P("graph", Graph{G: g}),
		P("relay", RelayTo{Target: 5, Value: Probabilistic(0.75)}),
		P("spread", UncertainNumeric{Mean: 10, StdDev: 2}),
		P("nothing", None{}),
	)

	data, err := MarshalValue(original)
	require.NoError(t, err)

	decoded, err := UnmarshalValue(data)
	require.NoError(t, err)

	m, ok := decoded.(Map)
	require.True(t, ok)
	assert.True(t, Equal(original["relay"], m["relay"]))
	assert.True(t, Equal(original["spread"], m["spread"]))
	assert.True(t, Equal(None{}, m["nothing"]))

	dg, ok := m["graph"].(Graph)
	require.True(t, ok)
	assert.Equal(t, []uint64{1, 2}, dg.G.NodeIDs())
	assert.Equal(t, [][2]uint64{{1, 2}}, dg.G.Edges())
	assert.Equal(t, MustHash(original), MustHash(decoded), "content hash survives the round trip")
}

func TestUnmarshalValue_Errors(t *testing.T) {
	_, err := UnmarshalValue([]byte(`{"type":"tensor"}`))
	assert.ErrorContains(t, err, `unknown effect value type "tensor"`)

	_, err = UnmarshalValue([]byte(`{"type":"relay_to","value":{"type":"none"}}`))
	assert.ErrorContains(t, err, "missing target")

	_, err = UnmarshalValue([]byte(`{"type":"uncertain_boolean"}`))
	assert.ErrorContains(t, err, "missing probability")
}

func TestMarshalValue_NonFiniteRoundTrips(t *testing.T) {
	in := NewMap(
		P("nan", Numeric(math.NaN())),
		P("hot", Numeric(math.Inf(1))),
		P("spread", UncertainNumeric{Mean: 1, StdDev: math.Inf(-1)}),
	)
	data, err := MarshalValue(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"value":"NaN"`)

	out, err := UnmarshalValue(data)
	require.NoError(t, err)
	m := out.(Map)
	assert.True(t, math.IsNaN(float64(m["nan"].(Numeric))))
	assert.Equal(t, Numeric(math.Inf(1)), m["hot"])
	assert.Equal(t, UncertainNumeric{Mean: 1, StdDev: math.Inf(-1)}, m["spread"])

	_, err = UnmarshalValue([]byte(`{"type":"numeric","value":"lots"}`))
	assert.ErrorContains(t, err, `invalid number "lots"`)
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(Numeric(math.Inf(1)))
	assert.ErrorContains(t, err, "non-finite")

	_, err = Hash(NewMap(P("x", Numeric(math.NaN()))))
	assert.Error(t, err)
}

func TestMarshalValue_KeepsKeyBytes(t *testing.T) {
	decomposed := "cafe\u0301"
	data, err := MarshalValue(NewMap(P(decomposed, Numeric(1))))
	require.NoError(t, err)

	out, err := UnmarshalValue(data)
	require.NoError(t, err)
	_, ok := out.(Map)[decomposed]
	assert.True(t, ok, "key must survive without normalization: %s", data)
}

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"temp":  70,
		"alarm": false,
		"p":     map[string]any{"type": "probabilistic", "value": 0.9},
		"n":     json.Number("1.5"),
		"empty": nil,
	})
	require.NoError(t, err)

	want := NewMap(
		P("temp", Numeric(70)),
		P("alarm", Boolean(false)),
		P("p", Probabilistic(0.9)),
		P("n", Numeric(1.5)),
		P("empty", None{}),
	)
	assert.True(t, Equal(want, v), "got %s", Format(v))

	_, err = FromAny([]any{1, 2})
	assert.ErrorContains(t, err, "unsupported type")
}
