package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	data, err := MarshalCanonical(NewMap(P("zeta", Numeric(1)), P("alpha", Boolean(true))))
	require.NoError(t, err)
	assert.Equal(t,
		`{"entries":{"alpha":{"type":"boolean","value":true},"zeta":{"type":"numeric","value":1}},"type":"map"}`,
		string(data))
}

func TestMarshalCanonical_ShortestFloat(t *testing.T) {
	data, err := MarshalCanonical(Numeric(0.1))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"numeric","value":0.1}`, string(data))

	data, err = MarshalCanonical(Numeric(1e21))
	require.NoError(t, err)
	assert.Equal(t, `{"type":"numeric","value":1e+21}`, string(data))
}

func TestMarshalCanonical_NFCNormalizesKeys(t *testing.T) {
	decomposed := NewMap(P("cafe\u0301", Numeric(1)))
	composed := NewMap(P("caf\u00e9", Numeric(1)))
	assert.Equal(t, MustHash(composed), MustHash(decomposed))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	data, err := MarshalCanonical(NewMap(P("<a&b>", None{})))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"<a&b>"`)
}

func TestUnescapeLineSeparators(t *testing.T) {
	assert.Equal(t, "\"a\u2028b\"", string(unescapeLineSeparators([]byte(`"a\u2028b"`))))
	assert.Equal(t, "\"a\u2029b\"", string(unescapeLineSeparators([]byte(`"a\u2029b"`))))
	// escaped backslash followed by literal text stays untouched
	assert.Equal(t, `"a\\u2028b"`, string(unescapeLineSeparators([]byte(`"a\\u2028b"`))))
}

func TestCompareKeysUTF16(t *testing.T) {
	// U+1F600 encodes as surrogate 0xD83D, which sorts before U+FB01 in UTF-16
	// but after it in UTF-8.
	assert.Equal(t, -1, compareKeysUTF16("\U0001F600", "\uFB01"))
	assert.Equal(t, 0, compareKeysUTF16("same", "same"))
	assert.Equal(t, -1, compareKeysUTF16("ab", "abc"))
}

func TestHash_StableAndDistinct(t *testing.T) {
	a := MustHash(NewMap(P("x", Numeric(1)), P("y", Numeric(2))))
	b := MustHash(NewMap(P("y", Numeric(2)), P("x", Numeric(1))))
	c := MustHash(NewMap(P("x", Numeric(1)), P("y", Numeric(3))))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
	assert.NotEqual(t, MustHash(Numeric(1)), MustHash(Probabilistic(1)))
}
