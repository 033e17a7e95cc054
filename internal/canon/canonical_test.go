package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"bool", true, "true"},
		{"null", nil, "null"},
		{"empty array", []int{}, "[]"},
		{"empty object", map[string]int{}, "{}"},
		{"array of ints", []int{1, 2, 3}, "[1,2,3]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalSortsNestedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{"b": 1, "a": 2},
		"a": 3,
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalUsesStructTags(t *testing.T) {
	type record struct {
		Zeta  int    `json:"zeta"`
		Alpha string `json:"alpha"`
		Skip  string `json:"skip,omitempty"`
	}

	result, err := Marshal(record{Zeta: 1, Alpha: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":"x","zeta":1}`, string(result))
}

func TestMarshalNoHTMLEscaping(t *testing.T) {
	result, err := Marshal("<a & b>")
	require.NoError(t, err)
	assert.Equal(t, `"<a & b>"`, string(result))
}

func TestMarshalEscapesControlCharacters(t *testing.T) {
	result, err := Marshal("a\"b\\c\nd\u0001")
	require.NoError(t, err)
	assert.Equal(t, `"a\"b\\c\nd\u0001"`, string(result))
}

func TestMarshalNFCNormalization(t *testing.T) {
	// "é" as e + combining acute accent normalizes to the precomposed form.
	decomposed := "e\u0301"
	composed := "\u00e9"

	a, err := Marshal(decomposed)
	require.NoError(t, err)
	b, err := Marshal(composed)
	require.NoError(t, err)
	assert.Equal(t, string(b), string(a))
}

func TestMarshalRejectsFloats(t *testing.T) {
	_, err := Marshal(map[string]any{"x": 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestMarshalUTF16KeyOrder(t *testing.T) {
	// U+1F600 encodes as the surrogate pair D83D DE00, which sorts before
	// U+FF61 in UTF-16 but after it in UTF-8.
	obj := map[string]int{
		"\uff61":      1,
		"\U0001F600": 2,
	}

	result, err := Marshal(obj)
	require.NoError(t, err)
	assert.Equal(t, "{\"\U0001F600\":2,\"\uff61\":1}", string(result))
}

func TestDigestDomainSeparation(t *testing.T) {
	v := map[string]int{"a": 1}

	d1, err := Digest("intents/a/v1", v)
	require.NoError(t, err)
	d2, err := Digest("intents/b/v1", v)
	require.NoError(t, err)

	assert.Len(t, d1, 64)
	assert.NotEqual(t, d1, d2)
	assert.Equal(t, d1, MustDigest("intents/a/v1", map[string]int{"a": 1}))
}
