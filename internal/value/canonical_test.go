package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderedPairs struct {
	keys []string
	vals map[string]any
}

func (o orderedPairs) Keys() []string { return o.keys }
func (o orderedPairs) Get(k string) (any, bool) {
	v, ok := o.vals[k]
	return v, ok
}

func TestCanonicalBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"null", nil, "null"},
		{"string", "hello", `"hello"`},
		{"int", 42, "42"},
		{"int64", int64(-100), "-100"},
		{"integral float", 3.0, "3"},
		{"fraction", 1.5, "1.5"},
		{"bool", true, "true"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"html not escaped", "<a&b>", `"<a&b>"`},
		{"control escaped", "a\nb\x01", `"a\nb\u0001"`},
		{"nested", map[string]any{"b": []any{1, "x"}, "a": nil}, `{"a":null,"b":[1,"x"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestCanonicalSortsObjectKeys(t *testing.T) {
	obj := orderedPairs{
		keys: []string{"zebra", "alpha"},
		vals: map[string]any{"zebra": 1, "alpha": 2},
	}
	got, err := Canonical(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"zebra":1}`, string(got))
}

func TestCanonicalNFC(t *testing.T) {
	decomposed := "e\u0301"
	composed := "\u00e9"
	assert.Equal(t, Key(composed), Key(decomposed))
}

func TestCanonicalRejectsNaN(t *testing.T) {
	_, err := Canonical(map[string]any{"x": nan()})
	require.Error(t, err)
}

func TestKeyNumbersNormalize(t *testing.T) {
	assert.Equal(t, Key(int64(7)), Key(7.0))
	assert.NotEqual(t, Key(7), Key("7"))
}
