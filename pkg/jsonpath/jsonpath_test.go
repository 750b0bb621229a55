package jsonpath

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

const product = `{
  "id": "P1",
  "name": {"en": "Shoe", "de": "Schuh"},
  "masterVariant": {
    "sku": "S1",
    "images": [{"url": "https://img/1.png"}, {"url": "https://img/2.png"}],
    "prices": [{"value": {"centAmount": 2000, "currencyCode": "USD"}}]
  },
  "categories": [{"id": "C1"}, {"id": "C2"}, {"typeId": "category"}],
  "ratio": 0.5,
  "published": true
}`

func TestLookup(t *testing.T) {
	data := decode(t, product)

	tests := []struct {
		name string
		path string
		want any
		ok   bool
	}{
		{"top level", "id", "P1", true},
		{"nested", "masterVariant.sku", "S1", true},
		{"index", "masterVariant.images[0].url", "https://img/1.png", true},
		{"negative index", "masterVariant.images[-1].url", "https://img/2.png", true},
		{"index out of range", "masterVariant.images[5].url", nil, false},
		{"missing field", "masterVariant.ean", nil, false},
		{"field on scalar", "id.value", nil, false},
		{"index on object", "name[0]", nil, false},
		{"unclosed bracket", "masterVariant.images[0", nil, false},
		{"bad index", "masterVariant.images[x]", nil, false},
		{"empty path", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Lookup(data, tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestLookup_Wildcard(t *testing.T) {
	data := decode(t, product)

	got, ok := Lookup(data, "categories[*].id")
	require.True(t, ok)
	assert.Equal(t, []any{"C1", "C2"}, got)

	assert.Equal(t, []string{"C1", "C2"}, Strings(data, "categories[*].id"))
}

func TestTypedAccessors(t *testing.T) {
	data := decode(t, product)

	s, ok := String(data, "name.de")
	assert.True(t, ok)
	assert.Equal(t, "Schuh", s)

	_, ok = String(data, "name")
	assert.False(t, ok, "objects are not strings")

	s, ok = String(data, "published")
	assert.True(t, ok)
	assert.Equal(t, "true", s)

	n, ok := Int64(data, "masterVariant.prices[0].value.centAmount")
	assert.True(t, ok)
	assert.Equal(t, int64(2000), n)

	_, ok = Int64(data, "ratio")
	assert.False(t, ok, "fractions are not integers")

	m, ok := Map(data, "name")
	assert.True(t, ok)
	assert.Len(t, m, 2)

	arr, ok := Slice(data, "masterVariant.prices")
	assert.True(t, ok)
	assert.Len(t, arr, 1)

	assert.Equal(t, "fallback", StringOr(data, "missing", "fallback"))
}

func TestAccessorsNeverPanic(t *testing.T) {
	inputs := []any{nil, "x", 1.0, []any{nil}, map[string]any{"a": nil}}
	paths := []string{"a", "a.b", "[0]", "[0].a", "a[*].b", "[*]", "a[-9]"}

	for _, in := range inputs {
		for _, p := range paths {
			assert.NotPanics(t, func() {
				Lookup(in, p)
				String(in, p)
				Int64(in, p)
				Map(in, p)
				Slice(in, p)
				assert.NotNil(t, Strings(in, p))
			})
		}
	}
}
