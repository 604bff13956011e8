package extract_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shpitdev/catalog-enrichment-pipeline/internal/extract"
)

func TestObject(t *testing.T) {
	const obj = `{"slug":"soporte","bullets":["a","b"],"nested":{"k":"}"}}`

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "pure json", raw: obj, want: obj},
		{name: "surrounding whitespace", raw: "\n\t " + obj + "  \n", want: obj},
		{name: "json fence", raw: "```json\n" + obj + "\n```", want: obj},
		{name: "bare fence", raw: "Aquí está:\n```\n" + obj + "\n```\nGracias.", want: obj},
		{name: "fence without newline", raw: "```" + obj + "```", want: obj},
		{name: "first fence not json", raw: "```\nnot json\n```\n```json\n" + obj + "\n```", want: obj},
		{name: "prose before and after", raw: "Claro, aquí tienes {el resultado}: " + obj + " Espero que sirva }", want: obj},
		{name: "brace in string", raw: `x {"a":"{ not a brace }","b":1} y`, want: `{"a":"{ not a brace }","b":1}`},
		{name: "escaped quote", raw: `{"a":"dice \"hola\" }"}`, want: `{"a":"dice \"hola\" }"}`},
		{name: "quote in prose", raw: `el "modelo" dijo {"a":1}`, want: `{"a":1}`},
		{name: "unclosed quote in earlier braces", raw: `nota {con "comilla sin cerrar} y luego {"a":1}`, want: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract.Object(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestObjectFailures(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		empty bool
	}{
		{name: "empty", raw: "", empty: true},
		{name: "blank", raw: "  \n ", empty: true},
		{name: "no braces", raw: "lo siento, no puedo"},
		{name: "truncated", raw: `{"slug":"a","bullets":["uno",`},
		{name: "array only", raw: `["a","b"]`},
		{name: "invalid object", raw: `{slug: a}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extract.Object(tt.raw)
			assert.Empty(t, got)
			assert.True(t, errors.Is(err, extract.ErrMalformedOutput))
			assert.Equal(t, tt.empty, errors.Is(err, extract.ErrEmptyResponse))
		})
	}
}

func TestDecode(t *testing.T) {
	m, err := extract.Decode("```json\n{\"slug\":\"x\",\"tags\":[\"a\"]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "x", m["slug"])
	assert.Equal(t, []any{"a"}, m["tags"])

	_, err = extract.Decode("nada")
	assert.ErrorIs(t, err, extract.ErrMalformedOutput)
}
