package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.yaml.in/yaml/v4"
)

func schemaNode(t *testing.T, src string) *yaml.Node {
	t.Helper()
	var n yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &n))
	return deref(&n)
}

func TestParseSchemaKinds(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want Kind
	}{
		{"object", `{type: object}`, KindObject},
		{"array", `{type: array, items: {type: string}}`, KindArray},
		{"string", `{type: string}`, KindString},
		{"number", `{type: number}`, KindNumber},
		{"integer", `{type: integer}`, KindInteger},
		{"boolean", `{type: boolean}`, KindBoolean},
		{"ref", `{$ref: "#/components/schemas/Pet"}`, KindRef},
		{"type wins over ref", `{type: string, $ref: "#/x"}`, KindString},
		{"opaque", `{description: anything}`, KindOpaque},
		{"unknown", `{type: file}`, KindUnknown},
		{"type list", `{type: ["null", integer]}`, KindInteger},
		{"boolean schema", `true`, KindOpaque},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSchema(schemaNode(t, tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Kind)
		})
	}
}

func TestParseSchemaNil(t *testing.T) {
	s, err := ParseSchema(nil)
	require.NoError(t, err)
	assert.Equal(t, KindOpaque, s.Kind)
}

func TestParseSchemaFields(t *testing.T) {
	s, err := ParseSchema(schemaNode(t, `
type: object
properties:
  zeta: {type: string, enum: [a, b]}
  alpha: {type: integer}
  mid: {type: string, format: date, pattern: "^[0-9-]+$"}
`))
	require.NoError(t, err)

	require.Len(t, s.Properties, 3)
	assert.Equal(t, "zeta", s.Properties[0].Name)
	assert.Equal(t, "alpha", s.Properties[1].Name)
	assert.Equal(t, "mid", s.Properties[2].Name)

	zeta, err := ParseSchema(s.Properties[0].Schema)
	require.NoError(t, err)
	assert.True(t, zeta.HasEnum)
	assert.Equal(t, []any{"a", "b"}, zeta.Enum)

	mid, err := ParseSchema(s.Properties[2].Schema)
	require.NoError(t, err)
	assert.Equal(t, "date", mid.Format)
	assert.Equal(t, "^[0-9-]+$", mid.Pattern)
}

func TestParseSchemaEnumValues(t *testing.T) {
	s, err := ParseSchema(schemaNode(t, `{type: integer, enum: [1, 2, 3]}`))
	require.NoError(t, err)
	assert.Equal(t, []any{1, 2, 3}, s.Enum)

	s, err = ParseSchema(schemaNode(t, `{type: string, enum: []}`))
	require.NoError(t, err)
	assert.True(t, s.HasEnum)
	assert.Empty(t, s.Enum)
}

func TestParseSchemaMalformed(t *testing.T) {
	for _, src := range []string{
		`[1, 2]`,
		`{type: object, properties: [a, b]}`,
		`{type: string, enum: abc}`,
	} {
		_, err := ParseSchema(schemaNode(t, src))
		assert.Error(t, err, src)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "integer", KindInteger.String())
	assert.Equal(t, "Kind(42)", Kind(42).String())
}
