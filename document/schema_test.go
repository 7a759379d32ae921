package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Build(t *testing.T) {
	s := DefineSchema(FieldsOf(Fields{
		"name":    {Type: String},
		"labels":  {Type: Array},
		"display": {Type: Virtual},
	}), Definition{})

	assert.False(t, s.Built())
	require.NoError(t, s.Build(BuildContext{}))
	assert.True(t, s.Built())

	assert.Contains(t, s.StoredFields(), "name")
	assert.NotContains(t, s.StoredFields(), "labels", "arrays without items are skipped")
	assert.NotContains(t, s.StoredFields(), "display")
	assert.Contains(t, s.VirtualFields(), "display")

	// building again is a no-op
	require.NoError(t, s.Build(BuildContext{}))
}

func TestSchema_BuildErrors(t *testing.T) {
	tests := []struct {
		name     string
		schema   *Schema
		schemas  map[string]*Schema
		expected string
	}{
		{
			name:     "missing type",
			schema:   DefineSchema(FieldsOf(Fields{"name": {}}), Definition{}),
			expected: "field name has no type",
		},
		{
			name:     "unknown sub schema",
			schema:   DefineSchema(FieldsOf(Fields{"address": {Type: Object, Schema: "Address"}}), Definition{}),
			expected: "references unknown schema Address",
		},
		{
			name: "unknown item schema",
			schema: DefineSchema(FieldsOf(Fields{
				"lines": {Type: Array, Items: &FieldSpec{Type: Object, Schema: "Line"}},
			}), Definition{}),
			expected: "references unknown schema Line",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.schema.Build(BuildContext{Schemas: tt.schemas})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expected)
			assert.False(t, tt.schema.Built())
		})
	}
}

func TestSchema_SelfReference(t *testing.T) {
	node := DefineSchema(FieldsOf(Fields{
		"child": {Type: Object, Schema: "Node"},
	}), Definition{SubDocument: true})

	err := node.Build(BuildContext{Schemas: map[string]*Schema{"Node": node}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references itself")
}

func TestSchema_Virtual(t *testing.T) {
	s := DefineSchema(FieldsOf(Fields{"name": {Type: String}}), Definition{}).
		Virtual("upper", func(*Document) any { return "X" }, nil)
	require.NoError(t, s.Build(BuildContext{}))

	spec, ok := s.VirtualFields()["upper"]
	require.True(t, ok)
	assert.Equal(t, Virtual, spec.Type)
	assert.NotNil(t, spec.Get)
	assert.Nil(t, spec.Set)
}

func TestSchema_DefineStatements(t *testing.T) {
	address := DefineSchema(FieldsOf(Fields{
		"street": {Type: String},
	}), Definition{SubDocument: true})
	line := DefineSchema(FieldsOf(Fields{
		"sku": {Type: String, Required: true},
	}), Definition{SubDocument: true})

	order := DefineSchema(FieldsOf(Fields{
		"name":    {Type: String, Required: true, Unique: true},
		"age":     {Type: Int, Default: 0},
		"status":  {Type: String, Enum: []any{"a", "b"}},
		"total":   {Type: Float, Index: true, Assert: "$value >= 0"},
		"address": {Type: Object, Schema: "Address"},
		"items":   {Type: Array, Items: &FieldSpec{Type: Object, Schema: "Line"}},
		"owner":   {Type: Record, Ref: "Person"},
		"extra":   {Type: Mixed},
	}), Definition{Strict: true})

	require.NoError(t, order.Build(BuildContext{Schemas: map[string]*Schema{
		"Address": address,
		"Line":    line,
	}}))

	stmts, err := order.DefineStatements("orders", map[string]string{"Person": "people"})
	require.NoError(t, err)

	expected := []string{
		"DEFINE TABLE IF NOT EXISTS orders SCHEMAFULL",
		"DEFINE FIELD OVERWRITE address ON TABLE orders TYPE option<object>",
		"DEFINE FIELD OVERWRITE address.street ON TABLE orders TYPE option<string>",
		"DEFINE FIELD OVERWRITE age ON TABLE orders TYPE option<int> DEFAULT 0",
		"DEFINE FIELD OVERWRITE extra ON TABLE orders TYPE any",
		"DEFINE FIELD OVERWRITE items ON TABLE orders TYPE option<array<object>>",
		"DEFINE FIELD OVERWRITE items.*.sku ON TABLE orders TYPE string",
		"DEFINE FIELD OVERWRITE name ON TABLE orders TYPE string",
		"DEFINE FIELD OVERWRITE owner ON TABLE orders TYPE option<record<people>>",
		`DEFINE FIELD OVERWRITE status ON TABLE orders TYPE option<string> ASSERT ($value = NONE OR $value INSIDE ["a","b"])`,
		"DEFINE FIELD OVERWRITE total ON TABLE orders TYPE option<float> ASSERT ($value >= 0)",
		"DEFINE FIELD OVERWRITE created_at ON TABLE orders TYPE option<datetime>",
		"DEFINE FIELD OVERWRITE updated_at ON TABLE orders TYPE option<datetime>",
		"DEFINE INDEX OVERWRITE idx_orders_name ON TABLE orders FIELDS name UNIQUE",
		"DEFINE INDEX OVERWRITE idx_orders_total ON TABLE orders FIELDS total",
	}
	assert.Equal(t, expected, stmts)
}

func TestSchema_DefineStatementsWithoutTimestamps(t *testing.T) {
	off := false
	s := DefineSchema(FieldsOf(Fields{"ref": {Type: Record, Ref: "Unknown"}}), Definition{Timestamps: &off})
	require.NoError(t, s.Build(BuildContext{}))

	stmts, err := s.DefineStatements("links", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"DEFINE TABLE IF NOT EXISTS links SCHEMALESS",
		"DEFINE FIELD OVERWRITE ref ON TABLE links TYPE option<record>",
	}, stmts)
}

func TestSchema_DefineStatementsNotBuilt(t *testing.T) {
	s := DefineSchema(FieldsOf(Fields{"name": {Type: String}}), Definition{})

	_, err := s.DefineStatements("things", nil)
	assert.ErrorIs(t, err, ErrSchemaNotBuilt)
}

func TestFieldSpec_Validate(t *testing.T) {
	tests := []struct {
		name     string
		spec     FieldSpec
		value    any
		expected string
	}{
		{"required", FieldSpec{Type: String, Required: true}, nil, "value is required"},
		{"optional nil", FieldSpec{Type: String}, nil, ""},
		{"string", FieldSpec{Type: String}, 3, "must be a string"},
		{"number", FieldSpec{Type: Number}, "3", "must be a number"},
		{"int", FieldSpec{Type: Int}, 3.5, "must be an integer"},
		{"int from float", FieldSpec{Type: Int}, float64(3), ""},
		{"bool", FieldSpec{Type: Bool}, "yes", "must be a boolean"},
		{"date string", FieldSpec{Type: Date}, "2024-01-31", ""},
		{"datetime string", FieldSpec{Type: DateTime}, "2024-01-31T10:00:00Z", ""},
		{"bad date", FieldSpec{Type: Date}, "tomorrow", "must be a date"},
		{"list", FieldSpec{Type: Array}, "a", "must be a list"},
		{"list items", FieldSpec{Type: Array, Items: &FieldSpec{Type: String}}, []any{"a", 1}, "item 1 must be a string"},
		{"string slice", FieldSpec{Type: Array, Items: &FieldSpec{Type: String}}, []string{"a"}, ""},
		{"int slice", FieldSpec{Type: Array, Items: &FieldSpec{Type: Int}}, []int{1, 2}, ""},
		{"int array", FieldSpec{Type: Array, Items: &FieldSpec{Type: Int}}, [2]int{1, 2}, ""},
		{"typed items checked", FieldSpec{Type: Array, Items: &FieldSpec{Type: String}}, []int{1}, "item 0 must be a string"},
		{"object slice", FieldSpec{Type: Array, Items: &FieldSpec{Type: Object}}, []map[string]any{{"sku": "a"}}, ""},
		{"bytes are not a list", FieldSpec{Type: Array}, []byte("ab"), "must be a list"},
		{"object", FieldSpec{Type: Object}, []any{}, "must be an object"},
		{"typed object", FieldSpec{Type: Object}, map[string]string{"a": "b"}, ""},
		{"enum", FieldSpec{Type: String, Enum: []any{"a", "b"}}, "c", "must be one of [a b]"},
		{"enum numeric", FieldSpec{Type: Int, Enum: []any{1, 2}}, float64(2), ""},
		{"enum of lists", FieldSpec{Type: Mixed, Enum: []any{[]any{"a"}}}, []any{"a"}, ""},
		{"enum of lists mismatch", FieldSpec{Type: Mixed, Enum: []any{[]any{"a"}}}, []any{"b"}, "must be one of [[a]]"},
		{"mixed", FieldSpec{Type: Mixed}, struct{}{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, ok := tt.spec.validate(tt.value)
			assert.Equal(t, tt.expected == "", ok)
			assert.Equal(t, tt.expected, msg)
		})
	}
}
