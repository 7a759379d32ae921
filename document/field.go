package document

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// FieldType is the declared type of a schema field
type FieldType string

const (
	String   FieldType = "string"
	Number   FieldType = "number"
	Int      FieldType = "int"
	Float    FieldType = "float"
	Decimal  FieldType = "decimal"
	Bool     FieldType = "bool"
	Date     FieldType = "date"
	DateTime FieldType = "datetime"
	Bytes    FieldType = "bytes"
	Object   FieldType = "object"
	Array    FieldType = "array"
	Map      FieldType = "map"
	Mixed    FieldType = "mixed"
	Record   FieldType = "record"
	// Virtual fields are computed in Go and never stored
	Virtual FieldType = "virtual"
)

// Getter computes a virtual field
type Getter func(doc *Document) any

// Setter stores a value assigned to a virtual field
type Setter func(doc *Document, value any) error

// FieldSpec describes one attribute of a schema
type FieldSpec struct {
	Type     FieldType  `yaml:"type" json:"type"`
	Required bool       `yaml:"required" json:"required,omitempty"`
	Unique   bool       `yaml:"unique" json:"unique,omitempty"`
	Index    bool       `yaml:"index" json:"index,omitempty"`
	Default  any        `yaml:"default" json:"default,omitempty"`
	Ref      string     `yaml:"ref" json:"ref,omitempty"`       // Record: referenced model name
	Schema   string     `yaml:"schema" json:"schema,omitempty"` // Object: embedded sub-document schema
	Items    *FieldSpec `yaml:"items" json:"items,omitempty"`   // Array: element type
	Enum     []any      `yaml:"enum" json:"enum,omitempty"`
	Assert   string     `yaml:"assert" json:"assert,omitempty"` // Extra SurrealQL assertion on $value

	Get Getter `yaml:"-" json:"-"`
	Set Setter `yaml:"-" json:"-"`
}

// Fields maps field names to their specs
type Fields map[string]FieldSpec

// surrealType returns the SurrealQL type of f
func (f FieldSpec) surrealType(tables map[string]string) string {
	switch f.Type {
	case String:
		return "string"
	case Number:
		return "number"
	case Int:
		return "int"
	case Float:
		return "float"
	case Decimal:
		return "decimal"
	case Bool:
		return "bool"
	case Date, DateTime:
		return "datetime"
	case Bytes:
		return "bytes"
	case Object, Map:
		return "object"
	case Array:
		if f.Items == nil {
			return "array"
		}
		return "array<" + f.Items.surrealType(tables) + ">"
	case Record:
		if table, ok := tables[f.Ref]; ok {
			return "record<" + table + ">"
		}
		return "record"
	default:
		return "any"
	}
}

// validate checks value against f, returning a message on failure
func (f FieldSpec) validate(value any) (string, bool) {
	if value == nil {
		if f.Required {
			return "value is required", false
		}
		return "", true
	}

	if len(f.Enum) > 0 && !slices.ContainsFunc(f.Enum, func(e any) bool { return equalValues(e, value) }) {
		return fmt.Sprintf("must be one of %v", f.Enum), false
	}

	switch f.Type {
	case String:
		if _, ok := value.(string); !ok {
			return "must be a string", false
		}
	case Number, Float, Decimal:
		if _, ok := toFloat(value); !ok {
			return "must be a number", false
		}
	case Int:
		n, ok := toFloat(value)
		if !ok || n != math.Trunc(n) {
			return "must be an integer", false
		}
	case Bool:
		if _, ok := value.(bool); !ok {
			return "must be a boolean", false
		}
	case Date, DateTime:
		switch v := value.(type) {
		case time.Time, models.CustomDateTime, *models.CustomDateTime:
		case string:
			if _, err := time.Parse(time.RFC3339Nano, v); err != nil {
				if _, err := time.Parse(time.DateOnly, v); err != nil {
					return "must be a date", false
				}
			}
		default:
			return "must be a date", false
		}
	case Array:
		items, ok := toSlice(value)
		if !ok {
			return "must be a list", false
		}
		if f.Items != nil {
			for i, item := range items {
				if msg, ok := f.Items.validate(item); !ok {
					return fmt.Sprintf("item %d %s", i, msg), false
				}
			}
		}
	case Object, Map:
		if _, ok := toStringMap(value); !ok {
			return "must be an object", false
		}
	}
	return "", true
}

// literal renders v as a SurrealQL literal
func literal(v any) (string, error) {
	switch val := v.(type) {
	case time.Time:
		return fmt.Sprintf("d%q", val.UTC().Format(time.RFC3339Nano)), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	if t := reflect.TypeOf(a); t != nil && !t.Comparable() {
		return reflect.DeepEqual(a, b)
	}
	return a == b
}

// toSlice normalizes any slice or array into []any. Byte slices are binary
// values, not lists.
func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// toStringMap normalizes any map, including the shapes produced by the CBOR
// decoder, into map[string]any
func toStringMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}

	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return out, true
}
