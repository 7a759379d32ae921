package document

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// Document is one record of a model. Stored fields live in the record;
// virtual fields are computed through their accessors.
type Document struct {
	model    *Model
	id       string
	data     map[string]any
	virtuals map[string]any
	isNew    bool
	// transaction holding the queued create, until it commits
	createTx *Transaction
}

// ID returns the record id without the table prefix
func (d *Document) ID() string {
	return d.id
}

// Model returns the model of the document
func (d *Document) Model() *Model {
	return d.model
}

// IsNew reports whether the document was never saved. A create queued in a
// transaction counts once the transaction commits.
func (d *Document) IsNew() bool {
	return d.isNew
}

// Get returns the value of a stored or virtual field
func (d *Document) Get(name string) any {
	if name == "id" {
		return d.id
	}
	if spec, ok := d.model.schema.VirtualFields()[name]; ok {
		if spec.Get != nil {
			return spec.Get(d)
		}
		return d.virtuals[name]
	}
	return d.data[name]
}

// Set assigns a field. Virtual fields go through their setter. Strict
// schemas reject unknown fields.
func (d *Document) Set(name string, value any) error {
	if name == "id" {
		id, ok := value.(string)
		if !ok {
			return fmt.Errorf("document: id must be a string, got %T", value)
		}
		d.id = normalizeID(id)
		return nil
	}

	if spec, ok := d.model.schema.VirtualFields()[name]; ok {
		if spec.Set != nil {
			return spec.Set(d, value)
		}
		d.virtuals[name] = value
		return nil
	}

	if _, ok := d.model.schema.StoredFields()[name]; !ok && d.model.schema.def.Strict && !isTimestamp(name) {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, d.model.name, name)
	}
	d.data[name] = value
	return nil
}

// Call invokes a document method
func (d *Document) Call(ctx context.Context, method string, args ...any) (any, error) {
	fn, ok := d.model.schema.Definition().Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, d.model.name, method)
	}
	return fn(ctx, d, args...)
}

// Data returns a copy of the stored fields
func (d *Document) Data() map[string]any {
	return maps.Clone(d.data)
}

// ToJSON returns the stored fields, the computed virtual fields and the id
func (d *Document) ToJSON() map[string]any {
	out := make(map[string]any, len(d.data)+len(d.virtuals)+1)
	for k, v := range d.data {
		out[k] = plainValue(v)
	}
	for name := range d.model.schema.VirtualFields() {
		if v := d.Get(name); v != nil {
			out[name] = v
		}
	}
	if d.id != "" {
		out["id"] = d.id
	}
	return out
}

// MarshalJSON implements json.Marshaler
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToJSON())
}

// load replaces the stored fields with a record returned by the server
func (d *Document) load(record map[string]any) {
	data := make(map[string]any, len(record))
	for k, v := range record {
		if k == "id" {
			d.id = recordID(v)
			continue
		}
		data[k] = plainValue(v)
	}
	d.data = data
	d.isNew = false
}

func isTimestamp(name string) bool {
	return name == "created_at" || name == "updated_at"
}

// plainValue converts client wrapper types into plain Go values
func plainValue(v any) any {
	switch val := v.(type) {
	case models.CustomDateTime:
		return val.Time
	case *models.CustomDateTime:
		if val == nil {
			return nil
		}
		return val.Time
	case models.RecordID, *models.RecordID:
		return recordID(val)
	case map[any]any:
		m, _ := toStringMap(val)
		return plainValue(m)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = plainValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = plainValue(item)
		}
		return out
	}
	if items, ok := toSlice(v); ok {
		return plainValue(items)
	}
	if m, ok := toStringMap(v); ok {
		return plainValue(m)
	}
	return v
}

// wireValue converts plain Go values into the types the client encodes
func wireValue(v any) any {
	switch val := v.(type) {
	case time.Time:
		return models.CustomDateTime{Time: val}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = wireValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = wireValue(item)
		}
		return out
	}
	if items, ok := toSlice(v); ok {
		return wireValue(items)
	}
	if m, ok := toStringMap(v); ok {
		return wireValue(m)
	}
	return v
}

// recordID returns the id part of a record id in any of the client's shapes
func recordID(v any) string {
	switch id := v.(type) {
	case string:
		return normalizeID(id)
	case models.RecordID:
		return normalizeID(fmt.Sprint(id.ID))
	case *models.RecordID:
		if id != nil {
			return normalizeID(fmt.Sprint(id.ID))
		}
	case fmt.Stringer:
		return normalizeID(id.String())
	case map[string]any:
		if inner, ok := id["id"]; ok {
			return recordID(inner)
		}
		if inner, ok := id["ID"]; ok {
			return recordID(inner)
		}
	case map[any]any:
		m, _ := toStringMap(id)
		return recordID(m)
	}
	return ""
}

// normalizeID strips the table prefix and the brackets of escaped ids
func normalizeID(id string) string {
	if _, rest, ok := strings.Cut(id, ":"); ok {
		id = rest
	}
	id = strings.TrimPrefix(id, "⟨")
	id = strings.TrimSuffix(id, "⟩")
	return strings.Trim(id, "`")
}
