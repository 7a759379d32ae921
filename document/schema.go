package document

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Trigger names the model operation a hook runs around
type Trigger string

const (
	TriggerValidate Trigger = "validate"
	TriggerSave     Trigger = "save"
	TriggerUpdate   Trigger = "update"
	TriggerRemove   Trigger = "remove"
	// Find hooks run before the query with a nil document and after it once
	// per returned document
	TriggerFind Trigger = "find"
)

// HookFunc runs before or after a model operation. An error returned by a
// pre hook aborts the operation.
type HookFunc func(ctx context.Context, doc *Document) error

// Hook binds a function to a trigger
type Hook struct {
	Trigger Trigger
	Fn      HookFunc
}

// Method is a function callable on documents
type Method func(ctx context.Context, doc *Document, args ...any) (any, error)

// Static is a function callable on models
type Static func(ctx context.Context, m *Model, args ...any) (any, error)

// BuildContext is passed to attribute functions when schemas are built
type BuildContext struct {
	Schemas map[string]*Schema
	Conn    *Conn
}

// AttributesFunc returns the fields of a schema
type AttributesFunc func(bc BuildContext) Fields

// FieldsOf returns an AttributesFunc for a fixed set of fields
func FieldsOf(fields Fields) AttributesFunc {
	return func(BuildContext) Fields { return fields }
}

// Definition holds the options and behavior of a schema
type Definition struct {
	Timestamps  *bool // Maintain created_at and updated_at, default true
	SubDocument bool  // Only embedded in other schemas, never registered
	Strict      bool  // SCHEMAFULL table, unknown fields rejected
	Table       string
	Methods     map[string]Method
	Statics     map[string]Static
	Pre         []Hook
	Post        []Hook
}

// Schema is a document schema definition. Schemas are built once before
// their model is registered.
type Schema struct {
	attributes AttributesFunc

	mu       sync.RWMutex
	def      Definition
	building bool
	built    bool
	stored   Fields
	virtuals Fields
	subs     map[string]*Schema
}

// DefineSchema returns an unbuilt schema.
//
// Usage:
//
//	person := document.DefineSchema(document.FieldsOf(document.Fields{
//	    "first_name": {Type: document.String, Required: true},
//	    "last_name":  {Type: document.String},
//	    "full_name": {Type: document.Virtual, Get: func(d *document.Document) any {
//	        return fmt.Sprint(d.Get("first_name"), " ", d.Get("last_name"))
//	    }},
//	}), document.Definition{})
func DefineSchema(fn AttributesFunc, def Definition) *Schema {
	if def.Methods == nil {
		def.Methods = make(map[string]Method)
	}
	if def.Statics == nil {
		def.Statics = make(map[string]Static)
	}
	return &Schema{attributes: fn, def: def}
}

// Method adds a document method
func (s *Schema) Method(name string, fn Method) *Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def.Methods[name] = fn
	return s
}

// Static adds a model static
func (s *Schema) Static(name string, fn Static) *Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def.Statics[name] = fn
	return s
}

// Pre adds a hook run before trigger
func (s *Schema) Pre(trigger Trigger, fn HookFunc) *Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def.Pre = append(s.def.Pre, Hook{Trigger: trigger, Fn: fn})
	return s
}

// Post adds a hook run after trigger
func (s *Schema) Post(trigger Trigger, fn HookFunc) *Schema {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.def.Post = append(s.def.Post, Hook{Trigger: trigger, Fn: fn})
	return s
}

// Virtual sets the accessors of a virtual field, declaring it when needed.
// It must be called before Build.
func (s *Schema) Virtual(name string, get Getter, set Setter) *Schema {
	prev := s.attributes
	s.attributes = func(bc BuildContext) Fields {
		fields := Fields{}
		if prev != nil {
			for k, v := range prev(bc) {
				fields[k] = v
			}
		}
		spec := fields[name]
		spec.Type = Virtual
		spec.Get = get
		spec.Set = set
		fields[name] = spec
		return fields
	}
	return s
}

// Definition returns the schema options
func (s *Schema) Definition() Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.def
}

// IsSubDocument reports whether the schema is only embedded
func (s *Schema) IsSubDocument() bool {
	return s.def.SubDocument
}

// Timestamps reports whether created_at and updated_at are maintained
func (s *Schema) Timestamps() bool {
	return s.def.Timestamps == nil || *s.def.Timestamps
}

// Built reports whether Build succeeded
func (s *Schema) Built() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.built
}

// Build evaluates the attributes and splits them into stored and virtual
// fields. Array fields without Items are skipped. Sub-document
// schemas referenced by object fields are built first.
func (s *Schema) Build(bc BuildContext) error {
	s.mu.Lock()
	if s.built {
		s.mu.Unlock()
		return nil
	}
	if s.building {
		s.mu.Unlock()
		return fmt.Errorf("document: schema references itself")
	}
	s.building = true
	s.mu.Unlock()

	stored, virtuals, subs, err := s.partition(bc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.building = false
	if err != nil {
		return err
	}
	s.stored = stored
	s.virtuals = virtuals
	s.subs = subs
	s.built = true
	return nil
}

func (s *Schema) partition(bc BuildContext) (Fields, Fields, map[string]*Schema, error) {
	var fields Fields
	if s.attributes != nil {
		fields = s.attributes(bc)
	}

	stored := make(Fields)
	virtuals := make(Fields)
	subs := make(map[string]*Schema)

	for name, spec := range fields {
		switch {
		case spec.Type == Virtual:
			virtuals[name] = spec
			continue
		case spec.Type == Array && spec.Items == nil:
			continue
		case spec.Type == "":
			return nil, nil, nil, fmt.Errorf("document: field %s has no type", name)
		}

		for _, ref := range []string{spec.Schema, itemSchema(spec)} {
			if ref == "" {
				continue
			}
			sub, ok := bc.Schemas[ref]
			if !ok {
				return nil, nil, nil, fmt.Errorf("document: field %s references unknown schema %s", name, ref)
			}
			if err := sub.Build(bc); err != nil {
				return nil, nil, nil, fmt.Errorf("document: field %s: %w", name, err)
			}
			subs[ref] = sub
		}

		stored[name] = spec
	}

	return stored, virtuals, subs, nil
}

func itemSchema(spec FieldSpec) string {
	if spec.Type == Array && spec.Items != nil {
		return spec.Items.Schema
	}
	return ""
}

// StoredFields returns the persisted fields
func (s *Schema) StoredFields() Fields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stored
}

// VirtualFields returns the computed fields
func (s *Schema) VirtualFields() Fields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.virtuals
}

// DefineStatements returns the SurrealQL statements declaring table and
// its fields and indexes. tables maps model names to table names for
// record references.
func (s *Schema) DefineStatements(table string, tables map[string]string) ([]string, error) {
	if !s.Built() {
		return nil, ErrSchemaNotBuilt
	}

	mode := "SCHEMALESS"
	if s.def.Strict {
		mode = "SCHEMAFULL"
	}
	stmts := []string{fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s %s", table, mode)}

	fieldStmts, err := s.fieldStatements(table, "", tables)
	if err != nil {
		return nil, err
	}
	stmts = append(stmts, fieldStmts...)

	if s.Timestamps() {
		stmts = append(stmts,
			fmt.Sprintf("DEFINE FIELD OVERWRITE created_at ON TABLE %s TYPE option<datetime>", table),
			fmt.Sprintf("DEFINE FIELD OVERWRITE updated_at ON TABLE %s TYPE option<datetime>", table),
		)
	}

	for _, name := range sortedNames(s.stored) {
		spec := s.stored[name]
		if !spec.Unique && !spec.Index {
			continue
		}
		stmt := fmt.Sprintf("DEFINE INDEX OVERWRITE idx_%s_%s ON TABLE %s FIELDS %s", table, name, table, name)
		if spec.Unique {
			stmt += " UNIQUE"
		}
		stmts = append(stmts, stmt)
	}

	return stmts, nil
}

func (s *Schema) fieldStatements(table, prefix string, tables map[string]string) ([]string, error) {
	var stmts []string

	for _, name := range sortedNames(s.stored) {
		spec := s.stored[name]
		path := prefix + name

		stmt, err := fieldStatement(table, path, spec, tables)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)

		if sub := s.subs[spec.Schema]; sub != nil && spec.Schema != "" {
			nested, err := sub.fieldStatements(table, path+".", tables)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, nested...)
		}
		if ref := itemSchema(spec); ref != "" {
			nested, err := s.subs[ref].fieldStatements(table, path+".*.", tables)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, nested...)
		}
	}

	return stmts, nil
}

func fieldStatement(table, path string, spec FieldSpec, tables map[string]string) (string, error) {
	typ := spec.surrealType(tables)
	if !spec.Required && typ != "any" {
		typ = "option<" + typ + ">"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "DEFINE FIELD OVERWRITE %s ON TABLE %s TYPE %s", path, table, typ)

	if spec.Default != nil {
		lit, err := literal(spec.Default)
		if err != nil {
			return "", fmt.Errorf("document: default of %s: %w", path, err)
		}
		b.WriteString(" DEFAULT " + lit)
	}

	var asserts []string
	if len(spec.Enum) > 0 {
		lit, err := literal(spec.Enum)
		if err != nil {
			return "", fmt.Errorf("document: enum of %s: %w", path, err)
		}
		cond := "$value INSIDE " + lit
		if !spec.Required {
			cond = "($value = NONE OR " + cond + ")"
		}
		asserts = append(asserts, cond)
	}
	if spec.Assert != "" {
		asserts = append(asserts, "("+spec.Assert+")")
	}
	if len(asserts) > 0 {
		b.WriteString(" ASSERT " + strings.Join(asserts, " AND "))
	}

	return b.String(), nil
}

func sortedNames(fields Fields) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
