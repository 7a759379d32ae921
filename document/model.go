package document

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"

	"github.com/fernandezvara/datawrapper"
)

// Model is a registered schema bound to a table of a connection
type Model struct {
	name   string
	table  string
	schema *Schema
	conn   *Conn
}

// Option configures a model operation
type Option func(*options)

type options struct {
	tx *Transaction
}

// WithTx queues write operations on tx when it is active
func WithTx(tx *Transaction) Option {
	return func(o *options) { o.tx = tx }
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TableName returns the table of a model name: snake case plural, so
// Person maps to people and OrderItem to order_items
func TableName(name string) string {
	// plural rules match lower case suffixes only
	return inflect.Pluralize(inflect.Underscore(name))
}

// Register builds schema when needed, declares its table and registers it
// on conn under name.
//
// Usage:
//
//	people, err := document.Register(ctx, conn, "Person", personSchema)
func Register(ctx context.Context, conn *Conn, name string, schema *Schema) (*Model, error) {
	return register(ctx, conn, name, schema, nil, false)
}

func register(ctx context.Context, conn *Conn, name string, schema *Schema, tables map[string]string, replace bool) (*Model, error) {
	if schema.IsSubDocument() {
		return nil, fmt.Errorf("%w: %s", ErrSubDocument, name)
	}
	if !schema.Built() {
		if err := schema.Build(BuildContext{Conn: conn}); err != nil {
			return nil, fmt.Errorf("document: build %s: %w", name, err)
		}
	}

	table := schema.Definition().Table
	if table == "" {
		table = TableName(name)
	}

	if tables == nil {
		tables = conn.tables()
	}
	tables[name] = table

	stmts, err := schema.DefineStatements(table, tables)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Query(ctx, strings.Join(stmts, ";\n")+";", nil); err != nil {
		return nil, fmt.Errorf("document: define %s: %w", name, err)
	}

	m := &Model{name: name, table: table, schema: schema, conn: conn}
	if err := conn.addModel(m, replace); err != nil {
		return nil, err
	}

	conn.logger.DebugContext(ctx, "model registered", "model", name, "table", table)
	return m, nil
}

// tables maps registered model names to their tables
func (c *Conn) tables() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]string, len(c.models))
	for name, m := range c.models {
		out[name] = m.table
	}
	return out
}

// Name returns the model name
func (m *Model) Name() string {
	return m.name
}

// Table returns the table name
func (m *Model) Table() string {
	return m.table
}

// Schema returns the model schema
func (m *Model) Schema() *Schema {
	return m.schema
}

// Conn returns the connection of the model
func (m *Model) Conn() *Conn {
	return m.conn
}

// DefineStatements returns the statements declaring the model's table
func (m *Model) DefineStatements() ([]string, error) {
	return m.schema.DefineStatements(m.table, m.conn.tables())
}

// New returns an unsaved document. Defaults are applied to missing stored
// fields, then props are assigned, virtual ones through their setters.
func (m *Model) New(props map[string]any) (*Document, error) {
	d := &Document{
		model:    m,
		data:     make(map[string]any),
		virtuals: make(map[string]any),
		isNew:    true,
	}

	for name, spec := range m.schema.StoredFields() {
		if spec.Default != nil {
			d.data[name] = spec.Default
		}
	}

	// stored fields first so virtual setters can read them
	virtuals := m.schema.VirtualFields()
	for name, value := range props {
		if _, ok := virtuals[name]; ok {
			continue
		}
		if err := d.Set(name, value); err != nil {
			return nil, err
		}
	}
	for name, value := range props {
		if _, ok := virtuals[name]; !ok {
			continue
		}
		if err := d.Set(name, value); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Create builds a document from props and saves it
func (m *Model) Create(ctx context.Context, props map[string]any, opts ...Option) (*Document, error) {
	d, err := m.New(props)
	if err != nil {
		return nil, err
	}
	if err := m.Save(ctx, d, opts...); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks doc against the stored fields
func (m *Model) Validate(ctx context.Context, doc *Document) error {
	if err := m.runHooks(ctx, m.schema.Definition().Pre, TriggerValidate, doc); err != nil {
		return err
	}

	vErr := datawrapper.NewValidationError(m.name)
	for _, name := range sortedNames(m.schema.StoredFields()) {
		spec := m.schema.StoredFields()[name]
		if msg, ok := spec.validate(doc.data[name]); !ok {
			vErr.Add(name, msg)
		}
	}
	if vErr.HasErrors() {
		return vErr
	}

	return m.runHooks(ctx, m.schema.Definition().Post, TriggerValidate, doc)
}

// Save validates doc and creates or replaces its record. New documents get
// a generated id. Inside an active transaction the write is queued.
func (m *Model) Save(ctx context.Context, doc *Document, opts ...Option) error {
	if err := m.Validate(ctx, doc); err != nil {
		return err
	}
	if err := m.runHooks(ctx, m.schema.Definition().Pre, TriggerSave, doc); err != nil {
		return err
	}

	// a create already queued in a running transaction is followed by updates
	creating := doc.isNew && !doc.createTx.IsActive()
	if doc.id == "" {
		doc.id = uuid.NewString()
	}
	if m.schema.Timestamps() {
		now := time.Now().UTC()
		if creating {
			doc.data["created_at"] = now
		}
		doc.data["updated_at"] = now
	}

	verb := "UPDATE"
	if creating {
		verb = "CREATE"
	}
	query := verb + " type::thing($tb, $id) CONTENT $data"
	vars := map[string]any{"tb": m.table, "id": doc.id, "data": wireValue(doc.data)}

	o := newOptions(opts)
	persisted := func() {
		doc.isNew = false
		doc.createTx = nil
	}
	if err := m.write(ctx, doc, query, vars, o, persisted); err != nil {
		return err
	}
	if creating && o.tx.IsActive() {
		doc.createTx = o.tx
	}

	return m.runHooks(ctx, m.schema.Definition().Post, TriggerSave, doc)
}

// Update merges changes into the record with the given id and returns the
// updated document. Inside an active transaction the write is queued and
// the returned document holds the changes only.
func (m *Model) Update(ctx context.Context, id string, changes map[string]any, opts ...Option) (*Document, error) {
	doc := &Document{
		model:    m,
		id:       normalizeID(id),
		data:     make(map[string]any, len(changes)+1),
		virtuals: make(map[string]any),
	}
	for name, value := range changes {
		if err := doc.Set(name, value); err != nil {
			return nil, err
		}
	}

	vErr := datawrapper.NewValidationError(m.name)
	for name, value := range doc.data {
		spec, ok := m.schema.StoredFields()[name]
		if !ok {
			continue
		}
		if msg, ok := spec.validate(value); !ok {
			vErr.Add(name, msg)
		}
	}
	if vErr.HasErrors() {
		return nil, vErr
	}

	if err := m.runHooks(ctx, m.schema.Definition().Pre, TriggerUpdate, doc); err != nil {
		return nil, err
	}
	if m.schema.Timestamps() {
		doc.data["updated_at"] = time.Now().UTC()
	}

	query := "UPDATE type::thing($tb, $id) MERGE $data"
	vars := map[string]any{"tb": m.table, "id": doc.id, "data": wireValue(doc.data)}

	if err := m.write(ctx, doc, query, vars, newOptions(opts), nil); err != nil {
		return nil, err
	}

	if err := m.runHooks(ctx, m.schema.Definition().Post, TriggerUpdate, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the record of doc
func (m *Model) Delete(ctx context.Context, doc *Document, opts ...Option) error {
	if err := m.runHooks(ctx, m.schema.Definition().Pre, TriggerRemove, doc); err != nil {
		return err
	}

	o := newOptions(opts)
	query := "DELETE type::thing($tb, $id)"
	vars := map[string]any{"tb": m.table, "id": doc.id}

	if o.tx.IsActive() {
		if err := o.tx.add(query, vars, nil); err != nil {
			return err
		}
	} else if _, err := m.conn.Query(ctx, query, vars); err != nil {
		return err
	}

	return m.runHooks(ctx, m.schema.Definition().Post, TriggerRemove, doc)
}

// DeleteByID removes the record with the given id
func (m *Model) DeleteByID(ctx context.Context, id string, opts ...Option) error {
	doc := &Document{model: m, id: normalizeID(id), data: map[string]any{}, virtuals: map[string]any{}}
	return m.Delete(ctx, doc, opts...)
}

// FindByID returns the document with the given id
func (m *Model) FindByID(ctx context.Context, id string, _ ...Option) (*Document, error) {
	docs, err := m.find(ctx, "SELECT * FROM type::thing($tb, $id)", map[string]any{"tb": m.table, "id": normalizeID(id)})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s:%s", ErrNotFound, m.table, id)
	}
	return docs[0], nil
}

// Find returns the documents matching where, a SurrealQL condition using
// vars. An empty condition matches every document. $tb is reserved.
//
// Usage:
//
//	adults, err := people.Find(ctx, "age >= $age", map[string]any{"age": 18})
func (m *Model) Find(ctx context.Context, where string, vars map[string]any, _ ...Option) ([]*Document, error) {
	return m.find(ctx, m.selectQuery(where, ""), m.queryVars(vars))
}

// FindOne returns the first document matching where
func (m *Model) FindOne(ctx context.Context, where string, vars map[string]any, _ ...Option) (*Document, error) {
	docs, err := m.find(ctx, m.selectQuery(where, " LIMIT 1"), m.queryVars(vars))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, m.table)
	}
	return docs[0], nil
}

// Call invokes a model static
func (m *Model) Call(ctx context.Context, static string, args ...any) (any, error) {
	fn, ok := m.schema.Definition().Statics[static]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrMethodNotFound, m.name, static)
	}
	return fn(ctx, m, args...)
}

func (m *Model) selectQuery(where, suffix string) string {
	q := "SELECT * FROM type::table($tb)"
	if strings.TrimSpace(where) != "" {
		q += " WHERE " + where
	}
	return q + suffix
}

func (m *Model) queryVars(vars map[string]any) map[string]any {
	out := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		out[k] = wireValue(v)
	}
	out["tb"] = m.table
	return out
}

// write runs or queues a statement returning the written record. committed
// runs once the write is applied: right away, or when the transaction
// commits.
func (m *Model) write(ctx context.Context, doc *Document, query string, vars map[string]any, o options, committed func()) error {
	if o.tx.IsActive() {
		return o.tx.add(query, vars, committed)
	}

	results, err := m.conn.Query(ctx, query, vars)
	if err != nil {
		return err
	}
	if records := records(results); len(records) > 0 {
		doc.load(records[0])
	}
	if committed != nil {
		committed()
	}
	return nil
}

func (m *Model) find(ctx context.Context, query string, vars map[string]any) ([]*Document, error) {
	if err := m.runHooks(ctx, m.schema.Definition().Pre, TriggerFind, nil); err != nil {
		return nil, err
	}

	results, err := m.conn.Query(ctx, query, vars)
	if err != nil {
		return nil, err
	}

	recs := records(results)
	docs := make([]*Document, 0, len(recs))
	for _, rec := range recs {
		d := &Document{model: m, virtuals: make(map[string]any)}
		d.load(rec)
		if err := m.runHooks(ctx, m.schema.Definition().Post, TriggerFind, d); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (m *Model) runHooks(ctx context.Context, hooks []Hook, trigger Trigger, doc *Document) error {
	for _, h := range hooks {
		if h.Trigger != trigger {
			continue
		}
		if err := h.Fn(ctx, doc); err != nil {
			return err
		}
	}
	return nil
}

// records extracts the records returned by the last statement
func records(results []Result) []map[string]any {
	if len(results) == 0 {
		return nil
	}

	switch v := results[len(results)-1].Result.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if rec, ok := toStringMap(item); ok {
				out = append(out, rec)
			}
		}
		return out
	default:
		if rec, ok := toStringMap(v); ok {
			return []map[string]any{rec}
		}
	}
	return nil
}
