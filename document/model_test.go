package document

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/fernandezvara/datawrapper"
)

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"Person":    "people",
		"OrderItem": "order_items",
		"Category":  "categories",
		"user":      "users",
	}
	for name, expected := range tests {
		assert.Equal(t, expected, TableName(name), name)
	}
}

func TestRegister(t *testing.T) {
	conn, backend := newTestConn(t)

	m, err := Register(context.Background(), conn, "Person", personSchema())
	require.NoError(t, err)
	assert.Equal(t, "people", m.Table())
	assert.Equal(t, "Person", m.Name())
	assert.Same(t, conn, m.Conn())

	sent := backend.queries()
	require.Len(t, sent, 1, "the table is declared in a single query")
	assert.True(t, strings.HasPrefix(sent[0].query, "DEFINE TABLE IF NOT EXISTS people SCHEMALESS;\n"))
	assert.Contains(t, sent[0].query, "DEFINE FIELD OVERWRITE first_name ON TABLE people TYPE string;")
	assert.NotContains(t, sent[0].query, "full_name")

	got, ok := conn.Model("Person")
	require.True(t, ok)
	assert.Same(t, m, got)
	assert.Equal(t, []string{"Person"}, conn.ModelNames())

	_, err = Register(context.Background(), conn, "Person", personSchema())
	assert.ErrorIs(t, err, ErrModelExists)
}

func TestRegister_CustomTableAndReferences(t *testing.T) {
	conn, backend := newTestConn(t)

	_, err := Register(context.Background(), conn, "Person", personSchema())
	require.NoError(t, err)

	post := DefineSchema(FieldsOf(Fields{
		"author": {Type: Record, Ref: "Person", Required: true},
	}), Definition{Table: "blog_posts"})
	m, err := Register(context.Background(), conn, "Post", post)
	require.NoError(t, err)
	assert.Equal(t, "blog_posts", m.Table())
	assert.Contains(t, backend.last().query, "TYPE record<people>")

	stmts, err := m.DefineStatements()
	require.NoError(t, err)
	assert.Equal(t, "DEFINE TABLE IF NOT EXISTS blog_posts SCHEMALESS", stmts[0])
}

func TestRegister_Errors(t *testing.T) {
	conn, backend := newTestConn(t)

	sub := DefineSchema(FieldsOf(Fields{"street": {Type: String}}), Definition{SubDocument: true})
	_, err := Register(context.Background(), conn, "Address", sub)
	assert.ErrorIs(t, err, ErrSubDocument)

	broken := DefineSchema(FieldsOf(Fields{"name": {}}), Definition{})
	_, err = Register(context.Background(), conn, "Broken", broken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build Broken")

	backend.respond = func(string, map[string]any) ([]Result, error) {
		return []Result{{Status: "ERR", Error: "permission denied"}}, nil
	}
	_, err = Register(context.Background(), conn, "Person", personSchema())
	assert.ErrorIs(t, err, ErrQuery)

	assert.Empty(t, conn.ModelNames())
}

func TestModel_New(t *testing.T) {
	m, backend := registerPerson(t)

	d, err := m.New(map[string]any{"full_name": "Ada Lovelace", "age": 36})
	require.NoError(t, err)

	assert.True(t, d.IsNew())
	assert.Empty(t, d.ID())
	assert.Equal(t, "Ada", d.Get("first_name"))
	assert.Equal(t, "Lovelace", d.Get("last_name"))
	assert.Equal(t, "Ada Lovelace", d.Get("full_name"))
	assert.Equal(t, true, d.Get("active"), "defaults are applied")
	assert.NotContains(t, d.Data(), "full_name", "virtual fields are not stored")
	assert.Empty(t, backend.queries())
}

func TestModel_NewSetterError(t *testing.T) {
	m, _ := registerPerson(t)

	_, err := m.New(map[string]any{"full_name": 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full_name must be a string")
}

func TestModel_Validate(t *testing.T) {
	m, _ := registerPerson(t)

	d, err := m.New(map[string]any{"age": 3.5, "tags": []any{"a", 1}})
	require.NoError(t, err)

	err = m.Validate(context.Background(), d)
	vErr, ok := datawrapper.AsValidationError(err)
	require.True(t, ok, "expected a validation error, got %v", err)
	assert.Equal(t, []string{"value is required"}, vErr.Fields["first_name"])
	assert.Equal(t, []string{"must be an integer"}, vErr.Fields["age"])
	assert.Equal(t, []string{"item 1 must be a string"}, vErr.Fields["tags"])
	assert.Equal(t, "Person", vErr.Entity)
}

func TestModel_SaveCreatesThenUpdates(t *testing.T) {
	m, backend := registerPerson(t)

	d, err := m.Create(context.Background(), map[string]any{"first_name": "Ada"})
	require.NoError(t, err)

	first := backend.last()
	assert.Equal(t, "CREATE type::thing($tb, $id) CONTENT $data", first.query)
	assert.Equal(t, "people", first.vars["tb"])
	assert.NotEmpty(t, first.vars["id"])

	data := first.vars["data"].(map[string]any)
	assert.IsType(t, models.CustomDateTime{}, data["created_at"], "times are sent as datetimes")

	assert.False(t, d.IsNew())
	assert.Equal(t, first.vars["id"], d.ID())
	created, ok := d.Get("created_at").(time.Time)
	require.True(t, ok, "stored datetimes are returned as time.Time")
	assert.False(t, created.IsZero())

	require.NoError(t, d.Set("age", 37))
	require.NoError(t, m.Save(context.Background(), d))

	second := backend.last()
	assert.Equal(t, "UPDATE type::thing($tb, $id) CONTENT $data", second.query)
	assert.Equal(t, d.ID(), second.vars["id"])
	assert.Len(t, backend.queries(), 2)
}

func TestModel_SaveValidationFailure(t *testing.T) {
	m, backend := registerPerson(t)

	_, err := m.Create(context.Background(), map[string]any{"age": "old"})
	assert.True(t, datawrapper.IsValidation(err))
	assert.Empty(t, backend.queries(), "invalid documents are never written")
}

func TestModel_Hooks(t *testing.T) {
	m, backend := registerPerson(t)

	var calls []string
	m.Schema().
		Pre(TriggerSave, func(_ context.Context, d *Document) error {
			calls = append(calls, "pre-save")
			return d.Set("slug", strings.ToLower(d.Get("first_name").(string)))
		}).
		Post(TriggerSave, func(context.Context, *Document) error {
			calls = append(calls, "post-save")
			return nil
		}).
		Pre(TriggerValidate, func(context.Context, *Document) error {
			calls = append(calls, "pre-validate")
			return nil
		})

	_, err := m.Create(context.Background(), map[string]any{"first_name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pre-validate", "pre-save", "post-save"}, calls)

	data := backend.last().vars["data"].(map[string]any)
	assert.Equal(t, "ada", data["slug"])
}

func TestModel_PreHookAborts(t *testing.T) {
	m, backend := registerPerson(t)

	blocked := errors.New("read only")
	m.Schema().Pre(TriggerRemove, func(context.Context, *Document) error { return blocked })

	err := m.DeleteByID(context.Background(), "people:abc")
	assert.ErrorIs(t, err, blocked)
	assert.Empty(t, backend.queries())
}

func TestModel_Update(t *testing.T) {
	m, backend := registerPerson(t)

	d, err := m.Update(context.Background(), "people:abc", map[string]any{"age": 40})
	require.NoError(t, err)
	assert.Equal(t, "abc", d.ID())

	q := backend.last()
	assert.Equal(t, "UPDATE type::thing($tb, $id) MERGE $data", q.query)
	assert.Equal(t, "abc", q.vars["id"])
	data := q.vars["data"].(map[string]any)
	assert.Equal(t, 40, data["age"])
	assert.Contains(t, data, "updated_at")
	assert.NotContains(t, data, "created_at")

	_, err = m.Update(context.Background(), "abc", map[string]any{"age": "forty"})
	assert.True(t, datawrapper.IsValidation(err))
}

func TestModel_UpdateStrict(t *testing.T) {
	conn, _ := newTestConn(t)
	s := DefineSchema(FieldsOf(Fields{"name": {Type: String}}), Definition{Strict: true})
	m, err := Register(context.Background(), conn, "Tag", s)
	require.NoError(t, err)

	_, err = m.Update(context.Background(), "x", map[string]any{"colour": "red"})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestModel_Delete(t *testing.T) {
	m, backend := registerPerson(t)

	var removed string
	m.Schema().Post(TriggerRemove, func(_ context.Context, d *Document) error {
		removed = d.ID()
		return nil
	})

	require.NoError(t, m.DeleteByID(context.Background(), "people:⟨abc⟩"))
	q := backend.last()
	assert.Equal(t, "DELETE type::thing($tb, $id)", q.query)
	assert.Equal(t, "abc", q.vars["id"])
	assert.Equal(t, "abc", removed)
}

func TestModel_FindByID(t *testing.T) {
	m, backend := registerPerson(t)

	_, err := m.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	backend.respond = respondWith(map[string]any{
		"id":         models.RecordID{Table: "people", ID: "abc"},
		"first_name": "Ada",
		"last_name":  "Lovelace",
	})
	d, err := m.FindByID(context.Background(), "people:abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", d.ID())
	assert.Equal(t, "Ada Lovelace", d.Get("full_name"))
	assert.False(t, d.IsNew())

	q := backend.last()
	assert.Equal(t, "SELECT * FROM type::thing($tb, $id)", q.query)
	assert.Equal(t, "abc", q.vars["id"])
}

func TestModel_Find(t *testing.T) {
	m, backend := registerPerson(t)

	var pre, post int
	m.Schema().
		Pre(TriggerFind, func(_ context.Context, d *Document) error {
			assert.Nil(t, d)
			pre++
			return nil
		}).
		Post(TriggerFind, func(_ context.Context, d *Document) error {
			assert.NotNil(t, d)
			post++
			return nil
		})

	backend.respond = respondWith(
		map[string]any{"id": "people:a", "first_name": "Ada", "age": 36},
		map[string]any{"id": "people:b", "first_name": "Grace", "age": 85},
	)

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	docs, err := m.Find(context.Background(), "age >= $age AND created_at > $since",
		map[string]any{"age": 18, "since": since})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID())
	assert.Equal(t, "Grace", docs[1].Get("first_name"))
	assert.Equal(t, 1, pre)
	assert.Equal(t, 2, post)

	q := backend.last()
	assert.Equal(t, "SELECT * FROM type::table($tb) WHERE age >= $age AND created_at > $since", q.query)
	assert.Equal(t, "people", q.vars["tb"])
	assert.Equal(t, models.CustomDateTime{Time: since}, q.vars["since"])

	_, err = m.Find(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM type::table($tb)", backend.last().query)
}

func TestModel_FindOne(t *testing.T) {
	m, backend := registerPerson(t)

	_, err := m.FindOne(context.Background(), "first_name = $name", map[string]any{"name": "Ada"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "SELECT * FROM type::table($tb) WHERE first_name = $name LIMIT 1", backend.last().query)

	backend.respond = func(string, map[string]any) ([]Result, error) {
		// single record results are accepted as well as lists
		return []Result{{Status: "OK", Result: map[string]any{"id": "people:a", "first_name": "Ada"}}}, nil
	}
	d, err := m.FindOne(context.Background(), "first_name = $name", map[string]any{"name": "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "a", d.ID())
}

func TestModel_Call(t *testing.T) {
	m, _ := registerPerson(t)

	m.Schema().
		Static("count", func(_ context.Context, m *Model, _ ...any) (any, error) {
			return m.Table(), nil
		}).
		Method("greet", func(_ context.Context, d *Document, args ...any) (any, error) {
			return args[0].(string) + ", " + d.Get("first_name").(string), nil
		})

	got, err := m.Call(context.Background(), "count")
	require.NoError(t, err)
	assert.Equal(t, "people", got)

	_, err = m.Call(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMethodNotFound)

	d, err := m.New(map[string]any{"first_name": "Ada"})
	require.NoError(t, err)

	got, err = d.Call(context.Background(), "greet", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada", got)

	_, err = d.Call(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMethodNotFound)
}
