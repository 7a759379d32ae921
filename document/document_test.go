package document

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/surrealdb/surrealdb.go/pkg/models"
)

func TestDocument_GetSet(t *testing.T) {
	m, _ := registerPerson(t)

	d, err := m.New(nil)
	require.NoError(t, err)

	require.NoError(t, d.Set("id", "people:abc"))
	assert.Equal(t, "abc", d.ID())
	assert.Equal(t, "abc", d.Get("id"))
	assert.Error(t, d.Set("id", 12))

	require.NoError(t, d.Set("full_name", "Grace Hopper"))
	assert.Equal(t, "Grace", d.Get("first_name"))
	assert.Equal(t, "Hopper", d.Get("last_name"))

	// non strict schemas keep unknown fields
	require.NoError(t, d.Set("nickname", "Amazing Grace"))
	assert.Equal(t, "Amazing Grace", d.Data()["nickname"])
	assert.Same(t, m, d.Model())
}

func TestDocument_StoredVirtual(t *testing.T) {
	conn, _ := newTestConn(t)
	s := DefineSchema(FieldsOf(Fields{
		"name":  {Type: String},
		"draft": {Type: Virtual},
	}), Definition{Strict: true})
	m, err := Register(context.Background(), conn, "Note", s)
	require.NoError(t, err)

	d, err := m.New(map[string]any{"name": "n", "draft": "text"})
	require.NoError(t, err)
	assert.Equal(t, "text", d.Get("draft"), "virtual fields without accessors keep the assigned value")
	assert.NotContains(t, d.Data(), "draft")

	assert.ErrorIs(t, d.Set("colour", "red"), ErrUnknownField)
	assert.NoError(t, d.Set("created_at", time.Now()), "timestamps are always accepted")
}

func TestDocument_ToJSON(t *testing.T) {
	m, _ := registerPerson(t)

	d, err := m.New(map[string]any{"first_name": "Ada", "last_name": "Lovelace"})
	require.NoError(t, err)

	out := d.ToJSON()
	assert.NotContains(t, out, "id", "unsaved documents have no id")
	assert.Equal(t, "Ada Lovelace", out["full_name"])

	require.NoError(t, d.Set("id", "abc"))
	b, err := json.Marshal(d)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "abc", decoded["id"])
	assert.Equal(t, "Ada", decoded["first_name"])
	assert.Equal(t, "Ada Lovelace", decoded["full_name"])
	assert.Equal(t, true, decoded["active"])
}

func TestNormalizeID(t *testing.T) {
	tests := map[string]string{
		"abc":          "abc",
		"people:abc":   "abc",
		"people:⟨a-b⟩": "a-b",
		"people:`a-b`": "a-b",
		"":             "",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, normalizeID(in), in)
	}
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected string
	}{
		{"string", "people:abc", "abc"},
		{"record id", models.RecordID{Table: "people", ID: "abc"}, "abc"},
		{"record id pointer", &models.RecordID{Table: "people", ID: 7}, "7"},
		{"map", map[string]any{"tb": "people", "id": "abc"}, "abc"},
		{"any map", map[any]any{"ID": "abc"}, "abc"},
		{"unknown", 12, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, recordID(tt.value))
		})
	}
}

func TestPlainAndWireValues(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	wire := wireValue(map[string]any{
		"at":    now,
		"list":  []any{now, "x"},
		"plain": 1,
	}).(map[string]any)
	assert.Equal(t, models.CustomDateTime{Time: now}, wire["at"])
	assert.Equal(t, models.CustomDateTime{Time: now}, wire["list"].([]any)[0])
	assert.Equal(t, 1, wire["plain"])

	plain := plainValue(map[any]any{
		"at":    wire["at"],
		"owner": models.RecordID{Table: "people", ID: "abc"},
		"list":  wire["list"],
	}).(map[string]any)
	assert.Equal(t, now, plain["at"])
	assert.Equal(t, "abc", plain["owner"])
	assert.Equal(t, []any{now, "x"}, plain["list"])

	var nilTime *models.CustomDateTime
	assert.Nil(t, plainValue(nilTime))
}

func TestWireValue_TypedCollections(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	wire := wireValue(map[string]any{
		"times": []time.Time{now},
		"lines": []map[string]any{{"at": now}},
		"ints":  []int{1, 2},
		"blob":  []byte("ab"),
	}).(map[string]any)

	assert.Equal(t, []any{models.CustomDateTime{Time: now}}, wire["times"])
	assert.Equal(t, []any{map[string]any{"at": models.CustomDateTime{Time: now}}}, wire["lines"])
	assert.Equal(t, []any{1, 2}, wire["ints"])
	assert.Equal(t, []byte("ab"), wire["blob"])

	plain := plainValue([]models.CustomDateTime{{Time: now}})
	assert.Equal(t, []any{now}, plain)
}

func TestRecords(t *testing.T) {
	assert.Nil(t, records(nil))
	assert.Empty(t, records([]Result{{Status: "OK", Result: "done"}}))

	recs := records([]Result{
		{Status: "OK", Result: []any{map[string]any{"id": "a"}}},
		{Status: "OK", Result: []any{map[any]any{"id": "b"}, "skipped"}},
	})
	require.Len(t, recs, 1, "only the last statement is read")
	assert.Equal(t, "b", recs[0]["id"])
}

func TestStatementError(t *testing.T) {
	assert.NoError(t, statementError([]Result{{Status: "OK"}}))
	assert.ErrorIs(t, statementError([]Result{{Status: "ERR"}}), ErrQuery)

	err := statementError([]Result{{Status: "ERR", Result: "table not found"}})
	assert.ErrorIs(t, err, ErrQuery)
	assert.Contains(t, err.Error(), "table not found")
}
