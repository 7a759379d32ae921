package datawrapper

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

type testTag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`
	EntityWithCode
	Label  string `bun:"label,notnull" json:"label" validate:"required,max=20"`
	Secret string `bun:"secret" json:"_secret"`
}

func (t *testTag) BeforeInsert(context.Context) error {
	t.Label = strings.TrimSpace(t.Label)
	return nil
}

func (t *testTag) Validate(context.Context) error {
	if t.Label == "admin" {
		return NewValidationError("testTag").Add("label", "is reserved")
	}
	return nil
}

type testCategory struct {
	bun.BaseModel `bun:"table:categories,alias:c"`
	Entity
	Name     string          `bun:"name,notnull" json:"name"`
	ParentID *int64          `bun:"parent_id" json:"parent_id,omitempty"`
	Children []*testCategory `bun:"-" json:"children,omitempty"`
}

type testCurrency struct {
	bun.BaseModel `bun:"table:currencies,alias:cur"`
	MetaEntity
	Symbol string `bun:"symbol" json:"symbol"`
}

func (*testCurrency) MetaData() []MetaRecord {
	return []MetaRecord{
		&testCurrency{MetaEntity: MetaEntity{Name: "Euro", IsDefault: true}, Symbol: "€"},
		&testCurrency{MetaEntity: MetaEntity{Name: "Dollar"}, Symbol: "$"},
	}
}

type testImage struct {
	bun.BaseModel `bun:"table:product_images,alias:pi"`
	File
}

type testProduct struct {
	bun.BaseModel `bun:"table:products,alias:p"`
	EntityWithCodeNameDesc
	Price  int64        `bun:"price,notnull" json:"price"`
	Images []*testImage `bun:"-" json:"images,omitempty"`
}

func (p *testProduct) SetFiles(files []*testImage) {
	p.Images = files
}

// newMockConn returns a connection backed by sqlmock
func newMockConn(t *testing.T) (*Conn, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	return mockConn(t, db, ConnectionConfig{}), mock
}

func mockConn(t *testing.T, db *sql.DB, cfg ConnectionConfig) *Conn {
	t.Helper()
	return namedMockConn(t, "test", db, cfg)
}

func namedMockConn(t *testing.T, name string, db *sql.DB, cfg ConnectionConfig) *Conn {
	t.Helper()

	conn, err := NewConn(name, db, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}
