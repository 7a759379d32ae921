package datawrapper

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// BaseEntity provides the audit columns shared by every entity: creation and
// update timestamps, creator and last modifier, and the soft deletion marker.
// Embed it (directly or through Entity) in your model structs.
//
// Usage:
//
//	type Tag struct {
//	    bun.BaseModel `bun:"table:tags,alias:t"`
//	    datawrapper.BaseEntity
//	    Label string `bun:"label,pk"`
//	}
type BaseEntity struct {
	CreatedAt time.Time  `bun:"created_at,nullzero,notnull,type:timestamptz,default:current_timestamp" json:"created_at" expose:"details"`
	UpdatedAt time.Time  `bun:"updated_at,nullzero,notnull,type:timestamptz,default:current_timestamp" json:"updated_at" expose:"details"`
	CreatedBy string     `bun:"created_by,notnull" json:"created_by" expose:"details"`
	ChangedBy string     `bun:"changed_by,notnull" json:"changed_by" expose:"details"`
	DeletedBy *string    `bun:"deleted_by" json:"deleted_by,omitempty" expose:"details"`
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero,type:timestamptz" json:"deleted_at,omitempty" expose:"details"`
}

// Base gives the lifecycle pipeline access to the audit columns
func (m *BaseEntity) Base() *BaseEntity {
	return m
}

// IsDeleted returns true if the entity has been soft deleted.
func (m *BaseEntity) IsDeleted() bool {
	return m.DeletedAt != nil
}

// initInsert copies the creation values onto the update columns
func (m *BaseEntity) initInsert(now time.Time, actor string) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.CreatedBy == "" {
		m.CreatedBy = actor
	}
	m.UpdatedAt = m.CreatedAt
	m.ChangedBy = m.CreatedBy
}

// touch marks the entity as changed by actor
func (m *BaseEntity) touch(now time.Time, actor string) {
	m.UpdatedAt = now
	if actor != "" {
		m.ChangedBy = actor
	}
}

// BeforeAppendModel keeps the timestamps consistent for queries built
// directly on bun, outside the datawrapper helpers.
var _ bun.BeforeAppendModelHook = (*BaseEntity)(nil)

func (m *BaseEntity) BeforeAppendModel(ctx context.Context, query schema.Query) error {
	switch query.(type) {
	case *bun.InsertQuery:
		if m.CreatedAt.IsZero() || m.UpdatedAt.IsZero() {
			m.initInsert(time.Now(), ActorFromContext(ctx))
		}
	case *bun.UpdateQuery:
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = time.Now()
		}
	}
	return nil
}

// Entity adds an auto-assigned numeric primary key.
//
// Usage:
//
//	type Category struct {
//	    bun.BaseModel `bun:"table:categories,alias:c"`
//	    datawrapper.Entity
//	    ParentID *int64      `bun:"parent_id" json:"parent_id"`
//	    Children []*Category `bun:"-" json:"children,omitempty"`
//	}
type Entity struct {
	ID int64 `bun:"id,pk,autoincrement" json:"id"`
	BaseEntity
}

// EntityID returns the primary key
func (m *Entity) EntityID() int64 {
	return m.ID
}

// EntityWithCode adds a unique external code, generated on insert when empty.
type EntityWithCode struct {
	Entity
	Code string `bun:"code,notnull,unique,type:varchar(36)" json:"code"`
}

// EnsureCode generates a code when none is set
func (m *EntityWithCode) EnsureCode() {
	if m.Code == "" {
		m.Code = NewCode()
	}
}

// PublicCode returns the external identifier
func (m *EntityWithCode) PublicCode() string {
	return m.Code
}

// EntityWithCodeNameDesc adds a name and an optional description.
type EntityWithCodeNameDesc struct {
	EntityWithCode
	Name        string  `bun:"name,notnull,unique" json:"name" validate:"required"`
	Description *string `bun:"description" json:"description,omitempty"`
}

// CodeGenerator is implemented by entities carrying a generated code
type CodeGenerator interface {
	EnsureCode()
}

// Coded is implemented by entities exposing a public identifier
type Coded interface {
	PublicCode() string
}

// Audited is implemented by every type embedding BaseEntity
type Audited interface {
	Base() *BaseEntity
}

// NewCode returns a new random code
func NewCode() string {
	return uuid.NewString()
}
