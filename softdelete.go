package datawrapper

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// SoftDelete marks a model as deleted by setting deleted_at and deleted_by.
// deletedBy falls back to WithChangedBy, then to the actor stored in ctx.
// The model must embed BaseEntity.
//
// Usage:
//
//	err := datawrapper.SoftDelete(ctx, conn, &tag, userID)
func SoftDelete[T any](ctx context.Context, c *Conn, model *T, deletedBy string, opts ...SaveOption) error {
	o := newSaveOptions(opts)
	if deletedBy == "" {
		deletedBy = actorOf(ctx, o)
	}

	now := time.Now()
	q := c.runner(o).NewUpdate().
		Model(model).
		Set("deleted_at = ?", now).
		Set("updated_at = ?", now).
		WherePK()
	if deletedBy != "" {
		q = q.Set("deleted_by = ?", deletedBy).Set("changed_by = ?", deletedBy)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return wrapError(err, "SoftDelete")
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return &Error{Code: CodeNotFound, Message: "record not found", Op: "SoftDelete", Table: table[T](c).Name}
	}

	if a, ok := any(model).(Audited); ok {
		base := a.Base()
		base.DeletedAt = &now
		base.UpdatedAt = now
		if deletedBy != "" {
			base.DeletedBy = &deletedBy
			base.ChangedBy = deletedBy
		}
	}

	c.audit(ctx, AuditActionSoftDelete, model, rows)
	return nil
}

// Restore removes the soft delete mark from a model.
//
// Usage:
//
//	err := datawrapper.Restore(ctx, conn, &tag)
func Restore[T any](ctx context.Context, c *Conn, model *T, opts ...SaveOption) error {
	o := newSaveOptions(opts)
	now := time.Now()

	q := c.runner(o).NewUpdate().
		Model(model).
		Set("deleted_at = NULL").
		Set("deleted_by = NULL").
		Set("updated_at = ?", now).
		WherePK().
		WhereDeleted()
	if actor := actorOf(ctx, o); actor != "" {
		q = q.Set("changed_by = ?", actor)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return wrapError(err, "Restore")
	}
	rows, _ := result.RowsAffected()

	if a, ok := any(model).(Audited); ok {
		base := a.Base()
		base.DeletedAt = nil
		base.DeletedBy = nil
		base.UpdatedAt = now
	}

	c.audit(ctx, AuditActionRestore, model, rows)
	return nil
}

// HardDelete permanently removes a record, soft deleted or not.
//
// Usage:
//
//	err := datawrapper.HardDelete(ctx, conn, &tag)
func HardDelete[T any](ctx context.Context, c *Conn, model *T, opts ...SaveOption) error {
	result, err := c.runner(newSaveOptions(opts)).NewDelete().
		Model(model).
		WherePK().
		ForceDelete().
		Exec(ctx)
	if err != nil {
		return wrapError(err, "HardDelete")
	}

	rows, _ := result.RowsAffected()
	c.audit(ctx, AuditActionDelete, model, rows)
	return nil
}

// NotDeleted returns a query modifier that filters out soft-deleted records.
// bun applies it implicitly to models with a soft_delete column; it is
// needed for raw table queries and joins.
//
// Usage:
//
//	db.NewSelect().Model(&tags).Apply(datawrapper.NotDeleted).Scan(ctx)
func NotDeleted(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.deleted_at IS NULL")
}

// OnlyDeleted returns a query modifier that includes only soft-deleted records.
//
// Usage:
//
//	db.NewSelect().Model(&deleted).Apply(datawrapper.OnlyDeleted).Scan(ctx)
func OnlyDeleted(q *bun.SelectQuery) *bun.SelectQuery {
	return q.WhereDeleted()
}

// WithDeleted returns a query modifier that includes all records, deleted
// or not.
//
// Usage:
//
//	db.NewSelect().Model(&all).Apply(datawrapper.WithDeleted).Scan(ctx)
func WithDeleted(q *bun.SelectQuery) *bun.SelectQuery {
	return q.WhereAllWithDeleted()
}
