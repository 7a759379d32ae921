package datawrapper

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// BatchSize is the default number of rows per multi-row statement
const BatchSize = 100

// BulkCreateAndSave runs the insert pipeline on every item, then inserts them
// with multi-row statements of at most BatchSize rows. Nothing is written
// when any item fails validation.
// Returns the total number of rows inserted.
//
// Usage:
//
//	tags := []*Tag{{Label: "a"}, {Label: "b"}}
//	n, err := datawrapper.BulkCreateAndSave(ctx, conn, tags)
func BulkCreateAndSave[T any](ctx context.Context, c *Conn, items []*T, opts ...SaveOption) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}

	for _, item := range items {
		if err := PrepareInsert(ctx, item); err != nil {
			return 0, err
		}
	}

	db := c.runner(newSaveOptions(opts))
	var totalRows int64

	for i := 0; i < len(items); i += BatchSize {
		end := min(i+BatchSize, len(items))

		batch := items[i:end]
		result, err := db.NewInsert().Model(&batch).Exec(ctx)
		if err != nil {
			return totalRows, writeError(new(T), err, "BulkCreateAndSave")
		}

		rows, _ := result.RowsAffected()
		totalRows += rows
	}

	c.audit(ctx, AuditActionCreate, items, totalRows)
	return totalRows, nil
}

// BulkUpdate sets the given columns on every row matched by where.
// updated_at and changed_by are maintained for audited models.
// Returns the number of rows affected.
//
// Usage:
//
//	n, err := datawrapper.BulkUpdate[Tag](ctx, conn,
//	    func(q *bun.UpdateQuery) *bun.UpdateQuery { return q.Where("label LIKE ?", "tmp%") },
//	    map[string]any{"label": "archived"},
//	    datawrapper.WithChangedBy(userID))
func BulkUpdate[T any](ctx context.Context, c *Conn, where func(q *bun.UpdateQuery) *bun.UpdateQuery, set map[string]any, opts ...SaveOption) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}

	o := newSaveOptions(opts)
	t := table[T](c)

	q := c.runner(o).NewUpdate().Model((*T)(nil))
	for column, value := range set {
		if _, ok := t.FieldMap[column]; !ok {
			return 0, fmt.Errorf("datawrapper: %s has no column %q", t.Name, column)
		}
		q = q.Set("? = ?", bun.Ident(column), value)
	}

	if _, ok := any(new(T)).(Audited); ok {
		if _, ok := set["updated_at"]; !ok {
			q = q.Set("updated_at = ?", time.Now())
		}
		if actor := actorOf(ctx, o); actor != "" {
			if _, ok := set["changed_by"]; !ok {
				q = q.Set("changed_by = ?", actor)
			}
		}
	}

	if where != nil {
		q = where(q)
	} else {
		q = q.Where("TRUE")
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return 0, writeError(new(T), err, "BulkUpdate")
	}

	rows, _ := result.RowsAffected()
	c.audit(ctx, AuditActionUpdate, new(T), rows)
	return rows, nil
}

// BulkSoftDelete marks the rows with the given ids as deleted in one
// statement. Returns the number of rows affected; an empty id list is a
// no-op.
//
// Usage:
//
//	n, err := datawrapper.BulkSoftDelete[Tag](ctx, conn, []any{1, 2, 3},
//	    datawrapper.WithChangedBy(userID))
func BulkSoftDelete[T any](ctx context.Context, c *Conn, ids []any, opts ...SaveOption) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	o := newSaveOptions(opts)
	now := time.Now()

	q := c.runner(o).NewUpdate().
		Model((*T)(nil)).
		Set("deleted_at = ?", now).
		Set("updated_at = ?", now).
		Where("?TableAlias.id IN (?)", bun.In(ids))
	if actor := actorOf(ctx, o); actor != "" {
		q = q.Set("deleted_by = ?", actor).Set("changed_by = ?", actor)
	}

	result, err := q.Exec(ctx)
	if err != nil {
		return 0, wrapError(err, "BulkSoftDelete")
	}

	rows, _ := result.RowsAffected()
	c.audit(ctx, AuditActionSoftDelete, new(T), rows)
	return rows, nil
}

// actorOf returns the explicit actor of o, or the one stored in ctx
func actorOf(ctx context.Context, o saveOptions) string {
	if o.changedBy != "" {
		return o.changedBy
	}
	return ActorFromContext(ctx)
}
