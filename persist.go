package datawrapper

import (
	"context"
	"fmt"
	"reflect"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// SaveOption configures a persistence helper
type SaveOption func(*saveOptions)

type saveOptions struct {
	tx          *Transaction
	changedBy   string
	noReload    bool
	primaryKeys []string
}

func newSaveOptions(opts []SaveOption) saveOptions {
	var o saveOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithTransaction runs the operation on tx when it is active
func WithTransaction(tx *Transaction) SaveOption {
	return func(o *saveOptions) { o.tx = tx }
}

// WithChangedBy records actor as the modifier (or deleter) of the record
func WithChangedBy(actor string) SaveOption {
	return func(o *saveOptions) { o.changedBy = actor }
}

// WithNoReload makes UpdateEntity issue a partial update without reloading
func WithNoReload() SaveOption {
	return func(o *saveOptions) { o.noReload = true }
}

// WithPrimaryKeys sets the columns identifying the row for partial updates
func WithPrimaryKeys(columns ...string) SaveOption {
	return func(o *saveOptions) { o.primaryKeys = columns }
}

// runner returns the active transaction of o, or the connection itself
func (c *Conn) runner(o saveOptions) bun.IDB {
	if o.tx.IsActive() {
		if r := o.tx.Runner(); r != nil {
			return r
		}
	}
	return c.DB
}

// Runner returns the query runner for opts: the active transaction when one
// is given, the connection otherwise
func (c *Conn) Runner(opts ...SaveOption) bun.IDB {
	return c.runner(newSaveOptions(opts))
}

// table returns bun's metadata for the model type T
func table[T any](c *Conn) *schema.Table {
	return c.DB.Table(reflect.TypeFor[T]())
}

// writeError wraps err and turns constraint violations into validation errors
func writeError(model any, err error, op string) error {
	if err == nil {
		return nil
	}
	return NewConstraintValidationError(entityName(model), wrapError(err, op))
}

// CreateAndSave runs the insert pipeline on model and inserts it.
//
// Usage:
//
//	tag, err := datawrapper.CreateAndSave(ctx, conn, &Tag{Label: "go"},
//	    datawrapper.WithTransaction(tx))
func CreateAndSave[T any](ctx context.Context, c *Conn, model *T, opts ...SaveOption) (*T, error) {
	o := newSaveOptions(opts)

	if err := PrepareInsert(ctx, model); err != nil {
		return nil, err
	}

	if _, err := c.runner(o).NewInsert().Model(model).Exec(ctx); err != nil {
		return nil, writeError(model, err, "CreateAndSave")
	}

	c.audit(ctx, AuditActionCreate, model, 1)
	return model, nil
}

// Save inserts model when its primary key is unset, otherwise updates it by
// primary key. Both paths run the matching lifecycle pipeline.
func Save[T any](ctx context.Context, c *Conn, model *T, opts ...SaveOption) error {
	if isNew(table[T](c), model) {
		_, err := CreateAndSave(ctx, c, model, opts...)
		return err
	}

	o := newSaveOptions(opts)
	if err := PrepareUpdate(ctx, model, o.changedBy); err != nil {
		return err
	}

	res, err := c.runner(o).NewUpdate().Model(model).WherePK().Exec(ctx)
	if err != nil {
		return writeError(model, err, "Save")
	}

	rows, _ := res.RowsAffected()
	if rows == 0 {
		return &Error{Code: CodeNotFound, Message: "record not found", Op: "Save", Table: table[T](c).Name}
	}

	c.audit(ctx, AuditActionUpdate, model, rows)
	return nil
}

// isNew reports whether every primary key of model is zero
func isNew[T any](t *schema.Table, model *T) bool {
	if len(t.PKs) == 0 {
		return true
	}
	strct := reflect.ValueOf(model).Elem()
	for _, pk := range t.PKs {
		if !pk.HasZeroValue(strct) {
			return false
		}
	}
	return true
}

// UpdateEntity applies changes (keyed by column name) onto model and
// persists them. By default the whole row is saved and reloaded; with
// WithNoReload only the changed columns are written, matching the row by
// WithPrimaryKeys (default: the model's primary key).
func UpdateEntity[T any](ctx context.Context, c *Conn, model *T, changes map[string]any, opts ...SaveOption) error {
	o := newSaveOptions(opts)
	t := table[T](c)
	strct := reflect.ValueOf(model).Elem()

	for column, value := range changes {
		if err := setColumn(t, strct, column, value); err != nil {
			return err
		}
	}

	if !o.noReload {
		if err := Save(ctx, c, model, opts...); err != nil {
			return err
		}
		return Reload(ctx, c, model, opts...)
	}

	if err := PrepareUpdate(ctx, model, o.changedBy); err != nil {
		return err
	}

	columns := make([]string, 0, len(changes)+2)
	for column := range changes {
		columns = append(columns, column)
	}
	if _, ok := any(model).(Audited); ok {
		columns = append(columns, "updated_at", "changed_by")
	}

	q := c.runner(o).NewUpdate().Model(model).Column(columns...)
	if len(o.primaryKeys) == 0 {
		q = q.WherePK()
	} else {
		for _, pk := range o.primaryKeys {
			f, ok := t.FieldMap[pk]
			if !ok {
				return fmt.Errorf("datawrapper: %s has no column %q", t.Name, pk)
			}
			q = q.Where("?TableAlias.? = ?", bun.Ident(pk), f.Value(strct).Interface())
		}
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return writeError(model, err, "UpdateEntity")
	}
	rows, _ := res.RowsAffected()
	c.audit(ctx, AuditActionUpdate, model, rows)
	return nil
}

func setColumn(t *schema.Table, strct reflect.Value, column string, value any) error {
	f, ok := t.FieldMap[column]
	if !ok {
		return fmt.Errorf("datawrapper: %s has no column %q", t.Name, column)
	}

	fv := f.Value(strct)
	if value == nil {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}

	v := reflect.ValueOf(value)
	switch {
	case v.Type().AssignableTo(fv.Type()):
		fv.Set(v)
	case fv.Kind() == reflect.Pointer && v.Type().AssignableTo(fv.Type().Elem()):
		p := reflect.New(fv.Type().Elem())
		p.Elem().Set(v)
		fv.Set(p)
	case v.Type().ConvertibleTo(fv.Type()):
		fv.Set(v.Convert(fv.Type()))
	default:
		return fmt.Errorf("datawrapper: cannot assign %T to %s.%s", value, t.Name, column)
	}
	return nil
}

// FindByID finds a record by its id column
func FindByID[T any](ctx context.Context, c *Conn, id any, opts ...SaveOption) (*T, error) {
	model := new(T)

	err := c.runner(newSaveOptions(opts)).NewSelect().
		Model(model).
		Where("?TableAlias.id = ?", id).
		Scan(ctx)
	if err != nil {
		return nil, wrapError(err, "FindByID")
	}

	return model, nil
}

// FindByCode finds a record by its public code
func FindByCode[T any](ctx context.Context, c *Conn, code string, opts ...SaveOption) (*T, error) {
	model := new(T)

	err := c.runner(newSaveOptions(opts)).NewSelect().
		Model(model).
		Where("?TableAlias.code = ?", code).
		Scan(ctx)
	if err != nil {
		return nil, wrapError(err, "FindByCode")
	}

	return model, nil
}

// FindOne finds a single record matching the query
func FindOne[T any](ctx context.Context, c *Conn, query func(q *bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) (*T, error) {
	model := new(T)

	q := c.runner(newSaveOptions(opts)).NewSelect().Model(model)
	if query != nil {
		q = query(q)
	}

	if err := q.Limit(1).Scan(ctx); err != nil {
		return nil, wrapError(err, "FindOne")
	}

	return model, nil
}

// FindAll finds all records matching the query
func FindAll[T any](ctx context.Context, c *Conn, query func(q *bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) ([]*T, error) {
	var models []*T

	q := c.runner(newSaveOptions(opts)).NewSelect().Model(&models)
	if query != nil {
		q = query(q)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, wrapError(err, "FindAll")
	}

	return models, nil
}

// Reload refreshes model from the database by primary key
func Reload[T any](ctx context.Context, c *Conn, model *T, opts ...SaveOption) error {
	err := c.runner(newSaveOptions(opts)).NewSelect().
		Model(model).
		WherePK().
		Scan(ctx)
	if err != nil {
		return wrapError(err, "Reload")
	}
	return nil
}

// Exists checks if any record matches the query
func Exists[T any](ctx context.Context, c *Conn, query func(q *bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) (bool, error) {
	q := c.runner(newSaveOptions(opts)).NewSelect().Model((*T)(nil))
	if query != nil {
		q = query(q)
	}

	exists, err := q.Exists(ctx)
	if err != nil {
		return false, wrapError(err, "Exists")
	}
	return exists, nil
}

// Count counts records matching the query
func Count[T any](ctx context.Context, c *Conn, query func(q *bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) (int, error) {
	q := c.runner(newSaveOptions(opts)).NewSelect().Model((*T)(nil))
	if query != nil {
		q = query(q)
	}

	count, err := q.Count(ctx)
	if err != nil {
		return 0, wrapError(err, "Count")
	}
	return count, nil
}
