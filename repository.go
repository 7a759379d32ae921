package datawrapper

import (
	"context"

	"github.com/uptrace/bun"
)

// Repository binds the persistence helpers to the connection serving T
//
// Usage:
//
//	products, err := datawrapper.RepositoryFor[Product](dw)
//	p, err := products.Create(ctx, &Product{Name: "Chair"})
type Repository[T any] struct {
	conn *Conn
}

// RepositoryFor returns the repository of T on the connection bound to it
func RepositoryFor[T any](dw *DataWrapper) (*Repository[T], error) {
	conn, err := ConnectionFor[T](dw)
	if err != nil {
		return nil, err
	}
	return NewRepository[T](conn), nil
}

// NewRepository returns the repository of T on conn
func NewRepository[T any](conn *Conn) *Repository[T] {
	return &Repository[T]{conn: conn}
}

// Conn returns the connection of the repository
func (r *Repository[T]) Conn() *Conn {
	return r.conn
}

func (r *Repository[T]) Create(ctx context.Context, model *T, opts ...SaveOption) (*T, error) {
	return CreateAndSave(ctx, r.conn, model, opts...)
}

func (r *Repository[T]) Save(ctx context.Context, model *T, opts ...SaveOption) error {
	return Save(ctx, r.conn, model, opts...)
}

func (r *Repository[T]) Update(ctx context.Context, model *T, changes map[string]any, opts ...SaveOption) error {
	return UpdateEntity(ctx, r.conn, model, changes, opts...)
}

func (r *Repository[T]) BulkCreate(ctx context.Context, items []*T, opts ...SaveOption) (int64, error) {
	return BulkCreateAndSave(ctx, r.conn, items, opts...)
}

func (r *Repository[T]) BulkUpdate(ctx context.Context, where func(*bun.UpdateQuery) *bun.UpdateQuery, set map[string]any, opts ...SaveOption) (int64, error) {
	return BulkUpdate[T](ctx, r.conn, where, set, opts...)
}

func (r *Repository[T]) BulkSoftDelete(ctx context.Context, ids []any, opts ...SaveOption) (int64, error) {
	return BulkSoftDelete[T](ctx, r.conn, ids, opts...)
}

func (r *Repository[T]) FindByID(ctx context.Context, id any, opts ...SaveOption) (*T, error) {
	return FindByID[T](ctx, r.conn, id, opts...)
}

func (r *Repository[T]) FindByCode(ctx context.Context, code string, opts ...SaveOption) (*T, error) {
	return FindByCode[T](ctx, r.conn, code, opts...)
}

func (r *Repository[T]) FindOne(ctx context.Context, query func(*bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) (*T, error) {
	return FindOne[T](ctx, r.conn, query, opts...)
}

func (r *Repository[T]) FindAll(ctx context.Context, query func(*bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) ([]*T, error) {
	return FindAll[T](ctx, r.conn, query, opts...)
}

func (r *Repository[T]) FindPage(ctx context.Context, page, pageSize int, query func(*bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) (*Page[T], error) {
	return FindPage[T](ctx, r.conn, page, pageSize, query, opts...)
}

func (r *Repository[T]) Count(ctx context.Context, query func(*bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) (int, error) {
	return Count[T](ctx, r.conn, query, opts...)
}

func (r *Repository[T]) SoftDelete(ctx context.Context, model *T, deletedBy string, opts ...SaveOption) error {
	return SoftDelete(ctx, r.conn, model, deletedBy, opts...)
}

func (r *Repository[T]) Restore(ctx context.Context, model *T, opts ...SaveOption) error {
	return Restore(ctx, r.conn, model, opts...)
}

func (r *Repository[T]) HardDelete(ctx context.Context, model *T, opts ...SaveOption) error {
	return HardDelete(ctx, r.conn, model, opts...)
}
