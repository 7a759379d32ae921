package datawrapper

import (
	"context"

	"github.com/uptrace/bun"
)

// Page is one page of a paginated listing
type Page[T any] struct {
	Items       []*T `json:"items"`
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next_page"`
	HasPrevious bool `json:"has_previous_page"`
}

// DefaultPageSize is the default number of items per page.
const DefaultPageSize = 20

// MaxPageSize is the maximum allowed page size.
const MaxPageSize = 100

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Paginate applies offset-based pagination to a query.
//
// Usage:
//
//	db.NewSelect().Model(&tags).Apply(datawrapper.Paginate(2, 10)).Scan(ctx)
func Paginate(page, pageSize int) func(*bun.SelectQuery) *bun.SelectQuery {
	page, pageSize = normalizePage(page, pageSize)
	offset := (page - 1) * pageSize

	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(pageSize).Offset(offset)
	}
}

// FindPage returns one page of the records matching query, with totals.
//
// Usage:
//
//	page, err := datawrapper.FindPage[Tag](ctx, conn, 1, 10, func(q *bun.SelectQuery) *bun.SelectQuery {
//	    return q.Order("label ASC")
//	})
func FindPage[T any](ctx context.Context, c *Conn, page, pageSize int, query func(*bun.SelectQuery) *bun.SelectQuery, opts ...SaveOption) (*Page[T], error) {
	page, pageSize = normalizePage(page, pageSize)
	db := c.runner(newSaveOptions(opts))

	countQuery := db.NewSelect().Model((*T)(nil))
	if query != nil {
		countQuery = query(countQuery)
	}
	total, err := countQuery.Count(ctx)
	if err != nil {
		return nil, wrapError(err, "FindPage.Count")
	}

	var items []*T
	itemsQuery := db.NewSelect().Model(&items)
	if query != nil {
		itemsQuery = query(itemsQuery)
	}
	if err := itemsQuery.Apply(Paginate(page, pageSize)).Scan(ctx); err != nil {
		return nil, wrapError(err, "FindPage.Scan")
	}

	totalPages := max((total+pageSize-1)/pageSize, 1)

	return &Page[T]{
		Items:       items,
		Page:        page,
		PageSize:    pageSize,
		TotalItems:  total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}, nil
}
