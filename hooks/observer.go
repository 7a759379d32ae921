// Package hooks provides observability hooks shared by the relational and
// document connections of datawrapper
package hooks

import (
	"context"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// System names reported with every event
const (
	SystemPostgres  = "postgresql"
	SystemSurrealDB = "surrealdb"
)

// Event describes one statement sent to a database
type Event struct {
	Connection string
	System     string
	Operation  string
	Query      string
	StartTime  time.Time
	Err        error
}

// Duration returns the time elapsed since the event started
func (e *Event) Duration() time.Duration {
	return time.Since(e.StartTime)
}

// Observer receives statement events
type Observer interface {
	Before(ctx context.Context, event *Event) context.Context
	After(ctx context.Context, event *Event)
}

// NewEvent starts an event for the given statement
func NewEvent(connection, system, query string) *Event {
	return &Event{
		Connection: connection,
		System:     system,
		Operation:  OperationType(query),
		Query:      query,
		StartTime:  time.Now(),
	}
}

// Chain fans an event out to several observers
type Chain []Observer

// Before calls every observer in order
func (c Chain) Before(ctx context.Context, event *Event) context.Context {
	for _, o := range c {
		ctx = o.Before(ctx, event)
	}
	return ctx
}

// After calls every observer in reverse order
func (c Chain) After(ctx context.Context, event *Event) {
	for i := len(c) - 1; i >= 0; i-- {
		c[i].After(ctx, event)
	}
}

type eventCtxKey struct{}

// BunHook adapts observers to bun's query hook interface
type BunHook struct {
	connection string
	observers  Chain
}

var _ bun.QueryHook = (*BunHook)(nil)

// NewBunHook creates a bun query hook that reports to observers
func NewBunHook(connection string, observers ...Observer) *BunHook {
	return &BunHook{connection: connection, observers: observers}
}

// BeforeQuery is called before a query is executed
func (h *BunHook) BeforeQuery(ctx context.Context, qe *bun.QueryEvent) context.Context {
	event := &Event{
		Connection: h.connection,
		System:     SystemPostgres,
		Operation:  OperationType(qe.Query),
		Query:      qe.Query,
		StartTime:  qe.StartTime,
	}
	ctx = h.observers.Before(ctx, event)
	return context.WithValue(ctx, eventCtxKey{}, event)
}

// AfterQuery is called after a query is executed
func (h *BunHook) AfterQuery(ctx context.Context, qe *bun.QueryEvent) {
	event, ok := ctx.Value(eventCtxKey{}).(*Event)
	if !ok {
		return
	}
	// bun only fills the query text once it has been formatted
	if event.Query == "" {
		event.Query = qe.Query
		event.Operation = OperationType(qe.Query)
	}
	event.Err = qe.Err
	h.observers.After(ctx, event)
}

// OperationType extracts the operation type from a query
func OperationType(query string) string {
	query = strings.TrimSpace(strings.ToUpper(query))
	switch {
	case strings.HasPrefix(query, "SELECT"):
		return "select"
	case strings.HasPrefix(query, "INSERT"), strings.HasPrefix(query, "CREATE TYPE::"):
		return "insert"
	case strings.HasPrefix(query, "UPDATE"), strings.HasPrefix(query, "UPSERT"):
		return "update"
	case strings.HasPrefix(query, "DELETE"):
		return "delete"
	case strings.HasPrefix(query, "CREATE"):
		return "create"
	case strings.HasPrefix(query, "DEFINE"):
		return "define"
	case strings.HasPrefix(query, "DROP"), strings.HasPrefix(query, "REMOVE"):
		return "drop"
	case strings.HasPrefix(query, "ALTER"):
		return "alter"
	case strings.HasPrefix(query, "BEGIN"):
		return "begin"
	case strings.HasPrefix(query, "COMMIT"):
		return "commit"
	case strings.HasPrefix(query, "ROLLBACK"), strings.HasPrefix(query, "CANCEL"):
		return "rollback"
	case strings.HasPrefix(query, "SAVEPOINT"):
		return "savepoint"
	case strings.HasPrefix(query, "RELEASE"):
		return "release"
	default:
		return "other"
	}
}
