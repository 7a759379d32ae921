package datawrapper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// AuditAction represents the type of action being audited.
type AuditAction string

const (
	AuditActionCreate     AuditAction = "CREATE"
	AuditActionUpdate     AuditAction = "UPDATE"
	AuditActionSoftDelete AuditAction = "SOFT_DELETE"
	AuditActionRestore    AuditAction = "RESTORE"
	AuditActionDelete     AuditAction = "DELETE"
)

// AuditEntry describes one persisted change.
type AuditEntry struct {
	Connection string          `json:"connection"`
	Action     AuditAction     `json:"action"`
	Entity     string          `json:"entity"`
	RecordID   string          `json:"record_id,omitempty"`
	Actor      string          `json:"actor,omitempty"`
	Rows       int64           `json:"rows"`
	Data       json.RawMessage `json:"data,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// AuditHandler receives an entry after every successful write made through
// the datawrapper helpers. Errors are logged, never returned to the caller.
type AuditHandler func(ctx context.Context, entry *AuditEntry) error

type actorCtxKey struct{}

// WithActor stores the identifier of the user performing the operation.
// Helpers use it for created_by, changed_by and deleted_by when no explicit
// value is given.
//
// Usage:
//
//	ctx = datawrapper.WithActor(ctx, userID)
//	_, err := datawrapper.CreateAndSave(ctx, conn, &tag)
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext returns the actor stored with WithActor
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(actorCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithAuditHandler sets the handler receiving audit entries
func (c ConnectionConfig) WithAuditHandler(h AuditHandler) ConnectionConfig {
	c.Audit = h
	return c
}

// audit reports a successful write to the configured handler
func (c *Conn) audit(ctx context.Context, action AuditAction, model any, rows int64) {
	if c.config.Audit == nil {
		return
	}

	entry := &AuditEntry{
		Connection: c.name,
		Action:     action,
		Entity:     entityName(model),
		RecordID:   recordID(model),
		Actor:      ActorFromContext(ctx),
		Rows:       rows,
		CreatedAt:  time.Now(),
	}
	if action != AuditActionDelete {
		entry.Data, _ = json.Marshal(model)
	}

	if err := c.config.Audit(ctx, entry); err != nil {
		c.logger.WarnContext(ctx, "audit handler failed",
			"action", string(action), "entity", entry.Entity, "error", err)
	}
}

func recordID(model any) string {
	if m, ok := model.(Coded); ok && m.PublicCode() != "" {
		return m.PublicCode()
	}
	if m, ok := model.(interface{ EntityID() int64 }); ok && m.EntityID() != 0 {
		return fmt.Sprint(m.EntityID())
	}
	return ""
}
