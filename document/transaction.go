package document

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/fernandezvara/datawrapper"
)

// Transaction queues write statements while active and sends them in one
// BEGIN TRANSACTION ... COMMIT TRANSACTION block on Commit. Rollback
// discards the queue. Reads never see queued writes.
type Transaction struct {
	conn *Conn

	mu         sync.Mutex
	active     bool
	statements []statement
}

type statement struct {
	query    string
	vars     map[string]any
	onCommit func()
}

// NewTransaction returns an unstarted transaction on c
func (c *Conn) NewTransaction() *Transaction {
	return &Transaction{conn: c}
}

// StartTransaction creates and starts a transaction on c
func (c *Conn) StartTransaction(ctx context.Context) (*Transaction, error) {
	t := c.NewTransaction()
	if err := t.Start(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Start activates the transaction. A transaction can only be started once.
func (t *Transaction) Start(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active {
		return datawrapper.ErrTransactionStarted
	}
	t.active = true
	t.statements = nil
	return nil
}

// IsActive reports whether the transaction was started and not yet finished
func (t *Transaction) IsActive() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Pending returns the number of queued statements
func (t *Transaction) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.statements)
}

// Conn returns the connection the transaction belongs to
func (t *Transaction) Conn() *Conn {
	return t.conn
}

// add queues a statement, failing when the transaction is not active.
// onCommit, when set, runs after a successful commit.
func (t *Transaction) add(query string, vars map[string]any, onCommit func()) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.active {
		return datawrapper.ErrTransactionInactive
	}
	t.statements = append(t.statements, statement{query: query, vars: vars, onCommit: onCommit})
	return nil
}

// Commit sends the queued statements and finishes the transaction. It is a
// no-op when the transaction is not active.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return nil
	}
	statements := t.statements
	t.statements = nil
	t.active = false
	t.mu.Unlock()

	if len(statements) == 0 {
		return nil
	}

	query, vars := batch(statements)
	if _, err := t.conn.Query(ctx, query, vars); err != nil {
		return fmt.Errorf("document: commit failed: %w", err)
	}

	for _, s := range statements {
		if s.onCommit != nil {
			s.onCommit()
		}
	}
	return nil
}

// Rollback discards the queued statements and finishes the transaction.
// Documents whose create was discarded stay new. It is a no-op when the
// transaction is not active.
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.statements = nil
	t.active = false
	return nil
}

var paramPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// batch joins statements into one transaction block. Parameters are
// renamed per statement so equal names never collide.
func batch(statements []statement) (string, map[string]any) {
	var b strings.Builder
	vars := make(map[string]any)

	b.WriteString("BEGIN TRANSACTION;\n")
	for i, s := range statements {
		prefix := fmt.Sprintf("s%d_", i)
		query := paramPattern.ReplaceAllStringFunc(s.query, func(m string) string {
			name := m[1:]
			if _, ok := s.vars[name]; !ok {
				return m
			}
			return "$" + prefix + name
		})
		for k, v := range s.vars {
			vars[prefix+k] = v
		}
		b.WriteString(strings.TrimSuffix(strings.TrimSpace(query), ";"))
		b.WriteString(";\n")
	}
	b.WriteString("COMMIT TRANSACTION;")

	return b.String(), vars
}
