package datawrapper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/uptrace/bun"
)

// Transaction holds at most one native transaction. Persistence helpers
// given an active Transaction run on it; otherwise they run on the
// connection in their own implicit unit of work.
type Transaction struct {
	conn *Conn
	opts *sql.TxOptions

	mu           sync.Mutex
	tx           *bun.Tx
	savepointSeq int64
}

// TxOptions configures transaction behavior
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// DefaultTxOptions returns default transaction options
func DefaultTxOptions() TxOptions {
	return TxOptions{Isolation: sql.LevelDefault}
}

// SerializableTxOptions returns options for serializable transactions
func SerializableTxOptions() TxOptions {
	return TxOptions{Isolation: sql.LevelSerializable}
}

// NewTransaction returns an unstarted transaction on conn
func (c *Conn) NewTransaction(opts TxOptions) *Transaction {
	return &Transaction{
		conn: c,
		opts: &sql.TxOptions{Isolation: opts.Isolation, ReadOnly: opts.ReadOnly},
	}
}

// StartTransaction creates and starts a transaction on conn
func (c *Conn) StartTransaction(ctx context.Context) (*Transaction, error) {
	t := c.NewTransaction(DefaultTxOptions())
	if err := t.Start(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Start begins the native transaction. A transaction can only be started once.
func (t *Transaction) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.tx != nil {
		return ErrTransactionStarted
	}

	tx, err := t.conn.DB.BeginTx(ctx, t.opts)
	if err != nil {
		return wrapError(err, "Transaction.Start")
	}
	t.tx = &tx
	return nil
}

// Commit commits and releases the native transaction. It is a no-op when
// the transaction was never started or is already finished.
func (t *Transaction) Commit() error {
	tx := t.release()
	if tx == nil {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return wrapError(err, "Transaction.Commit")
	}
	return nil
}

// Rollback aborts and releases the native transaction. It is a no-op when
// the transaction was never started or is already finished.
func (t *Transaction) Rollback() error {
	tx := t.release()
	if tx == nil {
		return nil
	}
	if err := tx.Rollback(); err != nil {
		if errors.Is(err, sql.ErrTxDone) {
			return nil
		}
		return wrapError(err, "Transaction.Rollback")
	}
	return nil
}

// release detaches the native transaction so it is finished exactly once
func (t *Transaction) release() *bun.Tx {
	t.mu.Lock()
	defer t.mu.Unlock()

	tx := t.tx
	t.tx = nil
	return tx
}

// IsActive reports whether the transaction was started and not yet finished
func (t *Transaction) IsActive() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tx != nil
}

// Runner returns the native transaction, or nil when inactive
func (t *Transaction) Runner() bun.IDB {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tx == nil {
		return nil
	}
	return t.tx
}

// Conn returns the connection the transaction belongs to
func (t *Transaction) Conn() *Conn {
	return t.conn
}

// Savepoint runs fn inside a savepoint of the active transaction. An error
// returned by fn rolls back to the savepoint only.
func (t *Transaction) Savepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	runner := t.Runner()
	if runner == nil {
		return ErrTransactionInactive
	}

	id := atomic.AddInt64(&t.savepointSeq, 1)
	savepoint := fmt.Sprintf("sp_%d", id)

	if _, err := runner.ExecContext(ctx, "SAVEPOINT "+savepoint); err != nil {
		return wrapError(err, "Transaction.Savepoint")
	}

	if err := fn(ctx); err != nil {
		if _, rbErr := runner.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
			return fmt.Errorf("datawrapper: savepoint rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if _, err := runner.ExecContext(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
		return wrapError(err, "Transaction.ReleaseSavepoint")
	}
	return nil
}

// TxFunc is a function executed within a transaction
type TxFunc func(tx *Transaction) error

// Transaction executes fn within a transaction with automatic commit/rollback
func (c *Conn) Transaction(ctx context.Context, fn TxFunc) error {
	return c.TransactionWithOptions(ctx, DefaultTxOptions(), fn)
}

// TransactionWithOptions executes fn within a transaction with custom options
func (c *Conn) TransactionWithOptions(ctx context.Context, opts TxOptions, fn TxFunc) error {
	tx := c.NewTransaction(opts)
	if err := tx.Start(ctx); err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("datawrapper: rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	return tx.Commit()
}

// RetryTransaction runs fn in a transaction and retries it, up to
// maxRetries attempts, while it fails with a serialization failure or a
// deadlock. fn must be safe to run again.
//
// Usage:
//
//	err := conn.RetryTransaction(ctx, 3, func(tx *datawrapper.Transaction) error {
//	    account, err := datawrapper.FindByID[Account](ctx, conn, id, datawrapper.WithTransaction(tx))
//	    ...
//	})
func (c *Conn) RetryTransaction(ctx context.Context, maxRetries int, fn TxFunc) error {
	var lastErr error
	for attempt := 0; attempt < max(maxRetries, 1); attempt++ {
		err := c.TransactionWithOptions(ctx, SerializableTxOptions(), fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		lastErr = err
		c.logger.DebugContext(ctx, "retrying transaction", "attempt", attempt+1, "error", err)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
	}
	return lastErr
}
