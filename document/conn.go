package document

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/surrealdb/surrealdb.go"

	"github.com/fernandezvara/datawrapper/hooks"
)

// Result is the outcome of one statement of a query
type Result struct {
	Status string
	Result any
	Error  string
}

// OK reports whether the statement succeeded
func (r Result) OK() bool {
	return r.Status == "OK"
}

// Backend executes SurrealQL. It is implemented over the SurrealDB client
// by Open; tests provide their own.
type Backend interface {
	Query(ctx context.Context, query string, vars map[string]any) ([]Result, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

type surrealBackend struct {
	db *surrealdb.DB
}

func (b *surrealBackend) Query(ctx context.Context, query string, vars map[string]any) ([]Result, error) {
	results, err := surrealdb.Query[any](ctx, b.db, query, vars)
	if err != nil {
		return nil, err
	}
	if results == nil {
		return nil, nil
	}

	out := make([]Result, 0, len(*results))
	for _, r := range *results {
		res := Result{Status: r.Status, Result: r.Result}
		if r.Error != nil {
			res.Error = r.Error.Message
		}
		out = append(out, res)
	}
	return out, nil
}

func (b *surrealBackend) Ping(ctx context.Context) error {
	_, err := b.db.Version(ctx)
	return err
}

func (b *surrealBackend) Close(ctx context.Context) error {
	return b.db.Close(ctx)
}

// Conn is a named SurrealDB connection and the registry of its models
type Conn struct {
	name      string
	backend   Backend
	observers hooks.Chain
	logger    *slog.Logger

	mu     sync.RWMutex
	models map[string]*Model
}

// Open connects to SurrealDB, signs in and selects the namespace and
// database of cfg
func Open(ctx context.Context, name string, cfg Config) (*Conn, error) {
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.Endpoint())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, name, err)
	}

	_, err = db.SignIn(ctx, &surrealdb.Auth{
		Username: cfg.User,
		Password: cfg.Password,
	})
	if err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("%w: %s: signin failed: %v", ErrConnection, name, err)
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("%w: %s: use failed: %v", ErrConnection, name, err)
	}

	conn, err := NewConn(name, &surrealBackend{db: db}, cfg)
	if err != nil {
		_ = db.Close(ctx)
		return nil, err
	}
	return conn, nil
}

// NewConn wraps a backend
func NewConn(name string, backend Backend, cfg Config) (*Conn, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var observers hooks.Chain
	if cfg.Logger != nil && (cfg.Debug || cfg.LogSlowQueries > 0) {
		observers = append(observers, hooks.NewLogger(cfg.Logger, cfg.Debug, cfg.LogSlowQueries))
	}
	if cfg.MetricsRegistry != nil {
		m, err := hooks.NewMetrics(cfg.MetricsRegistry)
		if err != nil {
			return nil, fmt.Errorf("document: connection %s: failed to create metrics hook: %w", name, err)
		}
		observers = append(observers, m)
	}
	if cfg.Tracer != nil {
		observers = append(observers, hooks.NewTracing(cfg.Tracer))
	}

	return &Conn{
		name:      name,
		backend:   backend,
		observers: observers,
		logger:    logger.With(slog.String("connection", name)),
		models:    make(map[string]*Model),
	}, nil
}

// Name returns the connection name
func (c *Conn) Name() string {
	return c.name
}

// Logger returns the connection scoped logger
func (c *Conn) Logger() *slog.Logger {
	return c.logger
}

// Query runs query and fails on the first statement that did not succeed
func (c *Conn) Query(ctx context.Context, query string, vars map[string]any) ([]Result, error) {
	event := hooks.NewEvent(c.name, hooks.SystemSurrealDB, query)
	ctx = c.observers.Before(ctx, event)

	results, err := c.backend.Query(ctx, query, vars)
	if err == nil {
		err = statementError(results)
	} else {
		err = fmt.Errorf("%w: %v", ErrQuery, err)
	}

	event.Err = err
	c.observers.After(ctx, event)

	if err != nil {
		return nil, err
	}
	return results, nil
}

func statementError(results []Result) error {
	for _, r := range results {
		if r.OK() {
			continue
		}
		if r.Error != "" {
			return fmt.Errorf("%w: %s", ErrQuery, r.Error)
		}
		if msg, ok := r.Result.(string); ok && msg != "" {
			return fmt.Errorf("%w: %s", ErrQuery, msg)
		}
		return ErrQuery
	}
	return nil
}

// Ping checks the connection
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.backend.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// Close closes the connection
func (c *Conn) Close(ctx context.Context) error {
	return c.backend.Close(ctx)
}

// Model returns the model registered under name
func (c *Conn) Model(name string) (*Model, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.models[name]
	return m, ok
}

// ModelNames returns the registered model names, sorted
func (c *Conn) ModelNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Conn) addModel(m *Model, replace bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.models[m.name]; ok && !replace {
		return fmt.Errorf("%w: %s", ErrModelExists, m.name)
	}
	c.models[m.name] = m
	return nil
}
