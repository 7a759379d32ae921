package datawrapper

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/fernandezvara/datawrapper/hooks"
)

// Conn is a named relational connection wrapping bun.DB
type Conn struct {
	*bun.DB
	name   string
	config ConnectionConfig
	logger *slog.Logger
}

// Open creates a new named PostgreSQL connection with the given configuration
func Open(ctx context.Context, name string, cfg ConnectionConfig) (*Conn, error) {
	cfg.applyDefaults()

	if cfg.URL == "" && cfg.Database == "" {
		return nil, &Error{
			Code:    CodeConnectionFailed,
			Message: fmt.Sprintf("connection %s: database name is required", name),
			Op:      "Open",
		}
	}

	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(cfg.DSN()),
		pgdriver.WithDialTimeout(cfg.DialTimeout),
		pgdriver.WithReadTimeout(cfg.ReadTimeout),
		pgdriver.WithWriteTimeout(cfg.WriteTimeout),
		pgdriver.WithApplicationName("datawrapper:"+name),
	)

	sqlDB := sql.OpenDB(connector)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	conn, err := NewConn(name, sqlDB, cfg)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, &Error{
			Code:    CodeConnectionFailed,
			Message: fmt.Sprintf("failed to connect to database %s", name),
			Op:      "Open",
			Cause:   err,
		}
	}

	return conn, nil
}

// NewConn wraps an already opened sql.DB speaking PostgreSQL
func NewConn(name string, sqlDB *sql.DB, cfg ConnectionConfig) (*Conn, error) {
	bunDB := bun.NewDB(sqlDB, pgdialect.New())

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observers, err := Observers(cfg)
	if err != nil {
		return nil, fmt.Errorf("datawrapper: connection %s: %w", name, err)
	}
	if len(observers) > 0 {
		bunDB.AddQueryHook(hooks.NewBunHook(name, observers...))
	}

	return &Conn{
		DB:     bunDB,
		name:   name,
		config: cfg,
		logger: logger.With(slog.String("connection", name)),
	}, nil
}

// Observers builds the observability chain described by cfg
func Observers(cfg ConnectionConfig) (hooks.Chain, error) {
	var chain hooks.Chain
	if cfg.Logger != nil && (cfg.Debug || cfg.LogSlowQueries > 0) {
		chain = append(chain, hooks.NewLogger(cfg.Logger, cfg.Debug, cfg.LogSlowQueries))
	}
	if cfg.MetricsRegistry != nil {
		m, err := hooks.NewMetrics(cfg.MetricsRegistry)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics hook: %w", err)
		}
		chain = append(chain, m)
	}
	if cfg.Tracer != nil {
		chain = append(chain, hooks.NewTracing(cfg.Tracer))
	}
	return chain, nil
}

// Name returns the connection name
func (c *Conn) Name() string {
	return c.name
}

// Close closes the database connection
func (c *Conn) Close() error {
	return c.DB.Close()
}

// Ping verifies the database connection is alive
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.PingContext(ctx); err != nil {
		return wrapError(err, "Ping")
	}
	return nil
}

// Bun returns the underlying bun.DB for direct access
func (c *Conn) Bun() *bun.DB {
	return c.DB
}

// Config returns the connection configuration
func (c *Conn) Config() ConnectionConfig {
	return c.config
}

// Logger returns the connection scoped logger
func (c *Conn) Logger() *slog.Logger {
	return c.logger
}

// CreateTables creates the tables of the given models when missing.
// Schema evolution is left to a migration tool.
func (c *Conn) CreateTables(ctx context.Context, models ...any) error {
	for _, model := range models {
		if _, err := c.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return wrapError(err, "CreateTables")
		}
	}
	return nil
}
