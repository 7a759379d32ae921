package datawrapper

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// EntityGroups maps a namespace to the models it contains. Connections list
// the namespaces they serve in ConnectionConfig.Entities.
//
// Usage:
//
//	groups := datawrapper.EntityGroups{
//	    "catalog": {(*Product)(nil), (*Category)(nil)},
//	    "meta":    {(*Currency)(nil)},
//	}
type EntityGroups map[string][]any

// DataWrapper manages named connections and the binding of every model type
// to the connection serving it.
type DataWrapper struct {
	groups EntityGroups
	logger *slog.Logger
	seed   bool

	mu       sync.RWMutex
	conns    map[string]*Conn
	bindings map[reflect.Type]string
}

// Option configures a DataWrapper
type Option func(*DataWrapper)

// WithLogger sets the logger used by the wrapper and, when their config has
// none, by its connections
func WithLogger(logger *slog.Logger) Option {
	return func(dw *DataWrapper) { dw.logger = logger }
}

// WithoutMetaData disables meta data seeding when connections are added
func WithoutMetaData() Option {
	return func(dw *DataWrapper) { dw.seed = false }
}

// New returns a DataWrapper without connections
func New(groups EntityGroups, opts ...Option) *DataWrapper {
	dw := &DataWrapper{
		groups:   groups,
		logger:   slog.Default(),
		seed:     true,
		conns:    make(map[string]*Conn),
		bindings: make(map[reflect.Type]string),
	}
	for _, opt := range opts {
		opt(dw)
	}
	return dw
}

// Build opens every connection of cfg, in name order. Connections opened
// before a failure are closed.
//
// Usage:
//
//	cfg, err := datawrapper.LoadConfig("database.yaml")
//	dw, err := datawrapper.Build(ctx, groups, cfg)
//	defer dw.Close()
func Build(ctx context.Context, groups EntityGroups, cfg *Config, opts ...Option) (*DataWrapper, error) {
	dw := New(groups, opts...)

	names := make([]string, 0, len(cfg.Connections))
	for name := range cfg.Connections {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := dw.AddConnection(ctx, name, cfg.Connections[name]); err != nil {
			return nil, multierr.Append(err, dw.Close())
		}
	}
	return dw, nil
}

// AddConnection opens a PostgreSQL connection under name and attaches it
func (dw *DataWrapper) AddConnection(ctx context.Context, name string, cfg ConnectionConfig) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if _, ok := dw.conns[name]; ok {
		return fmt.Errorf("%w: %s", ErrConnectionExists, name)
	}
	if cfg.Logger == nil {
		cfg.Logger = dw.logger
	}

	conn, err := Open(ctx, name, cfg)
	if err != nil {
		return err
	}

	if err := dw.attach(ctx, name, conn); err != nil {
		return multierr.Append(err, conn.Close())
	}
	return nil
}

// AddConn attaches an already opened connection under name, which must be
// the name the connection was opened with
func (dw *DataWrapper) AddConn(ctx context.Context, name string, conn *Conn) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if conn.Name() != name {
		return fmt.Errorf("%w: connection %s attached as %s", ErrConnectionName, conn.Name(), name)
	}
	if _, ok := dw.conns[name]; ok {
		return fmt.Errorf("%w: %s", ErrConnectionExists, name)
	}
	return dw.attach(ctx, name, conn)
}

// attach registers the models of the connection's namespaces, binds them to
// it and seeds their meta data. Called with dw.mu held.
func (dw *DataWrapper) attach(ctx context.Context, name string, conn *Conn) error {
	var models []any
	for _, ns := range conn.config.Entities {
		group, ok := dw.groups[ns]
		if !ok {
			dw.logger.WarnContext(ctx, "unknown entity namespace",
				"connection", name, "namespace", ns)
			continue
		}
		models = append(models, group...)
	}

	for _, model := range models {
		typ := modelType(model)
		if owner, ok := dw.bindings[typ]; ok && owner != name {
			return fmt.Errorf("datawrapper: %s is already bound to connection %s", typ.Name(), owner)
		}
	}

	if len(models) > 0 {
		conn.RegisterModel(models...)
	}

	if dw.seed {
		for _, model := range models {
			provider, ok := model.(MetaDataProvider)
			if !ok {
				continue
			}
			if err := SeedMetaData(ctx, conn, provider); err != nil {
				return fmt.Errorf("datawrapper: seed %s: %w", entityName(model), err)
			}
		}
	}

	for _, model := range models {
		dw.bindings[modelType(model)] = name
	}
	dw.conns[name] = conn

	dw.logger.InfoContext(ctx, "connection added",
		"connection", name, "models", len(models))
	return nil
}

// modelType returns the struct type of a model pointer
func modelType(model any) reflect.Type {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// Connection returns the connection registered under name
func (dw *DataWrapper) Connection(name string) (*Conn, error) {
	dw.mu.RLock()
	defer dw.mu.RUnlock()

	conn, ok := dw.conns[name]
	if !ok {
		return nil, &ConnectionNotFoundError{Name: name}
	}
	return conn, nil
}

// ConnectionFor returns the connection serving the model type T
func ConnectionFor[T any](dw *DataWrapper) (*Conn, error) {
	typ := reflect.TypeFor[T]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	dw.mu.RLock()
	name, ok := dw.bindings[typ]
	dw.mu.RUnlock()

	if !ok {
		return nil, &ConnectionNotFoundError{Model: typ.Name()}
	}
	return dw.Connection(name)
}

// Names returns the registered connection names, sorted
func (dw *DataWrapper) Names() []string {
	dw.mu.RLock()
	defer dw.mu.RUnlock()

	names := make([]string, 0, len(dw.conns))
	for name := range dw.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StartTransaction starts a transaction on the named connection
func (dw *DataWrapper) StartTransaction(ctx context.Context, name string) (*Transaction, error) {
	conn, err := dw.Connection(name)
	if err != nil {
		return nil, err
	}
	return conn.StartTransaction(ctx)
}

// Transaction runs fn in a transaction on the named connection
func (dw *DataWrapper) Transaction(ctx context.Context, name string, fn TxFunc) error {
	conn, err := dw.Connection(name)
	if err != nil {
		return err
	}
	return conn.Transaction(ctx, fn)
}

// Health reports the health of every connection
func (dw *DataWrapper) Health(ctx context.Context) map[string]HealthStatus {
	out := make(map[string]HealthStatus)
	for _, name := range dw.Names() {
		conn, err := dw.Connection(name)
		if err != nil {
			continue
		}
		out[name] = conn.Health(ctx)
	}
	return out
}

// Close closes every connection and returns the combined errors
func (dw *DataWrapper) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	names := make([]string, 0, len(dw.conns))
	for name := range dw.conns {
		names = append(names, name)
	}
	sort.Strings(names)

	var err error
	for _, name := range names {
		if cerr := dw.conns[name].Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("datawrapper: close %s: %w", name, cerr))
		}
	}

	dw.conns = make(map[string]*Conn)
	dw.bindings = make(map[reflect.Type]string)
	return err
}
