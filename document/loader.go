package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

// Models maps model names to registered models
type Models map[string]*Model

// Get returns the model registered under name, or nil
func (m Models) Get(name string) *Model {
	return m[name]
}

// schemaFile is the declarative form of a schema
type schemaFile struct {
	Table       string `yaml:"table" json:"table"`
	Timestamps  *bool  `yaml:"timestamps" json:"timestamps"`
	Strict      bool   `yaml:"strict" json:"strict"`
	SubDocument bool   `yaml:"sub_document" json:"sub_document"`
	Fields      Fields `yaml:"fields" json:"fields"`
}

// LoaderOption configures LoadModels
type LoaderOption func(*loader)

type loader struct {
	extensions map[string][]func(*Schema)
	schemas    map[string]*Schema
	workers    int
	replace    bool
}

// WithExtension attaches Go behavior (methods, statics, hooks, virtual
// accessors) to the schema loaded from the file named name
func WithExtension(name string, fn func(*Schema)) LoaderOption {
	return func(l *loader) {
		l.extensions[name] = append(l.extensions[name], fn)
	}
}

// WithSchema adds a schema defined in code under name
func WithSchema(name string, schema *Schema) LoaderOption {
	return func(l *loader) {
		l.schemas[name] = schema
	}
}

// WithWorkers limits the number of files parsed concurrently
func WithWorkers(n int) LoaderOption {
	return func(l *loader) {
		if n > 0 {
			l.workers = n
		}
	}
}

func withReplace() LoaderOption {
	return func(l *loader) { l.replace = true }
}

// IsSchemaFile reports whether a directory entry name is loaded as a schema.
// Hidden names, names without an extension and names containing "index",
// "spec" or "_" are skipped, as are unsupported extensions.
func IsSchemaFile(name string) bool {
	if strings.HasPrefix(name, ".") || !strings.Contains(name, ".") {
		return false
	}
	if strings.Contains(name, "index") || strings.Contains(name, "spec") || strings.Contains(name, "_") {
		return false
	}
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadModels parses every schema file of dir, builds the schemas and
// registers each one that is not a sub-document on conn. The model name is
// the file name without its extension.
//
// Usage:
//
//	models, err := document.LoadModels(ctx, conn, "./schemas",
//	    document.WithExtension("Person", func(s *document.Schema) {
//	        s.Method("greet", greet)
//	    }))
func LoadModels(ctx context.Context, conn *Conn, dir string, opts ...LoaderOption) (Models, error) {
	l := &loader{
		extensions: make(map[string][]func(*Schema)),
		schemas:    make(map[string]*Schema),
		workers:    8,
	}
	for _, opt := range opts {
		opt(l)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("document: read models dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && IsSchemaFile(e.Name()) {
			names = append(names, e.Name())
		}
	}

	parsed := make([]*schemaFile, len(names))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.workers)
	for i, name := range names {
		eg.Go(func() error {
			select {
			case <-egCtx.Done():
				return egCtx.Err()
			default:
			}
			sf, err := parseSchemaFile(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			parsed[i] = sf
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	schemas := make(map[string]*Schema, len(names)+len(l.schemas))
	for i, name := range names {
		model := strings.TrimSuffix(name, filepath.Ext(name))
		if _, ok := schemas[model]; ok {
			return nil, fmt.Errorf("document: model %s is declared twice in %s", model, dir)
		}
		sf := parsed[i]
		schemas[model] = DefineSchema(FieldsOf(sf.Fields), Definition{
			Timestamps:  sf.Timestamps,
			SubDocument: sf.SubDocument,
			Strict:      sf.Strict,
			Table:       sf.Table,
		})
	}
	for name, s := range l.schemas {
		if _, ok := schemas[name]; ok {
			return nil, fmt.Errorf("document: model %s is declared both in code and in %s", name, dir)
		}
		schemas[name] = s
	}

	for name, fns := range l.extensions {
		s, ok := schemas[name]
		if !ok {
			return nil, fmt.Errorf("document: extension for unknown model %s", name)
		}
		for _, fn := range fns {
			fn(s)
		}
	}

	order := make([]string, 0, len(schemas))
	for name := range schemas {
		order = append(order, name)
	}
	sort.Strings(order)

	bc := BuildContext{Schemas: schemas, Conn: conn}
	for _, name := range order {
		if err := schemas[name].Build(bc); err != nil {
			return nil, fmt.Errorf("document: build %s: %w", name, err)
		}
	}

	// table names are known before any model is declared so references
	// between models resolve regardless of order
	tables := conn.tables()
	for _, name := range order {
		if s := schemas[name]; !s.IsSubDocument() {
			table := s.Definition().Table
			if table == "" {
				table = TableName(name)
			}
			tables[name] = table
		}
	}

	models := make(Models)
	for _, name := range order {
		if schemas[name].IsSubDocument() {
			continue
		}
		m, err := register(ctx, conn, name, schemas[name], tables, l.replace)
		if err != nil {
			return nil, err
		}
		models[name] = m
	}

	conn.logger.InfoContext(ctx, "models loaded", "dir", dir, "models", len(models))
	return models, nil
}

func parseSchemaFile(path string) (*schemaFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("document: read %s: %w", path, err)
	}

	var sf schemaFile
	if filepath.Ext(path) == ".json" {
		err = json.Unmarshal(data, &sf)
	} else {
		err = yaml.Unmarshal(data, &sf)
	}
	if err != nil {
		return nil, fmt.Errorf("document: parse %s: %w", path, err)
	}
	return &sf, nil
}
