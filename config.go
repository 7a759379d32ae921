package datawrapper

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// ConnectionConfig holds the settings of one named database connection
type ConnectionConfig struct {
	// Connection
	URL      string `yaml:"url"` // Full connection string, overrides the discrete fields
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	Debug    bool   `yaml:"debug"` // Log every query

	// Entity namespaces bound to this connection
	Entities []string `yaml:"entities"`

	// Pool settings
	MaxOpenConns    int           `yaml:"max_open_conns"`     // default: 25
	MaxIdleConns    int           `yaml:"max_idle_conns"`     // default: 5
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`  // default: 5m
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"` // default: 1m

	// Timeouts
	DialTimeout  time.Duration `yaml:"dial_timeout"`  // default: 5s
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"` // default: 30s

	// Observability (all optional)
	Logger          *slog.Logger          `yaml:"-"`
	LogSlowQueries  time.Duration         `yaml:"log_slow_queries"` // 0 = disabled
	MetricsRegistry prometheus.Registerer `yaml:"-"`
	Tracer          trace.Tracer          `yaml:"-"`
	Audit           AuditHandler          `yaml:"-"`
}

// Config is a set of named connections, usually loaded from YAML:
//
//	connections:
//	  main:
//	    host: localhost
//	    port: 5432
//	    database: app
//	    user: ${DB_USER}
//	    password: ${DB_PASSWORD}
//	    entities: [catalog, files]
type Config struct {
	Connections map[string]ConnectionConfig `yaml:"connections"`
}

// DefaultConnectionConfig returns sensible defaults
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		Host:            "localhost",
		Port:            5432,
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 1 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
	}
}

// applyDefaults fills in zero values with defaults
func (c *ConnectionConfig) applyDefaults() {
	d := DefaultConnectionConfig()
	if c.Host == "" {
		c.Host = d.Host
	}
	if c.Port == 0 {
		c.Port = d.Port
	}
	if c.SSLMode == "" {
		c.SSLMode = d.SSLMode
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = d.MaxOpenConns
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = d.MaxIdleConns
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = d.ConnMaxLifetime
	}
	if c.ConnMaxIdleTime == 0 {
		c.ConnMaxIdleTime = d.ConnMaxIdleTime
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = d.DialTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
}

// DSN returns the PostgreSQL connection string
func (c ConnectionConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.User, c.Password)
		} else {
			u.User = url.User(c.User)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// WithLogger sets the structured logger
func (c ConnectionConfig) WithLogger(logger *slog.Logger) ConnectionConfig {
	c.Logger = logger
	return c
}

// WithDebug logs every query
func (c ConnectionConfig) WithDebug(on bool) ConnectionConfig {
	c.Debug = on
	return c
}

// WithSlowQueryLog logs queries slower than the threshold
func (c ConnectionConfig) WithSlowQueryLog(threshold time.Duration) ConnectionConfig {
	c.LogSlowQueries = threshold
	return c
}

// WithMetrics enables Prometheus metrics
func (c ConnectionConfig) WithMetrics(registry prometheus.Registerer) ConnectionConfig {
	c.MetricsRegistry = registry
	return c
}

// WithTracing enables OpenTelemetry tracing
func (c ConnectionConfig) WithTracing(tracer trace.Tracer) ConnectionConfig {
	c.Tracer = tracer
	return c
}

// WithEntities binds entity namespaces to the connection
func (c ConnectionConfig) WithEntities(namespaces ...string) ConnectionConfig {
	c.Entities = append(append([]string(nil), c.Entities...), namespaces...)
	return c
}

// ParseConfig decodes a YAML connection file. ${VAR} references are expanded
// from the environment before decoding.
func ParseConfig(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("datawrapper: parse config: %w", err)
	}
	if len(cfg.Connections) == 0 {
		return nil, fmt.Errorf("datawrapper: config declares no connections")
	}
	return &cfg, nil
}

// LoadConfig reads and parses a YAML connection file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("datawrapper: read config: %w", err)
	}
	return ParseConfig(data)
}
