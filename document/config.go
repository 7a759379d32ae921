package document

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
)

// Config holds the settings of a SurrealDB connection
type Config struct {
	URL       string `yaml:"url"` // Endpoint, overrides Host and Port
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Namespace string `yaml:"namespace"`
	Database  string `yaml:"database"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Debug     bool   `yaml:"debug"`

	// Observability (all optional)
	Logger          *slog.Logger          `yaml:"-"`
	LogSlowQueries  time.Duration         `yaml:"log_slow_queries"`
	MetricsRegistry prometheus.Registerer `yaml:"-"`
	Tracer          trace.Tracer          `yaml:"-"`
}

// DefaultConfig returns a local connection configuration
func DefaultConfig() Config {
	return Config{
		Host:      "localhost",
		Port:      8000,
		Namespace: "datawrapper",
		Database:  "datawrapper",
		User:      "root",
		Password:  "root",
	}
}

// Endpoint returns the websocket endpoint of the server
func (c Config) Endpoint() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("ws://%s:%d", c.Host, c.Port)
}
