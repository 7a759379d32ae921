package hooks

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

var metricLabels = []string{"connection", "system", "operation"}

// Metrics collects Prometheus statement metrics
type Metrics struct {
	queryDuration *prometheus.HistogramVec
	queryTotal    *prometheus.CounterVec
	queryErrors   *prometheus.CounterVec
}

// NewMetrics creates a metrics observer and registers its collectors.
// Collectors already registered by another connection are reused.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "datawrapper_query_duration_seconds",
				Help:    "Duration of database statements in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			metricLabels,
		),
		queryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datawrapper_queries_total",
				Help: "Total number of database statements",
			},
			metricLabels,
		),
		queryErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "datawrapper_query_errors_total",
				Help: "Total number of failed database statements",
			},
			metricLabels,
		),
	}

	var err error
	if m.queryDuration, err = register(registry, m.queryDuration); err != nil {
		return nil, err
	}
	if m.queryTotal, err = register(registry, m.queryTotal); err != nil {
		return nil, err
	}
	if m.queryErrors, err = register(registry, m.queryErrors); err != nil {
		return nil, err
	}

	return m, nil
}

func register[C prometheus.Collector](registry prometheus.Registerer, c C) (C, error) {
	if err := registry.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Before is a no-op
func (m *Metrics) Before(ctx context.Context, _ *Event) context.Context {
	return ctx
}

// After records the statement
func (m *Metrics) After(_ context.Context, event *Event) {
	labels := prometheus.Labels{
		"connection": event.Connection,
		"system":     event.System,
		"operation":  event.Operation,
	}

	m.queryDuration.With(labels).Observe(event.Duration().Seconds())
	m.queryTotal.With(labels).Inc()

	if event.Err != nil {
		m.queryErrors.With(labels).Inc()
	}
}
