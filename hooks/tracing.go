package hooks

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing creates an OpenTelemetry span per statement
type Tracing struct {
	tracer trace.Tracer
}

// NewTracing creates a tracing observer
func NewTracing(tracer trace.Tracer) *Tracing {
	return &Tracing{tracer: tracer}
}

type spanCtxKey struct{}

// Before starts the span
func (t *Tracing) Before(ctx context.Context, event *Event) context.Context {
	if t.tracer == nil {
		return ctx
	}

	ctx, span := t.tracer.Start(ctx, "db."+event.Operation,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	return context.WithValue(ctx, spanCtxKey{}, span)
}

// After ends the span
func (t *Tracing) After(ctx context.Context, event *Event) {
	span, ok := ctx.Value(spanCtxKey{}).(trace.Span)
	if !ok {
		return
	}
	defer span.End()

	query := event.Query
	if len(query) > maxLoggedQuery {
		query = query[:maxLoggedQuery] + "..."
	}

	span.SetAttributes(
		attribute.String("db.system", event.System),
		attribute.String("db.name", event.Connection),
		attribute.String("db.statement", query),
		attribute.String("db.operation", event.Operation),
	)

	if event.Err != nil {
		span.RecordError(event.Err)
		span.SetStatus(codes.Error, event.Err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
}
