package hooks

import (
	"context"
	"log/slog"
	"time"
)

const maxLoggedQuery = 500

// Logger logs statements through slog
type Logger struct {
	logger        *slog.Logger
	logAll        bool
	slowThreshold time.Duration
}

// NewLogger creates a logging observer. With logAll every statement is
// logged at debug level; otherwise only failures and statements slower than
// slowThreshold are reported.
func NewLogger(logger *slog.Logger, logAll bool, slowThreshold time.Duration) *Logger {
	return &Logger{
		logger:        logger,
		logAll:        logAll,
		slowThreshold: slowThreshold,
	}
}

// Before is a no-op
func (l *Logger) Before(ctx context.Context, _ *Event) context.Context {
	return ctx
}

// After logs the finished statement
func (l *Logger) After(ctx context.Context, event *Event) {
	duration := event.Duration()
	slow := l.slowThreshold > 0 && duration >= l.slowThreshold

	if !l.logAll && !slow && event.Err == nil {
		return
	}

	query := event.Query
	if len(query) > maxLoggedQuery {
		query = query[:maxLoggedQuery] + "..."
	}

	attrs := []slog.Attr{
		slog.String("connection", event.Connection),
		slog.String("system", event.System),
		slog.String("operation", event.Operation),
		slog.Duration("duration", duration),
		slog.String("query", query),
	}

	switch {
	case event.Err != nil:
		attrs = append(attrs, slog.String("error", event.Err.Error()))
		l.logger.LogAttrs(ctx, slog.LevelError, "database query failed", attrs...)
	case slow:
		l.logger.LogAttrs(ctx, slog.LevelWarn, "slow database query", attrs...)
	default:
		l.logger.LogAttrs(ctx, slog.LevelDebug, "database query", attrs...)
	}
}
