package log

import (
	"context"
	"log/slog"
	"net/http"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Add logger to request context
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger logs ledger operations with the standard field names.
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogSubscriptionAdded logs a successful append to the ledger
func (sl *StructuredLogger) LogSubscriptionAdded(ctx context.Context, name string, price float64, period, nextDue, ref string) {
	fields := NewFields().
		WithSubscription(name, price, period, nextDue).
		WithOperation(OpAppend).
		ToSlice()

	fields = append(fields, FieldStoreRef, ref)

	sl.logger.InfoContext(ctx, "Subscription added", fields...)
}

// LogSubscriptionDeleted logs a removal by name or by position.
func (sl *StructuredLogger) LogSubscriptionDeleted(ctx context.Context, name string, index int) {
	fields := NewFields().WithOperation(OpDelete)
	if name != "" {
		fields[FieldName] = name
	}
	if index > 0 {
		fields[FieldRowIndex] = index
	}
	sl.logger.InfoContext(ctx, "Subscription deleted", fields.ToSlice()...)
}

// LogError logs a failed operation. fields may be nil.
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	sl.logger.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(operation).ToSlice()...)
}
