package tracing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKey is the type for context keys
type ContextKey string

const (
	// TraceIDKey is the context key for trace ID
	TraceIDKey ContextKey = "trace_id"
	// DispatchIDKey is the context key for the id of one command dispatch
	DispatchIDKey ContextKey = "dispatch_id"
	// MessageIDKey is the context key for the inbound message id
	MessageIDKey ContextKey = "message_id"
)

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewDispatchID generates a new dispatch ID
func NewDispatchID() string {
	return uuid.New().String()
}

// WithTraceID adds a trace ID to the context
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithDispatchID adds a dispatch ID to the context
func WithDispatchID(ctx context.Context, dispatchID string) context.Context {
	return context.WithValue(ctx, DispatchIDKey, dispatchID)
}

// WithMessageID adds the inbound message ID to the context
func WithMessageID(ctx context.Context, messageID string) context.Context {
	return context.WithValue(ctx, MessageIDKey, messageID)
}

// GetTraceID retrieves the trace ID from the context
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// GetDispatchID retrieves the dispatch ID from the context
func GetDispatchID(ctx context.Context) string {
	if id, ok := ctx.Value(DispatchIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMessageID retrieves the message ID from the context
func GetMessageID(ctx context.Context) string {
	if id, ok := ctx.Value(MessageIDKey).(string); ok {
		return id
	}
	return ""
}

// NewDispatchContext starts a dispatch scope for one inbound message.
func NewDispatchContext(ctx context.Context, messageID string) context.Context {
	ctx = WithDispatchID(ctx, NewDispatchID())
	return WithMessageID(ctx, messageID)
}

// LoggerFromContext adds the tracing fields found in ctx to logger.
func LoggerFromContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	lc := logger.With()
	if id := GetDispatchID(ctx); id != "" {
		lc = lc.Str("dispatch_id", id)
	}
	if id := GetMessageID(ctx); id != "" {
		lc = lc.Str("message_id", id)
	}
	if id := GetTraceID(ctx); id != "" {
		lc = lc.Str("trace_id", id)
	}
	return lc.Logger()
}
