package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type (
	requestCtxKey   struct{}
	actorCtxKey     struct{}
	workspaceCtxKey struct{}
	loggerCtxKey    struct{}
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 5)

	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id := RequestIDFromContext(ctx); id != "" {
		fields = append(fields, zap.String("request.id", id))
	}
	if id := ActorFromContext(ctx); id != "" {
		fields = append(fields, zap.String("actor.id", id))
	}
	if slug := WorkspaceFromContext(ctx); slug != "" {
		fields = append(fields, zap.String("workspace.slug", slug))
	}

	return fields
}

// WithRequestID adds a request ID to context. Empty IDs are ignored.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(requestCtxKey{}).(string)
	return s
}

// WithActor adds the acting user's ID to context. Empty IDs are ignored.
func WithActor(ctx context.Context, actorID string) context.Context {
	if actorID == "" {
		return ctx
	}
	return context.WithValue(ctx, actorCtxKey{}, actorID)
}

// ActorFromContext extracts the actor ID from context.
func ActorFromContext(ctx context.Context) string {
	s, _ := ctx.Value(actorCtxKey{}).(string)
	return s
}

// WithWorkspace adds the workspace slug to context. Empty slugs are ignored.
func WithWorkspace(ctx context.Context, slug string) context.Context {
	if slug == "" {
		return ctx
	}
	return context.WithValue(ctx, workspaceCtxKey{}, slug)
}

// WorkspaceFromContext extracts the workspace slug from context.
func WorkspaceFromContext(ctx context.Context) string {
	s, _ := ctx.Value(workspaceCtxKey{}).(string)
	return s
}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context, or a nop logger if none is set.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop(), config: NewDefaultConfig()}
}
