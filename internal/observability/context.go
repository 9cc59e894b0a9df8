package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	cycleIDKey     contextKey = "cycle_id"
	targetAliasKey contextKey = "target_alias"
	requestIDKey   contextKey = "request_id"
)

// WithCycleID adds a cycle ID to the context.
func WithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey, cycleID)
}

// CycleIDFromContext retrieves the cycle ID from context.
// Returns empty string if not present.
func CycleIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, cycleIDKey)
}

// WithTargetAlias adds the alias of the target being processed to the context.
func WithTargetAlias(ctx context.Context, alias string) context.Context {
	return context.WithValue(ctx, targetAliasKey, alias)
}

// TargetAliasFromContext retrieves the target alias from context.
// Returns empty string if not present.
func TargetAliasFromContext(ctx context.Context) string {
	return stringFromContext(ctx, targetAliasKey)
}

// WithRequestID adds an HTTP request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if not present.
func RequestIDFromContext(ctx context.Context) string {
	return stringFromContext(ctx, requestIDKey)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v := ctx.Value(key); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
