// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services consume them. Keeping the package
// free of net/http dependencies lets services import only what they need.
//
// Usage in services (read values):
//
//	now := requestcontext.Now(ctx)
//	actor := requestcontext.ActorContactID(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithActorContactID(ctx, 42)
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	requestIDKey      struct{}
	requestTimeKey    struct{}
	actorContactIDKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyRequestID      = requestIDKey{}
	ContextKeyRequestTime    = requestTimeKey{}
	ContextKeyActorContactID = actorContactIDKey{}
)

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. All work within one
// submission uses the same "now", so receive dates, join dates, and the
// failure activity timestamp stay consistent.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// ActorContactID retrieves the acting contact (the API user the operation
// runs as) from the context. Returns 0 if not set.
func ActorContactID(ctx context.Context) int {
	if id, ok := ctx.Value(ContextKeyActorContactID).(int); ok {
		return id
	}
	return 0
}

// WithActorContactID injects the acting contact ID into the context.
func WithActorContactID(ctx context.Context, contactID int) context.Context {
	return context.WithValue(ctx, ContextKeyActorContactID, contactID)
}
