// Package requestcontext carries request-scoped values (correlation id,
// request time, client metadata, authenticated key fingerprint) through a
// context so services and stores can read them without importing net/http.
package requestcontext

import (
	"context"
	"time"
)

type (
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	apiClientKey   struct{}
)

// Keys are exported for tests that build contexts with context.WithValue.
var (
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyAPIClient   = apiClientKey{}
)

func stringValue(ctx context.Context, key any) string {
	v, _ := ctx.Value(key).(string)
	return v
}

func ClientIP(ctx context.Context) string {
	return stringValue(ctx, ContextKeyClientIP)
}

func UserAgent(ctx context.Context) string {
	return stringValue(ctx, ContextKeyUserAgent)
}

// WithClientMetadata stores the caller address and User-Agent.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	return context.WithValue(ctx, ContextKeyUserAgent, userAgent)
}

// APIClient returns the non-secret fingerprint of the API key that
// authenticated the request, or "" when none did.
func APIClient(ctx context.Context) string {
	return stringValue(ctx, ContextKeyAPIClient)
}

func WithAPIClient(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, ContextKeyAPIClient, fingerprint)
}

// RequestID returns the correlation id, or "" outside a request.
func RequestID(ctx context.Context) string {
	return stringValue(ctx, ContextKeyRequestID)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the time the request was received. Outside a request (loader,
// background writers) it falls back to time.Now.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time, e.g. to make daily counters deterministic
// in tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
