// Package requestcontext carries request-scoped values (identity, client metadata,
// request time) between middleware, handlers and the activity pipeline.
package requestcontext

import (
	"context"
	"time"

	id "reloop/pkg/domain"
)

type (
	contextKeyRequestID   struct{}
	contextKeyUserID      struct{}
	contextKeyRole        struct{}
	contextKeyClientIP    struct{}
	contextKeyUserAgent   struct{}
	contextKeyRequestTime struct{}
)

// RoleSuperAdmin may query every user's activity; other roles are scoped to themselves.
const RoleSuperAdmin = "super_admin"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the correlation ID assigned by the RequestID middleware, or "".
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyRequestID{}).(string)
	return v
}

// WithUserID attaches the authenticated subject. Only verified identities belong here.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

func UserID(ctx context.Context) id.UserID {
	v, _ := ctx.Value(contextKeyUserID{}).(id.UserID)
	return v
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, contextKeyRole{}, role)
}

func Role(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyRole{}).(string)
	return v
}

// IsSuperAdmin reports whether the authenticated caller carries the super admin role.
func IsSuperAdmin(ctx context.Context) bool {
	return Role(ctx) == RoleSuperAdmin
}

// WithClientMetadata stores the resolved client IP and raw User-Agent.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, ip)
	return context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyClientIP{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyUserAgent{}).(string)
	return v
}

// WithTime pins "now" for everything running under ctx.
// Useful for tests and workers that need one timestamp for a batch.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, t)
}

// Now returns the request-scoped time, falling back to time.Now() outside HTTP requests.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
