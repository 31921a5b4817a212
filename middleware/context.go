package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/supabase"
)

// Context key type to avoid collisions
type contextKey string

const (
	// AuthContextKey is the context key for the caller's AuthorizationContext
	AuthContextKey contextKey = "auth_context"

	// RequestClientKey is the context key for the request-bound Supabase client
	RequestClientKey contextKey = "supabase_client"
)

// GetRequestIDFromContext returns the id set by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}

// GetAuthContext returns the caller's AuthorizationContext, anonymous when none was set
func GetAuthContext(ctx context.Context) *auth.AuthorizationContext {
	if ac, ok := ctx.Value(AuthContextKey).(*auth.AuthorizationContext); ok && ac != nil {
		return ac
	}
	return auth.Anonymous()
}

// WithAuthContext adds the caller's AuthorizationContext to the context
func WithAuthContext(ctx context.Context, ac *auth.AuthorizationContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, ac)
}

// GetRequestClient returns the request-bound Supabase client, or nil
func GetRequestClient(ctx context.Context) *supabase.RequestClient {
	rc, _ := ctx.Value(RequestClientKey).(*supabase.RequestClient)
	return rc
}

// WithRequestClient adds the request-bound Supabase client to the context
func WithRequestClient(ctx context.Context, rc *supabase.RequestClient) context.Context {
	return context.WithValue(ctx, RequestClientKey, rc)
}
