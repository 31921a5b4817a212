package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/supabase"
	"github.com/upb/commons-portal/utils"
	"go.uber.org/zap"
)

// TokenValidator verifies bearer access tokens locally
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*supabase.AccessTokenClaims, error)
}

// AuthMiddleware attaches an AuthorizationContext to every request and guards routes
type AuthMiddleware struct {
	client    *supabase.Client
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. client serves cookie sessions and
// validator bearer tokens; either may be nil, leaving that kind of caller anonymous.
func NewAuthMiddleware(client *supabase.Client, validator TokenValidator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		client:    client,
		validator: validator,
		logger:    logger,
	}
}

// LoadAuth resolves the caller and stores the AuthorizationContext in the request context.
// A bearer Authorization header is validated locally and never falls back to cookies;
// otherwise the session cookie is validated with the auth server. Failures leave the
// caller anonymous; LoadAuth itself never rejects a request.
func (m *AuthMiddleware) LoadAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		logger := m.logger.With(zap.String("request_id", requestID))

		var ac *auth.AuthorizationContext
		if token := extractBearerToken(r); token != "" {
			ac = m.authenticateBearer(ctx, token, logger)
		} else if m.client != nil {
			rc := m.client.ForRequest(w, r)
			ctx = WithRequestClient(ctx, rc)
			ac = auth.NewSessionResolver(logger).Resolve(ctx, rc)
		} else {
			ac = auth.Anonymous()
		}

		if ac.IsAuthenticated() {
			logger.Debug("request authenticated",
				zap.String("user_id", ac.UserID()),
				zap.Int("roles", len(ac.Roles)))
		}

		next.ServeHTTP(w, r.WithContext(WithAuthContext(ctx, ac)))
	})
}

func (m *AuthMiddleware) authenticateBearer(ctx context.Context, token string, logger *zap.Logger) *auth.AuthorizationContext {
	if m.validator == nil {
		logger.Warn("bearer token presented but token validation is not configured")
		return auth.Anonymous()
	}
	claims, err := m.validator.ValidateToken(ctx, token)
	if err != nil {
		logger.Warn("token validation failed", zap.Error(err))
		return auth.Anonymous()
	}
	session := &supabase.Session{AccessToken: token, TokenType: "bearer"}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Unix()
	}
	return &auth.AuthorizationContext{
		Session: session,
		User:    claims.User(),
		Roles:   auth.ExtractRoles(token, logger),
	}
}

// RequireSession rejects unauthenticated callers with 401. It must run after LoadAuth.
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetAuthContext(r.Context()).IsAuthenticated() {
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole requires one of names on the entity whose id is in the URL parameter
// urlParam ("" for global roles). Holders of the global system_admin role always pass.
func (m *AuthMiddleware) RequireRole(roleType models.RoleType, urlParam string, names ...models.RoleName) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ac := GetAuthContext(ctx)
			if !ac.IsAuthenticated() {
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			entityID := ""
			if urlParam != "" {
				entityID = chi.URLParam(r, urlParam)
			}
			if ac.IsSystemAdmin() || ac.HasRole(roleType, entityID, names...) {
				next.ServeHTTP(w, r)
				return
			}

			m.logger.Warn("insufficient permissions",
				zap.String("request_id", GetRequestIDFromContext(ctx)),
				zap.String("user_id", ac.UserID()),
				zap.String("role_type", string(roleType)),
				zap.String("entity_id", entityID))
			_ = utils.WriteForbidden(w, "Insufficient permissions")
		})
	}
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
