package auth

import (
	"context"
	"errors"

	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/supabase"
	"go.uber.org/zap"
)

// IdentityProvider is the per-request view of the auth server the resolver needs.
// supabase.RequestClient implements it.
type IdentityProvider interface {
	// GetSession returns the session carried by the request, unvalidated
	GetSession(ctx context.Context) (*supabase.Session, error)

	// GetUser validates accessToken with the auth server
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
}

// AuthorizationContext is what route handlers know about the caller. Session and User
// are either both set or both nil; Roles is never nil.
type AuthorizationContext struct {
	Session *supabase.Session  `json:"-"`
	User    *supabase.User     `json:"user"`
	Roles   []models.RoleClaim `json:"roles"`
}

// Anonymous returns the context of an unauthenticated caller
func Anonymous() *AuthorizationContext {
	return &AuthorizationContext{Roles: []models.RoleClaim{}}
}

// IsAuthenticated reports whether the caller holds a session the auth server accepted
func (a *AuthorizationContext) IsAuthenticated() bool {
	return a != nil && a.User != nil
}

// UserID returns the authenticated user's id or ""
func (a *AuthorizationContext) UserID() string {
	if !a.IsAuthenticated() {
		return ""
	}
	return a.User.ID
}

// HasRole reports whether the caller holds one of names on the entity. With no names any
// role on the entity matches. For global roles entityID is ignored.
func (a *AuthorizationContext) HasRole(roleType models.RoleType, entityID string, names ...models.RoleName) bool {
	if !a.IsAuthenticated() {
		return false
	}
	for _, c := range a.Roles {
		if !c.Matches(roleType, entityID) {
			continue
		}
		if len(names) == 0 {
			return true
		}
		for _, n := range names {
			if c.RoleName == n {
				return true
			}
		}
	}
	return false
}

// HasGlobalRole reports whether the caller holds one of the global roles
func (a *AuthorizationContext) HasGlobalRole(names ...models.RoleName) bool {
	return a.HasRole(models.RoleTypeGlobal, "", names...)
}

// IsSystemAdmin reports whether the caller holds the global system_admin role
func (a *AuthorizationContext) IsSystemAdmin() bool {
	return a.HasGlobalRole(models.RoleSystemAdmin)
}

// RolesFor returns the role names the caller holds on the entity
func (a *AuthorizationContext) RolesFor(roleType models.RoleType, entityID string) []models.RoleName {
	names := []models.RoleName{}
	if !a.IsAuthenticated() {
		return names
	}
	for _, c := range a.Roles {
		if c.Matches(roleType, entityID) {
			names = append(names, c.RoleName)
		}
	}
	return names
}

// SessionResolver turns a request's session into an AuthorizationContext
type SessionResolver struct {
	logger *zap.Logger
}

// NewSessionResolver creates a new SessionResolver
func NewSessionResolver(logger *zap.Logger) *SessionResolver {
	return &SessionResolver{logger: logger}
}

// Resolve reads the session from the provider, validates its access token with the auth
// server and decodes the role claims. Any failure yields an anonymous context: a session
// whose user cannot be confirmed is never partially trusted.
func (s *SessionResolver) Resolve(ctx context.Context, provider IdentityProvider) *AuthorizationContext {
	session, err := provider.GetSession(ctx)
	if err != nil {
		if !errors.Is(err, supabase.ErrNoSession) {
			s.logger.Warn("failed to load session", zap.Error(err))
		}
		return Anonymous()
	}
	if session == nil || session.AccessToken == "" {
		return Anonymous()
	}

	user, err := provider.GetUser(ctx, session.AccessToken)
	if err != nil {
		s.logger.Warn("session rejected by auth server", zap.Error(err))
		return Anonymous()
	}
	if user == nil || user.ID == "" {
		s.logger.Warn("auth server returned no user for session")
		return Anonymous()
	}

	return &AuthorizationContext{
		Session: session,
		User:    user,
		Roles:   ExtractRoles(session.AccessToken, s.logger),
	}
}
