package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"github.com/upb/commons-portal/services"
	"go.uber.org/zap"
)

// Me is what the signed-in caller may know about themself
type Me struct {
	ID          string             `json:"id"`
	Email       string             `json:"email"`
	FirstName   string             `json:"firstName,omitempty"`
	LastName    string             `json:"lastName,omitempty"`
	Roles       []models.RoleClaim `json:"roles"`
	SystemAdmin bool               `json:"system_admin"`
}

// Dashboard is a user's landing page: their profile, memberships and roles
type Dashboard struct {
	Profile     *models.UserProfile `json:"profile,omitempty"`
	Projects    []*models.Project   `json:"projects"`
	Communities []*models.Community `json:"communities"`
	Roles       []models.RoleClaim  `json:"roles"`
}

// Service serves per-user views
type Service struct {
	profiles    repositories.UserProfileRepository
	projects    repositories.ProjectRepository
	communities repositories.CommunityRepository
	roles       repositories.UserRoleRepository
	logger      *zap.Logger
}

// NewService creates a new user Service
func NewService(repos *repositories.Repositories, logger *zap.Logger) *Service {
	return &Service{
		profiles:    repos.UserProfiles,
		projects:    repos.Projects,
		communities: repos.Communities,
		roles:       repos.UserRoles,
		logger:      logger,
	}
}

// Me projects the caller's AuthorizationContext
func (s *Service) Me(ac *auth.AuthorizationContext) (*Me, error) {
	if !ac.IsAuthenticated() {
		return nil, services.ErrUnauthorized
	}
	return &Me{
		ID:          ac.User.ID,
		Email:       ac.User.Email,
		FirstName:   ac.User.MetadataString("firstName"),
		LastName:    ac.User.MetadataString("lastName"),
		Roles:       ac.Roles,
		SystemAdmin: ac.IsSystemAdmin(),
	}, nil
}

// Profile returns a user's profile to any signed-in caller
func (s *Service) Profile(ctx context.Context, ac *auth.AuthorizationContext, userID uuid.UUID) (*models.UserProfile, error) {
	if !ac.IsAuthenticated() {
		return nil, services.ErrUnauthorized
	}
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrProfileNotFound)
	}
	return profile, nil
}

// Dashboard returns the user's dashboard. Callers may see their own; system admins any.
// The caller's own roles come from the token, anyone else's from user_roles.
func (s *Service) Dashboard(ctx context.Context, ac *auth.AuthorizationContext, userID uuid.UUID) (*Dashboard, error) {
	if !ac.IsAuthenticated() {
		return nil, services.ErrUnauthorized
	}
	self := ac.UserID() == userID.String()
	if !self && !ac.IsSystemAdmin() {
		return nil, services.ErrInsufficientPermissions
	}

	dashboard := &Dashboard{}

	profile, err := s.profiles.GetByID(ctx, userID)
	switch {
	case err == nil:
		dashboard.Profile = profile
	case errors.Is(err, repositories.ErrNotFound):
		// profile not set yet
	default:
		return nil, services.FromRepository(err, nil)
	}

	if dashboard.Projects, err = s.projects.ListByMember(ctx, userID); err != nil {
		return nil, services.FromRepository(err, nil)
	}
	if dashboard.Communities, err = s.communities.ListByMember(ctx, userID); err != nil {
		return nil, services.FromRepository(err, nil)
	}

	if self {
		dashboard.Roles = ac.Roles
		return dashboard, nil
	}
	stored, err := s.roles.ListByUser(ctx, userID)
	if err != nil {
		return nil, services.FromRepository(err, nil)
	}
	dashboard.Roles = make([]models.RoleClaim, 0, len(stored))
	for _, r := range stored {
		dashboard.Roles = append(dashboard.Roles, r.Claim())
	}

	s.logger.Debug("dashboard viewed by system admin",
		zap.String("user_id", userID.String()),
		zap.String("admin_id", ac.UserID()))
	return dashboard, nil
}
