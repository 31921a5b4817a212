package community

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"github.com/upb/commons-portal/services"
	"github.com/upb/commons-portal/services/project"
	"github.com/upb/commons-portal/utils"
	"go.uber.org/zap"
)

// extentKinds are the WKT geometries accepted as a community extent
var extentKinds = []string{"POLYGON", "MULTIPOLYGON", "POINT"}

// CreateCommunityRequest is the body of a community creation. Extent is EPSG:4326
// well-known text, empty for no extent.
type CreateCommunityRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Extent      string          `json:"extent,omitempty"`
	ContactInfo json.RawMessage `json:"contactinfo,omitempty"`
	Info        json.RawMessage `json:"communityinfo,omitempty"`
	Public      bool            `json:"public"`
}

// LinkProjectRequest attaches a project to a community
type LinkProjectRequest struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
}

// Service implements community operations
type Service struct {
	communities repositories.CommunityRepository
	roles       repositories.UserRoleRepository
	txMgr       repositories.TransactionManager
	logger      *zap.Logger
}

// NewService creates a new community Service
func NewService(
	communities repositories.CommunityRepository,
	roles repositories.UserRoleRepository,
	txMgr repositories.TransactionManager,
	logger *zap.Logger,
) *Service {
	return &Service{
		communities: communities,
		roles:       roles,
		txMgr:       txMgr,
		logger:      logger,
	}
}

// List returns the page of communities visible to the caller, with their extent as
// center and bounds. Hidden communities are dropped from the page.
func (s *Service) List(ctx context.Context, ac *auth.AuthorizationContext, limit, offset int) ([]*models.Community, error) {
	limit, offset = project.Page(limit, offset)
	communities, err := s.communities.List(ctx, limit, offset)
	if err != nil {
		return nil, services.FromRepository(err, nil)
	}
	visible := make([]*models.Community, 0, len(communities))
	for _, c := range communities {
		if CanView(ac, c) {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

// Get returns a community visible to the caller. Private communities are visible to
// holders of a role on them and to system admins.
func (s *Service) Get(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID) (*models.Community, error) {
	community, err := s.communities.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrCommunityNotFound)
	}
	if !CanView(ac, community) {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, services.ErrCommunityNotFound.Message, nil)
	}
	return community, nil
}

// CanView reports whether the caller may see the community
func CanView(ac *auth.AuthorizationContext, community *models.Community) bool {
	return community.Public || ac.IsSystemAdmin() || ac.HasRole(models.RoleTypeCommunity, community.ID.String())
}

// Create creates a community; only system admins may. The creator becomes its owner.
func (s *Service) Create(ctx context.Context, ac *auth.AuthorizationContext, req CreateCommunityRequest) (*models.Community, error) {
	if !ac.IsAuthenticated() {
		return nil, services.ErrUnauthorized
	}
	if !ac.IsSystemAdmin() {
		return nil, services.ErrInsufficientPermissions
	}
	userID, err := uuid.Parse(ac.UserID())
	if err != nil {
		return nil, services.NewDomainError(services.ErrorTypeUnauthorized, "invalid user id", err)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Extent = strings.TrimSpace(req.Extent)
	if err := validate(&req); err != nil {
		return nil, err
	}
	if req.Extent != "" && !isExtent(req.Extent) {
		return nil, services.ValidationFailed(map[string]string{
			"extent": "Extent must be a POLYGON, MULTIPOLYGON or POINT",
		})
	}

	community := models.NewCommunity(req.Name, req.Public)
	community.ContactInfo = req.ContactInfo
	community.Info = req.Info

	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) error {
		if err := s.communities.Create(ctx, community, req.Extent); err != nil {
			return err
		}
		if err := s.communities.AddMember(ctx, community.ID, userID); err != nil {
			return err
		}
		return s.roles.Create(ctx, models.NewUserRole(userID, models.RoleOwner, models.RoleTypeCommunity, community.ID.String()))
	})
	if err != nil {
		return nil, services.FromRepository(err, nil)
	}

	s.logger.Info("community created",
		zap.String("community_id", community.ID.String()),
		zap.String("created_by", userID.String()))
	return community, nil
}

// RemoveMember removes a user and their community roles; owners, admins and moderators may remove
func (s *Service) RemoveMember(ctx context.Context, ac *auth.AuthorizationContext, communityID, userID uuid.UUID) error {
	if err := authorize(ac, communityID, models.RoleOwner, models.RoleAdmin, models.RoleModerator); err != nil {
		return err
	}
	if err := s.communities.RemoveMember(ctx, communityID, userID); err != nil {
		return services.FromRepository(err, nil)
	}

	s.logger.Info("community member removed",
		zap.String("community_id", communityID.String()),
		zap.String("member_id", userID.String()),
		zap.String("removed_by", ac.UserID()))
	return nil
}

// LinkProject attaches a project to a community; owners and admins may link
func (s *Service) LinkProject(ctx context.Context, ac *auth.AuthorizationContext, communityID uuid.UUID, req LinkProjectRequest) (*models.CommunityProject, error) {
	if err := authorize(ac, communityID, models.RoleOwner, models.RoleAdmin); err != nil {
		return nil, err
	}
	if err := validate(&req); err != nil {
		return nil, err
	}

	link := models.NewCommunityProject(communityID, uuid.MustParse(req.ProjectID))
	if err := s.communities.LinkProject(ctx, link); err != nil {
		return nil, services.FromRepository(err, nil)
	}
	return link, nil
}

// Projects lists the community's projects the caller may see
func (s *Service) Projects(ctx context.Context, ac *auth.AuthorizationContext, communityID uuid.UUID) ([]*models.Project, error) {
	if _, err := s.Get(ctx, ac, communityID); err != nil {
		return nil, err
	}
	projects, err := s.communities.ListProjects(ctx, communityID)
	if err != nil {
		return nil, services.FromRepository(err, nil)
	}

	visible := make([]*models.Project, 0, len(projects))
	for _, p := range projects {
		if project.CanView(ac, p) {
			visible = append(visible, p)
		}
	}
	return visible, nil
}

func authorize(ac *auth.AuthorizationContext, communityID uuid.UUID, names ...models.RoleName) error {
	if !ac.IsAuthenticated() {
		return services.ErrUnauthorized
	}
	if ac.IsSystemAdmin() || ac.HasRole(models.RoleTypeCommunity, communityID.String(), names...) {
		return nil
	}
	return services.ErrInsufficientPermissions
}

func isExtent(wkt string) bool {
	upper := strings.ToUpper(wkt)
	for _, kind := range extentKinds {
		if strings.HasPrefix(upper, kind) {
			rest := strings.TrimSpace(upper[len(kind):])
			if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
				return true
			}
		}
	}
	return false
}

func validate(req interface{}) error {
	if err := utils.ValidateStruct(req); err != nil {
		if fields := utils.GetValidationFields(err); fields != nil {
			return services.ValidationFailed(fields)
		}
		return services.WrapInternal("failed to validate request", err)
	}
	return nil
}
