package project

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"github.com/upb/commons-portal/services"
	"github.com/upb/commons-portal/utils"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize is used when a list request has no usable limit
	DefaultPageSize = 50
	// MaxPageSize caps list requests
	MaxPageSize = 200
)

// CreateProjectRequest is the body of a project creation
type CreateProjectRequest struct {
	Name   string          `json:"projectname" validate:"required,max=200"`
	Info   json.RawMessage `json:"projectinfo,omitempty"`
	Public bool            `json:"public"`
}

// UpdateProjectRequest changes the fields that are set
type UpdateProjectRequest struct {
	Name   *string         `json:"projectname,omitempty" validate:"omitempty,min=1,max=200"`
	Info   json.RawMessage `json:"projectinfo,omitempty"`
	Public *bool           `json:"public,omitempty"`
}

// CreateCommentRequest is the body of a new comment
type CreateCommentRequest struct {
	Body string `json:"comment" validate:"required,max=5000"`
}

// Service implements project operations on behalf of the caller in an AuthorizationContext
type Service struct {
	projects repositories.ProjectRepository
	roles    repositories.UserRoleRepository
	comments repositories.CommentRepository
	txMgr    repositories.TransactionManager
	logger   *zap.Logger
}

// NewService creates a new project Service
func NewService(
	projects repositories.ProjectRepository,
	roles repositories.UserRoleRepository,
	comments repositories.CommentRepository,
	txMgr repositories.TransactionManager,
	logger *zap.Logger,
) *Service {
	return &Service{
		projects: projects,
		roles:    roles,
		comments: comments,
		txMgr:    txMgr,
		logger:   logger,
	}
}

// ListPublic returns public projects
func (s *Service) ListPublic(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	limit, offset = Page(limit, offset)
	projects, err := s.projects.ListPublic(ctx, limit, offset)
	if err != nil {
		return nil, services.FromRepository(err, nil)
	}
	return projects, nil
}

// Get returns a project the caller may see: public ones, ones the caller holds any
// role on, and any project for system admins. Hidden projects are reported as missing.
func (s *Service) Get(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID) (*models.Project, error) {
	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrProjectNotFound)
	}
	if !CanView(ac, project) {
		return nil, services.NewDomainError(services.ErrorTypeNotFound, services.ErrProjectNotFound.Message, nil)
	}
	return project, nil
}

// Create creates a project owned by the caller. The project row, the caller's
// membership and owner role are written in one transaction.
func (s *Service) Create(ctx context.Context, ac *auth.AuthorizationContext, req CreateProjectRequest) (*models.Project, error) {
	userID, err := callerID(ac)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate(&req); err != nil {
		return nil, err
	}

	project := models.NewProject(req.Name, req.Info, req.Public)
	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context, _ repositories.Transaction) error {
		if err := s.projects.Create(ctx, project); err != nil {
			return err
		}
		if err := s.projects.AddMember(ctx, models.NewProjectMember(project.ID, userID)); err != nil {
			return err
		}
		return s.roles.Create(ctx, models.NewUserRole(userID, models.RoleOwner, models.RoleTypeProject, project.ID.String()))
	})
	if err != nil {
		return nil, services.FromRepository(err, nil)
	}

	s.logger.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("owner_id", userID.String()))
	return project, nil
}

// Update changes a project; owners, admins and editors may update
func (s *Service) Update(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID, req UpdateProjectRequest) (*models.Project, error) {
	if err := authorize(ac, id, models.RoleOwner, models.RoleAdmin, models.RoleEditor); err != nil {
		return nil, err
	}
	if err := validate(&req); err != nil {
		return nil, err
	}

	project, err := s.projects.GetByID(ctx, id)
	if err != nil {
		return nil, services.FromRepository(err, services.ErrProjectNotFound)
	}
	if req.Name != nil {
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Info != nil {
		project.Info = req.Info
	}
	if req.Public != nil {
		project.Public = *req.Public
	}
	project.LastUpdated = time.Now()

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, services.FromRepository(err, services.ErrProjectNotFound)
	}
	return project, nil
}

// Delete removes a project; only owners may delete
func (s *Service) Delete(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID) error {
	if err := authorize(ac, id, models.RoleOwner); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return services.FromRepository(err, services.ErrProjectNotFound)
	}

	s.logger.Info("project deleted",
		zap.String("project_id", id.String()),
		zap.String("user_id", ac.UserID()))
	return nil
}

// Members lists a project's memberships for callers holding any role on it
func (s *Service) Members(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID) ([]*models.ProjectMember, error) {
	if err := authorize(ac, id); err != nil {
		return nil, err
	}
	members, err := s.projects.ListMembers(ctx, id)
	if err != nil {
		return nil, services.FromRepository(err, nil)
	}
	return members, nil
}

// RemoveMember removes a user and their project roles; owners and admins may remove
func (s *Service) RemoveMember(ctx context.Context, ac *auth.AuthorizationContext, projectID, userID uuid.UUID) error {
	if err := authorize(ac, projectID, models.RoleOwner, models.RoleAdmin); err != nil {
		return err
	}
	if err := s.projects.RemoveMember(ctx, projectID, userID); err != nil {
		return services.FromRepository(err, nil)
	}

	s.logger.Info("project member removed",
		zap.String("project_id", projectID.String()),
		zap.String("member_id", userID.String()),
		zap.String("removed_by", ac.UserID()))
	return nil
}

// ListComments returns the comments of a project visible to the signed-in caller
func (s *Service) ListComments(ctx context.Context, ac *auth.AuthorizationContext, projectID uuid.UUID, limit, offset int) ([]*models.Comment, error) {
	if _, err := callerID(ac); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, ac, projectID); err != nil {
		return nil, err
	}
	limit, offset = Page(limit, offset)
	comments, err := s.comments.ListByProject(ctx, projectID, limit, offset)
	if err != nil {
		return nil, services.FromRepository(err, nil)
	}
	return comments, nil
}

// CreateComment adds the caller's comment to a project visible to them
func (s *Service) CreateComment(ctx context.Context, ac *auth.AuthorizationContext, projectID uuid.UUID, req CreateCommentRequest) (*models.Comment, error) {
	userID, err := callerID(ac)
	if err != nil {
		return nil, err
	}
	req.Body = strings.TrimSpace(req.Body)
	if err := validate(&req); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, ac, projectID); err != nil {
		return nil, err
	}

	now := time.Now()
	comment := &models.Comment{
		ProjectID:   projectID,
		UserID:      userID,
		Body:        req.Body,
		CreatedAt:   now,
		LastUpdated: now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, services.FromRepository(err, nil)
	}
	return comment, nil
}

// DeleteComment removes a comment; its author and project owners or admins may delete
func (s *Service) DeleteComment(ctx context.Context, ac *auth.AuthorizationContext, projectID uuid.UUID, commentID int64) error {
	userID, err := callerID(ac)
	if err != nil {
		return err
	}
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return services.FromRepository(err, services.ErrCommentNotFound)
	}
	if comment.ProjectID != projectID {
		return services.NewDomainError(services.ErrorTypeNotFound, services.ErrCommentNotFound.Message, nil)
	}
	if comment.UserID != userID {
		if err := authorize(ac, projectID, models.RoleOwner, models.RoleAdmin); err != nil {
			return err
		}
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return services.FromRepository(err, services.ErrCommentNotFound)
	}
	return nil
}

// CanView reports whether the caller may see the project
func CanView(ac *auth.AuthorizationContext, project *models.Project) bool {
	if project.Public {
		return true
	}
	return ac.IsSystemAdmin() || ac.HasRole(models.RoleTypeProject, project.ID.String())
}

// Page clamps pagination parameters
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// authorize checks the caller holds one of names on the project (any role when names is
// empty). System admins always pass.
func authorize(ac *auth.AuthorizationContext, projectID uuid.UUID, names ...models.RoleName) error {
	if !ac.IsAuthenticated() {
		return services.ErrUnauthorized
	}
	if ac.IsSystemAdmin() || ac.HasRole(models.RoleTypeProject, projectID.String(), names...) {
		return nil
	}
	return services.ErrInsufficientPermissions
}

func callerID(ac *auth.AuthorizationContext) (uuid.UUID, error) {
	if !ac.IsAuthenticated() {
		return uuid.Nil, services.ErrUnauthorized
	}
	id, err := uuid.Parse(ac.UserID())
	if err != nil {
		return uuid.Nil, services.NewDomainError(services.ErrorTypeUnauthorized, "invalid user id", err)
	}
	return id, nil
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
