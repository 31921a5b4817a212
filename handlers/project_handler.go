package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/middleware"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/services/project"
	"github.com/upb/commons-portal/utils"
	"go.uber.org/zap"
)

// ProjectService defines the project operations the handler serves
type ProjectService interface {
	ListPublic(ctx context.Context, limit, offset int) ([]*models.Project, error)
	Get(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID) (*models.Project, error)
	Create(ctx context.Context, ac *auth.AuthorizationContext, req project.CreateProjectRequest) (*models.Project, error)
	Update(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID, req project.UpdateProjectRequest) (*models.Project, error)
	Delete(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID) error
	Members(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID) ([]*models.ProjectMember, error)
	RemoveMember(ctx context.Context, ac *auth.AuthorizationContext, projectID, userID uuid.UUID) error
	ListComments(ctx context.Context, ac *auth.AuthorizationContext, projectID uuid.UUID, limit, offset int) ([]*models.Comment, error)
	CreateComment(ctx context.Context, ac *auth.AuthorizationContext, projectID uuid.UUID, req project.CreateCommentRequest) (*models.Comment, error)
	DeleteComment(ctx context.Context, ac *auth.AuthorizationContext, projectID uuid.UUID, commentID int64) error
}

// ProjectHandler handles project HTTP requests
type ProjectHandler struct {
	projects ProjectService
	logger   *zap.Logger
}

// NewProjectHandler creates a new ProjectHandler
func NewProjectHandler(projects ProjectService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		projects: projects,
		logger:   logger,
	}
}

// HandleListProjects handles GET /api/v1/projects
func (h *ProjectHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	projects, err := h.projects.ListPublic(r.Context(), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, projects)
}

// HandleCreateProject handles POST /api/v1/projects
func (h *ProjectHandler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req project.CreateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	created, err := h.projects.Create(ctx, middleware.GetAuthContext(ctx), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("project created",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("project_id", created.ID.String()))
	_ = utils.WriteCreated(w, created)
}

// HandleGetProject handles GET /api/v1/projects/{projectID}
func (h *ProjectHandler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	p, err := h.projects.Get(ctx, middleware.GetAuthContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleUpdateProject handles PATCH /api/v1/projects/{projectID}
func (h *ProjectHandler) HandleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var req project.UpdateProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	p, err := h.projects.Update(ctx, middleware.GetAuthContext(ctx), id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, p)
}

// HandleDeleteProject handles DELETE /api/v1/projects/{projectID}
func (h *ProjectHandler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := h.projects.Delete(ctx, middleware.GetAuthContext(ctx), id); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleListMembers handles GET /api/v1/projects/{projectID}/members
func (h *ProjectHandler) HandleListMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	members, err := h.projects.Members(ctx, middleware.GetAuthContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, members)
}

// HandleRemoveMember handles DELETE /api/v1/projects/{projectID}/members/{userID}
func (h *ProjectHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	ctx := r.Context()
	if err := h.projects.RemoveMember(ctx, middleware.GetAuthContext(ctx), projectID, userID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

// HandleListComments handles GET /api/v1/projects/{projectID}/comments
func (h *ProjectHandler) HandleListComments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)
	ctx := r.Context()
	comments, err := h.projects.ListComments(ctx, middleware.GetAuthContext(ctx), id, limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, comments)
}

// HandleCreateComment handles POST /api/v1/projects/{projectID}/comments
func (h *ProjectHandler) HandleCreateComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.projectID(w, r)
	if !ok {
		return
	}
	var req project.CreateCommentRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	comment, err := h.projects.CreateComment(ctx, middleware.GetAuthContext(ctx), id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, comment)
}

// HandleDeleteComment handles DELETE /api/v1/projects/{projectID}/comments/{commentID}
func (h *ProjectHandler) HandleDeleteComment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.projectID(w, r)
	if !ok {
		return
	}
	commentID, err := strconv.ParseInt(chi.URLParam(r, "commentID"), 10, 64)
	if err != nil || commentID <= 0 {
		_ = utils.WriteBadRequest(w, "Invalid comment id", nil)
		return
	}

	ctx := r.Context()
	if err := h.projects.DeleteComment(ctx, middleware.GetAuthContext(ctx), projectID, commentID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

func (h *ProjectHandler) projectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuidParam(r, "projectID")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}
