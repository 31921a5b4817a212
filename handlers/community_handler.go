package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/middleware"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/services/community"
	"github.com/upb/commons-portal/utils"
	"go.uber.org/zap"
)

// CommunityService defines the community operations the handler serves
type CommunityService interface {
	List(ctx context.Context, ac *auth.AuthorizationContext, limit, offset int) ([]*models.Community, error)
	Get(ctx context.Context, ac *auth.AuthorizationContext, id uuid.UUID) (*models.Community, error)
	Create(ctx context.Context, ac *auth.AuthorizationContext, req community.CreateCommunityRequest) (*models.Community, error)
	RemoveMember(ctx context.Context, ac *auth.AuthorizationContext, communityID, userID uuid.UUID) error
	LinkProject(ctx context.Context, ac *auth.AuthorizationContext, communityID uuid.UUID, req community.LinkProjectRequest) (*models.CommunityProject, error)
	Projects(ctx context.Context, ac *auth.AuthorizationContext, communityID uuid.UUID) ([]*models.Project, error)
}

// CommunityHandler handles community HTTP requests
type CommunityHandler struct {
	communities CommunityService
	logger      *zap.Logger
}

// NewCommunityHandler creates a new CommunityHandler
func NewCommunityHandler(communities CommunityService, logger *zap.Logger) *CommunityHandler {
	return &CommunityHandler{
		communities: communities,
		logger:      logger,
	}
}

// HandleListCommunities handles GET /api/v1/communities
func (h *CommunityHandler) HandleListCommunities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := pagination(r)
	communities, err := h.communities.List(ctx, middleware.GetAuthContext(ctx), limit, offset)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, communities)
}

// HandleCreateCommunity handles POST /api/v1/communities
func (h *CommunityHandler) HandleCreateCommunity(w http.ResponseWriter, r *http.Request) {
	var req community.CreateCommunityRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	created, err := h.communities.Create(ctx, middleware.GetAuthContext(ctx), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, created)
}

// HandleGetCommunity handles GET /api/v1/communities/{communityID}
func (h *CommunityHandler) HandleGetCommunity(w http.ResponseWriter, r *http.Request) {
	id, ok := h.communityID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	c, err := h.communities.Get(ctx, middleware.GetAuthContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, c)
}

// HandleListProjects handles GET /api/v1/communities/{communityID}/projects
func (h *CommunityHandler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	id, ok := h.communityID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	projects, err := h.communities.Projects(ctx, middleware.GetAuthContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, projects)
}

// HandleLinkProject handles POST /api/v1/communities/{communityID}/projects
func (h *CommunityHandler) HandleLinkProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.communityID(w, r)
	if !ok {
		return
	}
	var req community.LinkProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	link, err := h.communities.LinkProject(ctx, middleware.GetAuthContext(ctx), id, req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, link)
}

// HandleRemoveMember handles DELETE /api/v1/communities/{communityID}/members/{userID}
func (h *CommunityHandler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	communityID, ok := h.communityID(w, r)
	if !ok {
		return
	}
	userID, err := uuidParam(r, "userID")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}

	ctx := r.Context()
	if err := h.communities.RemoveMember(ctx, middleware.GetAuthContext(ctx), communityID, userID); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	utils.WriteNoContent(w)
}

func (h *CommunityHandler) communityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuidParam(r, "communityID")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return uuid.Nil, false
	}
	return id, true
}
