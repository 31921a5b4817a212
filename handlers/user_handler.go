package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/middleware"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/services/user"
	"github.com/upb/commons-portal/utils"
	"go.uber.org/zap"
)

// UserService defines the per-user views the handler serves
type UserService interface {
	Me(ac *auth.AuthorizationContext) (*user.Me, error)
	Profile(ctx context.Context, ac *auth.AuthorizationContext, userID uuid.UUID) (*models.UserProfile, error)
	Dashboard(ctx context.Context, ac *auth.AuthorizationContext, userID uuid.UUID) (*user.Dashboard, error)
}

// UserHandler handles user HTTP requests
type UserHandler struct {
	users  UserService
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

// HandleMe handles GET /api/v1/me
func (h *UserHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	me, err := h.users.Me(middleware.GetAuthContext(r.Context()))
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, me)
}

// HandleGetProfile handles GET /api/v1/users/{userID}/profile
func (h *UserHandler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "userID")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	ctx := r.Context()
	profile, err := h.users.Profile(ctx, middleware.GetAuthContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, profile)
}

// HandleDashboard handles GET /api/v1/users/{userID}/dashboard
func (h *UserHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "userID")
	if err != nil {
		_ = utils.WriteBadRequest(w, err.Error(), nil)
		return
	}
	ctx := r.Context()
	dashboard, err := h.users.Dashboard(ctx, middleware.GetAuthContext(ctx), id)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, dashboard)
}
