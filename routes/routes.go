package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/upb/commons-portal/app"
	"github.com/upb/commons-portal/handlers"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	timeout := deps.Config.Server.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := handlers.NewHealthHandler(deps.DB, deps.Config.Environment, deps.AuthMode(), deps.Logger)
	projects := handlers.NewProjectHandler(deps.Projects, deps.Logger)
	communities := handlers.NewCommunityHandler(deps.Communities, deps.Logger)
	users := handlers.NewUserHandler(deps.Users, deps.Logger)
	authz := deps.AuthMiddleware

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	// Every other route sees the caller's AuthorizationContext
	r.Group(func(r chi.Router) {
		r.Use(authz.LoadAuth)

		if deps.AuthHandler != nil {
			r.Route("/auth", deps.AuthHandler.Routes)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Public routes
			r.Get("/status", health.HandleStatus)
			r.Get("/projects", projects.HandleListProjects)
			r.Get("/projects/{projectID}", projects.HandleGetProject)
			r.Get("/communities", communities.HandleListCommunities)
			r.Get("/communities/{communityID}", communities.HandleGetCommunity)
			r.Get("/communities/{communityID}/projects", communities.HandleListProjects)

			// Signed-in routes; services enforce entity roles
			r.Group(func(r chi.Router) {
				r.Use(authz.RequireSession)

				r.Get("/me", users.HandleMe)
				r.Get("/users/{userID}/profile", users.HandleGetProfile)
				r.Get("/users/{userID}/dashboard", users.HandleDashboard)

				r.Post("/projects", projects.HandleCreateProject)
				r.Patch("/projects/{projectID}", projects.HandleUpdateProject)
				r.Get("/projects/{projectID}/comments", projects.HandleListComments)
				r.Post("/projects/{projectID}/comments", projects.HandleCreateComment)
				r.Delete("/projects/{projectID}/comments/{commentID}", projects.HandleDeleteComment)

				r.With(authz.RequireRole(models.RoleTypeProject, "projectID")).
					Get("/projects/{projectID}/members", projects.HandleListMembers)
				r.With(authz.RequireRole(models.RoleTypeProject, "projectID", models.RoleOwner)).
					Delete("/projects/{projectID}", projects.HandleDeleteProject)
				r.With(authz.RequireRole(models.RoleTypeProject, "projectID", models.RoleOwner, models.RoleAdmin)).
					Delete("/projects/{projectID}/members/{userID}", projects.HandleRemoveMember)

				r.With(authz.RequireRole(models.RoleTypeGlobal, "", models.RoleSystemAdmin)).
					Post("/communities", communities.HandleCreateCommunity)
				r.With(authz.RequireRole(models.RoleTypeCommunity, "communityID", models.RoleOwner, models.RoleAdmin)).
					Post("/communities/{communityID}/projects", communities.HandleLinkProject)
				r.With(authz.RequireRole(models.RoleTypeCommunity, "communityID", models.RoleOwner, models.RoleAdmin, models.RoleModerator)).
					Delete("/communities/{communityID}/members/{userID}", communities.HandleRemoveMember)
			})
		})
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})

	return r
}
