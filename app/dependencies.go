package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/config"
	"github.com/upb/commons-portal/handlers"
	"github.com/upb/commons-portal/middleware"
	"github.com/upb/commons-portal/repositories"
	"github.com/upb/commons-portal/repositories/postgres"
	"github.com/upb/commons-portal/services/community"
	"github.com/upb/commons-portal/services/profile"
	"github.com/upb/commons-portal/services/project"
	"github.com/upb/commons-portal/services/user"
	"github.com/upb/commons-portal/supabase"
	"go.uber.org/zap"
)

// Auth modes reported by AuthMode
const (
	AuthModeDisabled = "disabled"
	AuthModeSecret   = "secret"
	AuthModeJWKS     = "jwks"
	AuthModeSession  = "session"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory
	RepoFactory  *postgres.RepositoryFactory
	Repositories *repositories.Repositories
	TxManager    repositories.TransactionManager

	// Identity provider. Supabase is nil when no project is configured.
	Supabase       *supabase.Client
	TokenValidator *supabase.TokenValidator
	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *auth.Handler

	// Services
	Projects    *project.Service
	Communities *community.Service
	Users       *user.Service
	Profiles    *profile.Service

	authMode string
}

// NewDependencies opens the database and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps, err := NewDependenciesFromFactory(ctx, cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesFromFactory wires dependencies over an already opened repository factory
func NewDependenciesFromFactory(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:      cfg,
		Logger:      logger,
		RepoFactory: factory,
		DB:          factory.GetDB(),
	}

	deps.initRepositories()

	if err := deps.initSupabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize supabase: %w", err)
	}

	deps.initServices(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("auth_mode", deps.authMode))
	return deps, nil
}

// initRepositories initializes all repository instances
func (d *Dependencies) initRepositories() {
	d.Repositories = d.RepoFactory.NewRepositories()
	d.TxManager = d.RepoFactory.GetTransactionManager()
	d.Logger.Info("repositories initialized")
}

// initSupabase creates the auth client and the bearer token validator. The JWT secret
// is preferred; otherwise the project's published signing keys are used.
func (d *Dependencies) initSupabase(ctx context.Context, cfg *config.Config) error {
	if cfg.Supabase.URL == "" || cfg.Supabase.AnonKey == "" {
		d.Logger.Warn("supabase not configured, auth endpoints disabled")
		d.authMode = AuthModeDisabled
		return nil
	}

	client, err := supabase.NewClient(supabase.Config{
		URL:          cfg.Supabase.URL,
		AnonKey:      cfg.Supabase.AnonKey,
		HTTPTimeout:  cfg.Supabase.HTTPTimeout,
		CookieSecure: cfg.Supabase.CookieSecure,
	}, d.Logger)
	if err != nil {
		return err
	}
	d.Supabase = client

	if cfg.Supabase.JWTSecret != "" {
		d.TokenValidator = supabase.NewSecretValidator(client.Issuer(), cfg.Supabase.JWTSecret)
		d.authMode = AuthModeSecret
		return nil
	}

	validator, err := supabase.NewJWKSValidator(client.Issuer(), client.JWKSURL(), d.Logger)
	if err != nil {
		// Bearer callers stay anonymous; cookie sessions are still validated remotely
		d.Logger.Warn("bearer token validation disabled", zap.Error(err))
		d.authMode = AuthModeSession
		return nil
	}
	d.TokenValidator = validator
	d.authMode = AuthModeJWKS
	return nil
}

// initServices creates the domain services over the repositories
func (d *Dependencies) initServices(cfg *config.Config) {
	repos := d.Repositories
	d.Projects = project.NewService(repos.Projects, repos.UserRoles, repos.Comments, d.TxManager, d.Logger)
	d.Communities = community.NewService(repos.Communities, repos.UserRoles, d.TxManager, d.Logger)
	d.Users = user.NewService(repos, d.Logger)
	d.Profiles = profile.NewService(repos.UserProfiles, cfg.Supabase.AvatarBucket, d.Logger)
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	var validator middleware.TokenValidator
	if d.TokenValidator != nil {
		validator = d.TokenValidator
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Supabase, validator, d.Logger)

	if d.Supabase == nil {
		return
	}
	d.AuthHandler = auth.NewHandler(
		handlers.NewSessionClients(d.Supabase),
		d.Profiles,
		middleware.GetAuthContext,
		cfg.Server.PublicURL,
		d.Logger,
	)
	d.Logger.Info("auth handler initialized")
}

// AuthMode names how callers are authenticated
func (d *Dependencies) AuthMode() string {
	return d.authMode
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.TokenValidator != nil {
		d.TokenValidator.Close()
	}

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	// Sync logger
	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
