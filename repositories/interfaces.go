package repositories

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/models"
)

// ErrNotFound is returned when a row does not exist
var ErrNotFound = errors.New("not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes fn within a transaction carried by the context passed to fn.
	// Commits if fn succeeds, rolls back on error.
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	Commit() error
	Rollback() error
	Context() context.Context
}

// ProjectRepository handles projects and their members
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)

	// ListPublic returns public projects, newest first
	ListPublic(ctx context.Context, limit, offset int) ([]*models.Project, error)

	// ListByMember returns the projects userID belongs to
	ListByMember(ctx context.Context, userID uuid.UUID) ([]*models.Project, error)

	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id uuid.UUID) error

	AddMember(ctx context.Context, member *models.ProjectMember) error

	// RemoveMember removes the membership and the user's project roles
	RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error

	ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectMember, error)
}

// CommunityRepository handles communities, their members and linked projects
type CommunityRepository interface {
	// Create inserts the community with its extent given as EPSG:4326 well-known text
	Create(ctx context.Context, community *models.Community, extentWKT string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error)

	// List returns communities with their extent transformed to center and bounds
	List(ctx context.Context, limit, offset int) ([]*models.Community, error)

	ListByMember(ctx context.Context, userID uuid.UUID) ([]*models.Community, error)

	AddMember(ctx context.Context, communityID, userID uuid.UUID) error

	// RemoveMember removes the membership and the user's community roles
	RemoveMember(ctx context.Context, communityID, userID uuid.UUID) error

	LinkProject(ctx context.Context, link *models.CommunityProject) error
	ListProjects(ctx context.Context, communityID uuid.UUID) ([]*models.Project, error)
}

// UserProfileRepository handles rows of userprofile
type UserProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)

	// Upsert inserts or replaces the profile's names and pictures
	Upsert(ctx context.Context, profile *models.UserProfile) error
}

// UserRoleRepository handles role assignments, the source of the user_roles token claim
type UserRoleRepository interface {
	Create(ctx context.Context, role *models.UserRole) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserRole, error)
	DeleteForEntity(ctx context.Context, userID uuid.UUID, roleType models.RoleType, entityID string) error
}

// CommentRepository handles project comments
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id int64) (*models.Comment, error)
	ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*models.Comment, error)
	Delete(ctx context.Context, id int64) error
}

// Repositories groups every repository
type Repositories struct {
	Projects     ProjectRepository
	Communities  CommunityRepository
	UserProfiles UserProfileRepository
	UserRoles    UserRoleRepository
	Comments     CommentRepository
}
