package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"go.uber.org/zap"
)

// Communities are always read through get_communities_with_transformed_extent so the
// PostGIS extent arrives as plain center and bounds arrays.
const communityColumns = `c.id, c.name, c.extent_center, c.extent_bounds, c.contactinfo, c.communityinfo, c.public, c.created_at, c.last_updated`

// CommunityRepository implements the repositories.CommunityRepository interface
type CommunityRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCommunityRepository creates a new community repository
func NewCommunityRepository(db *DB, logger *zap.Logger) repositories.CommunityRepository {
	return &CommunityRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new community. An empty extentWKT stores no extent.
func (r *CommunityRepository) Create(ctx context.Context, community *models.Community, extentWKT string) error {
	query := `
		INSERT INTO community (id, name, extent, contactinfo, communityinfo, public, created_at, last_updated)
		VALUES ($1, $2, ST_GeomFromText(NULLIF($3, ''), 4326), $4, $5, $6, $7, $8)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		community.ID,
		community.Name,
		extentWKT,
		nullJSON(community.ContactInfo),
		nullJSON(community.Info),
		community.Public,
		community.CreatedAt,
		community.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to create community: %w", err)
	}

	r.logger.Debug("community created", zap.String("id", community.ID.String()))
	return nil
}

// GetByID retrieves a community by ID
func (r *CommunityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Community, error) {
	query := `SELECT ` + communityColumns + ` FROM get_communities_with_transformed_extent() c WHERE c.id = $1`

	executor := GetExecutor(ctx, r.db)
	community, err := scanCommunity(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("community %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	return community, nil
}

// List retrieves communities with pagination
func (r *CommunityRepository) List(ctx context.Context, limit, offset int) ([]*models.Community, error) {
	query := `
		SELECT ` + communityColumns + `
		FROM get_communities_with_transformed_extent() c
		ORDER BY c.created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.list(ctx, query, limit, offset)
}

// ListByMember retrieves the communities a user belongs to
func (r *CommunityRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*models.Community, error) {
	query := `
		SELECT ` + communityColumns + `
		FROM get_communities_with_transformed_extent() c
		JOIN communities_users cu ON cu.community_id = c.id
		WHERE cu.user_id = $1
		ORDER BY c.created_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *CommunityRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Community, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list communities: %w", err)
	}
	defer rows.Close()

	communities := []*models.Community{}
	for rows.Next() {
		community, err := scanCommunity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan community: %w", err)
		}
		communities = append(communities, community)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating community rows: %w", err)
	}
	return communities, nil
}

// AddMember inserts a communities_users row
func (r *CommunityRepository) AddMember(ctx context.Context, communityID, userID uuid.UUID) error {
	query := `
		INSERT INTO communities_users (id, community_id, user_id, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $4)
	`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, uuid.New(), communityID, userID, time.Now()); err != nil {
		return fmt.Errorf("failed to add community member: %w", err)
	}
	return nil
}

// RemoveMember calls remove_user_from_community, which also drops the user's community roles
func (r *CommunityRepository) RemoveMember(ctx context.Context, communityID, userID uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, `SELECT remove_user_from_community($1, $2)`, userID, communityID); err != nil {
		return fmt.Errorf("failed to remove community member: %w", err)
	}

	r.logger.Debug("community member removed",
		zap.String("community_id", communityID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// LinkProject inserts a communities_projects row
func (r *CommunityRepository) LinkProject(ctx context.Context, link *models.CommunityProject) error {
	query := `
		INSERT INTO communities_projects (id, community_id, project_id, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		link.ID,
		link.CommunityID,
		link.ProjectID,
		link.CreatedAt,
		link.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to link project to community: %w", err)
	}
	return nil
}

// ListProjects retrieves the projects linked to a community
func (r *CommunityRepository) ListProjects(ctx context.Context, communityID uuid.UUID) ([]*models.Project, error) {
	query := `
		SELECT p.id, p.projectname, p.projectinfo, p.public, p.created_at, p.last_updated
		FROM projects p
		JOIN communities_projects cp ON cp.project_id = p.id
		WHERE cp.community_id = $1
		ORDER BY p.created_at DESC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, communityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list community projects: %w", err)
	}
	defer rows.Close()

	projects := []*models.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

func scanCommunity(row rowScanner) (*models.Community, error) {
	community := &models.Community{}
	var center, bounds pq.Float64Array
	var contact, info []byte
	if err := row.Scan(
		&community.ID,
		&community.Name,
		&center,
		&bounds,
		&contact,
		&info,
		&community.Public,
		&community.CreatedAt,
		&community.LastUpdated,
	); err != nil {
		return nil, err
	}
	community.ExtentCenter = []float64(center)
	community.ExtentBounds = []float64(bounds)
	if len(contact) > 0 {
		community.ContactInfo = json.RawMessage(contact)
	}
	if len(info) > 0 {
		community.Info = json.RawMessage(info)
	}
	return community, nil
}
