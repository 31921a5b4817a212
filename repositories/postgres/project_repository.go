package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"go.uber.org/zap"
)

const projectColumns = `id, projectname, projectinfo, public, created_at, last_updated`

// ProjectRepository implements the repositories.ProjectRepository interface
type ProjectRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *DB, logger *zap.Logger) repositories.ProjectRepository {
	return &ProjectRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new project
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, projectname, projectinfo, public, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		project.ID,
		project.Name,
		nullJSON(project.Info),
		project.Public,
		project.CreatedAt,
		project.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	r.logger.Debug("project created", zap.String("id", project.ID.String()))
	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	executor := GetExecutor(ctx, r.db)
	project, err := scanProject(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// ListPublic retrieves public projects with pagination
func (r *ProjectRepository) ListPublic(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	query := `
		SELECT ` + projectColumns + `
		FROM projects
		WHERE public = true
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	return r.list(ctx, query, limit, offset)
}

// ListByMember retrieves the projects a user belongs to
func (r *ProjectRepository) ListByMember(ctx context.Context, userID uuid.UUID) ([]*models.Project, error) {
	query := `
		SELECT p.id, p.projectname, p.projectinfo, p.public, p.created_at, p.last_updated
		FROM projects p
		JOIN projects_users pu ON pu.project_id = p.id
		WHERE pu.user_id = $1
		ORDER BY p.created_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *ProjectRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.Project, error) {
	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
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

// Update updates a project's name, info and visibility
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET projectname = $2,
		    projectinfo = $3,
		    public = $4,
		    last_updated = $5
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query,
		project.ID,
		project.Name,
		nullJSON(project.Info),
		project.Public,
		project.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if err := expectAffected(result, "project", project.ID); err != nil {
		return err
	}

	r.logger.Debug("project updated", zap.String("id", project.ID.String()))
	return nil
}

// Delete deletes a project; memberships, comments and tables cascade
func (r *ProjectRepository) Delete(ctx context.Context, id uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if err := expectAffected(result, "project", id); err != nil {
		return err
	}

	r.logger.Debug("project deleted", zap.String("id", id.String()))
	return nil
}

// AddMember inserts a projects_users row
func (r *ProjectRepository) AddMember(ctx context.Context, member *models.ProjectMember) error {
	query := `
		INSERT INTO projects_users (id, project_id, user_id, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		member.ID,
		member.ProjectID,
		member.UserID,
		member.CreatedAt,
		member.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to add project member: %w", err)
	}
	return nil
}

// RemoveMember calls remove_user_from_project, which also drops the user's project roles
func (r *ProjectRepository) RemoveMember(ctx context.Context, projectID, userID uuid.UUID) error {
	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, `SELECT remove_user_from_project($1, $2)`, userID, projectID); err != nil {
		return fmt.Errorf("failed to remove project member: %w", err)
	}

	r.logger.Debug("project member removed",
		zap.String("project_id", projectID.String()),
		zap.String("user_id", userID.String()))
	return nil
}

// ListMembers retrieves a project's memberships
func (r *ProjectRepository) ListMembers(ctx context.Context, projectID uuid.UUID) ([]*models.ProjectMember, error) {
	query := `
		SELECT id, project_id, user_id, created_at, last_updated
		FROM projects_users
		WHERE project_id = $1
		ORDER BY created_at
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	defer rows.Close()

	members := []*models.ProjectMember{}
	for rows.Next() {
		m := &models.ProjectMember{}
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.UserID, &m.CreatedAt, &m.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan project member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project member rows: %w", err)
	}
	return members, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	project := &models.Project{}
	var info []byte
	if err := row.Scan(
		&project.ID,
		&project.Name,
		&info,
		&project.Public,
		&project.CreatedAt,
		&project.LastUpdated,
	); err != nil {
		return nil, err
	}
	if len(info) > 0 {
		project.Info = json.RawMessage(info)
	}
	return project, nil
}

// nullJSON maps an empty document to SQL NULL
func nullJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

// expectAffected returns ErrNotFound when the statement touched no rows
func expectAffected(result sql.Result, entity string, id interface{}) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, repositories.ErrNotFound)
	}
	return nil
}
