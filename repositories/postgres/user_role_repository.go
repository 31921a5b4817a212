package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"go.uber.org/zap"
)

// UserRoleRepository implements the repositories.UserRoleRepository interface
type UserRoleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserRoleRepository creates a new user role repository
func NewUserRoleRepository(db *DB, logger *zap.Logger) repositories.UserRoleRepository {
	return &UserRoleRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a role assignment. The change reaches access tokens on their next refresh.
func (r *UserRoleRepository) Create(ctx context.Context, role *models.UserRole) error {
	query := `
		INSERT INTO user_roles (id, user_id, entity_id, role_name, role_type, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		role.ID,
		role.UserID,
		role.EntityID,
		string(role.RoleName),
		string(role.RoleType),
		role.CreatedAt,
		role.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to create user role: %w", err)
	}

	r.logger.Debug("user role created",
		zap.String("user_id", role.UserID.String()),
		zap.String("role_name", string(role.RoleName)),
		zap.String("role_type", string(role.RoleType)))
	return nil
}

// ListByUser retrieves every role assignment of a user
func (r *UserRoleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.UserRole, error) {
	query := `
		SELECT id, user_id, entity_id, role_name, role_type, created_at, last_updated
		FROM user_roles
		WHERE user_id = $1
		ORDER BY created_at
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user roles: %w", err)
	}
	defer rows.Close()

	roles := []*models.UserRole{}
	for rows.Next() {
		role := &models.UserRole{}
		var entityID sql.NullString
		var name, roleType string
		if err := rows.Scan(
			&role.ID,
			&role.UserID,
			&entityID,
			&name,
			&roleType,
			&role.CreatedAt,
			&role.LastUpdated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user role: %w", err)
		}
		role.EntityID = nullableString(entityID)
		role.RoleName = models.RoleName(name)
		role.RoleType = models.RoleType(roleType)
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user role rows: %w", err)
	}
	return roles, nil
}

// DeleteForEntity removes every role the user holds on one entity
func (r *UserRoleRepository) DeleteForEntity(ctx context.Context, userID uuid.UUID, roleType models.RoleType, entityID string) error {
	query := `DELETE FROM user_roles WHERE user_id = $1 AND role_type = $2 AND entity_id = $3`

	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, query, userID, string(roleType), entityID); err != nil {
		return fmt.Errorf("failed to delete user roles: %w", err)
	}
	return nil
}
