package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"go.uber.org/zap"
)

// CommentRepository implements the repositories.CommentRepository interface
type CommentRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *DB, logger *zap.Logger) repositories.CommentRepository {
	return &CommentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a comment and sets its generated ID
func (r *CommentRepository) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (project_id, user_id, comment, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	executor := GetExecutor(ctx, r.db)
	err := executor.QueryRowContext(ctx, query,
		comment.ProjectID,
		comment.UserID,
		comment.Body,
		comment.CreatedAt,
		comment.LastUpdated,
	).Scan(&comment.ID)
	if err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}

	r.logger.Debug("comment created",
		zap.Int64("id", comment.ID),
		zap.String("project_id", comment.ProjectID.String()))
	return nil
}

// GetByID retrieves a comment by ID
func (r *CommentRepository) GetByID(ctx context.Context, id int64) (*models.Comment, error) {
	query := `
		SELECT id, project_id, user_id, comment, created_at, last_updated
		FROM comments
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	c := &models.Comment{}
	err := executor.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.ProjectID, &c.UserID, &c.Body, &c.CreatedAt, &c.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("comment %d: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return c, nil
}

// ListByProject retrieves a project's comments, oldest first
func (r *CommentRepository) ListByProject(ctx context.Context, projectID uuid.UUID, limit, offset int) ([]*models.Comment, error) {
	query := `
		SELECT id, project_id, user_id, comment, created_at, last_updated
		FROM comments
		WHERE project_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		c := &models.Comment{}
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.Body, &c.CreatedAt, &c.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating comment rows: %w", err)
	}
	return comments, nil
}

// Delete deletes a comment
func (r *CommentRepository) Delete(ctx context.Context, id int64) error {
	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	return expectAffected(result, "comment", id)
}
