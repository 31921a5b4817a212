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

// UserProfileRepository implements the repositories.UserProfileRepository interface
type UserProfileRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewUserProfileRepository creates a new user profile repository
func NewUserProfileRepository(db *DB, logger *zap.Logger) repositories.UserProfileRepository {
	return &UserProfileRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves the profile of an auth user
func (r *UserProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	query := `
		SELECT id, firstname, lastname, bio, avatar_path, profile_picture, created_at, last_updated
		FROM userprofile
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	profile := &models.UserProfile{}
	var bio, avatarPath, picture sql.NullString

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&profile.ID,
		&profile.FirstName,
		&profile.LastName,
		&bio,
		&avatarPath,
		&picture,
		&profile.CreatedAt,
		&profile.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user profile %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}

	profile.Bio = nullableString(bio)
	profile.AvatarPath = nullableString(avatarPath)
	profile.ProfilePicture = nullableString(picture)
	return profile, nil
}

// Upsert inserts the profile or replaces its names and pictures. Bio and the
// creation time of an existing row are kept.
func (r *UserProfileRepository) Upsert(ctx context.Context, profile *models.UserProfile) error {
	query := `
		INSERT INTO userprofile (id, firstname, lastname, avatar_path, profile_picture, created_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET firstname = EXCLUDED.firstname,
		    lastname = EXCLUDED.lastname,
		    avatar_path = EXCLUDED.avatar_path,
		    profile_picture = EXCLUDED.profile_picture,
		    last_updated = EXCLUDED.last_updated
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		profile.ID,
		profile.FirstName,
		profile.LastName,
		profile.AvatarPath,
		profile.ProfilePicture,
		profile.CreatedAt,
		profile.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user profile: %w", err)
	}

	r.logger.Debug("user profile upserted", zap.String("id", profile.ID.String()))
	return nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	return &s.String
}
