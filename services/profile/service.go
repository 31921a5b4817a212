package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/repositories"
	"github.com/upb/commons-portal/services"
	"github.com/upb/commons-portal/supabase"
	"github.com/upb/commons-portal/utils"
	"go.uber.org/zap"
)

// MaxAvatarSize bounds uploaded avatar files
const MaxAvatarSize = 5 << 20

// AccountUpdater updates the signed-in user at the auth provider
type AccountUpdater interface {
	UpdateUser(ctx context.Context, attrs supabase.UserAttributes) (*supabase.User, error)
}

// ObjectStore stores avatar files
type ObjectStore interface {
	Upload(ctx context.Context, bucket, objectPath string, body io.Reader, contentType string, upsert bool) (string, error)
	PublicURL(bucket, objectPath string) string
}

// SetProfileRequest is the profile form. Password is only required when WithPassword
// is set, for accounts created by invitation that still need one.
type SetProfileRequest struct {
	FirstName    string `form:"firstName" validate:"required"`
	LastName     string `form:"lastName" validate:"required"`
	Password     string `form:"password" validate:"required_if=WithPassword true"`
	WithPassword bool   `form:"-"`

	// Avatar is the uploaded file, empty to generate one from the initials
	Avatar []byte `form:"-"`
}

// Service manages user profiles and avatars
type Service struct {
	profiles repositories.UserProfileRepository
	bucket   string
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new profile Service storing avatars in bucket
func NewService(profiles repositories.UserProfileRepository, bucket string, logger *zap.Logger) *Service {
	return &Service{
		profiles: profiles,
		bucket:   bucket,
		logger:   logger,
		now:      time.Now,
	}
}

// SetProfile validates the form, uploads the avatar, stores the names and picture in
// the user's metadata and upserts the userprofile row. Nothing is uploaded when the
// form is invalid.
func (s *Service) SetProfile(ctx context.Context, account AccountUpdater, store ObjectStore, userID string, req SetProfileRequest) (*models.UserProfile, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return nil, services.ErrUnauthorized
	}

	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := utils.ValidateStruct(&req); err != nil {
		if fields := utils.GetValidationFields(err); fields != nil {
			return nil, services.ValidationFailed(fields)
		}
		return nil, services.WrapInternal("failed to validate profile", err)
	}

	data, contentType, ext, err := s.avatar(req)
	if err != nil {
		return nil, err
	}

	objectPath := avatarObjectPath(s.now(), req.FirstName, req.LastName, ext)
	storedPath, err := store.Upload(ctx, s.bucket, objectPath, bytes.NewReader(data), contentType, false)
	if err != nil {
		s.logger.Error("avatar upload failed", zap.String("user_id", userID), zap.Error(err))
		return nil, services.NewDomainError(services.ErrorTypeExternal, "avatar upload failed", err)
	}
	picture := store.PublicURL(s.bucket, storedPath)

	attrs := supabase.UserAttributes{
		Data: map[string]interface{}{
			"firstName": req.FirstName,
			"lastName":  req.LastName,
			"picture":   picture,
		},
	}
	if req.WithPassword {
		attrs.Password = req.Password
	}
	if _, err := account.UpdateUser(ctx, attrs); err != nil {
		return nil, services.NewDomainError(services.ErrorTypeValidation, "failed to update user", err).
			WithDetail("update", authMessage(err))
	}

	now := s.now()
	profile := &models.UserProfile{
		ID:             id,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		AvatarPath:     &storedPath,
		ProfilePicture: &picture,
		CreatedAt:      now,
		LastUpdated:    now,
	}
	if err := s.profiles.Upsert(ctx, profile); err != nil {
		return nil, services.WrapInternal("failed to save profile", err)
	}

	s.logger.Info("profile updated", zap.String("user_id", userID), zap.String("avatar", storedPath))
	return profile, nil
}

// avatar returns the uploaded avatar after sniffing its type, or a generated one
func (s *Service) avatar(req SetProfileRequest) (data []byte, contentType, ext string, err error) {
	if len(req.Avatar) == 0 {
		initials := Initials(req.FirstName, req.LastName)
		return GenerateAvatar(initials, AvatarColor(initials)), AvatarContentType, ".svg", nil
	}
	if len(req.Avatar) > MaxAvatarSize {
		return nil, "", "", services.NewDomainError(services.ErrorTypeValidation, "avatar is too large", nil).
			WithDetail("avatar", "Avatar must be at most 5 MB")
	}
	mt := mimetype.Detect(req.Avatar)
	if !strings.HasPrefix(mt.String(), "image/") {
		return nil, "", "", services.NewDomainError(services.ErrorTypeValidation, services.ErrUnsupportedAvatar.Message, nil).
			WithDetail("avatar", "Avatar must be an image").
			WithDetail("content_type", mt.String())
	}
	return req.Avatar, mt.String(), mt.Extension(), nil
}

// avatarObjectPath names avatars <unix-millis>_<first>_<last><ext>; path separators in
// names are replaced so every avatar stays at the bucket root
func avatarObjectPath(now time.Time, firstName, lastName, ext string) string {
	clean := strings.NewReplacer("/", "-", `\`, "-")
	return fmt.Sprintf("%d_%s_%s%s", now.UnixMilli(), clean.Replace(firstName), clean.Replace(lastName), ext)
}

func authMessage(err error) string {
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
