package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/commons-portal/models"
	"go.uber.org/zap"
)

var (
	// ErrEmptyToken is returned for an empty token string
	ErrEmptyToken = errors.New("empty token")

	// ErrMalformedToken is returned when the token does not have three dot separated segments
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidPayload is returned when the payload segment is not base64url encoded UTF-8 JSON
	ErrInvalidPayload = errors.New("invalid token payload")

	// ErrMissingRoles is returned when the payload has no user_roles claim
	ErrMissingRoles = errors.New("user_roles claim missing")

	// ErrInvalidRoles is returned when user_roles is not an array of role objects
	ErrInvalidRoles = errors.New("user_roles claim invalid")
)

var segmentParser = jwt.NewParser(jwt.WithPaddingAllowed())

var jsonNull = []byte("null")

// roleClaimJSON picks the three role fields out of a user_roles element; anything else
// the token carries is dropped
type roleClaimJSON struct {
	EntityID *string `json:"entity_id"`
	RoleName string  `json:"role_name"`
	RoleType string  `json:"role_type"`
}

// DecodeRoleClaims reads the user_roles claim from a JWT's payload. The signature is not
// checked: callers only trust the result for a token the auth server has just accepted.
// Elements keep their order.
func DecodeRoleClaims(token string) ([]models.RoleClaim, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: %d segments", ErrMalformedToken, len(parts))
	}

	// Standard alphabet characters are accepted as their url-safe equivalents
	segment := strings.NewReplacer("+", "-", "/", "_").Replace(parts[1])
	payload, err := segmentParser.DecodeSegment(segment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if !utf8.Valid(payload) {
		return nil, fmt.Errorf("%w: not valid utf-8", ErrInvalidPayload)
	}

	var body struct {
		UserRoles json.RawMessage `json:"user_roles"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if len(body.UserRoles) == 0 || bytes.Equal(body.UserRoles, jsonNull) {
		return nil, ErrMissingRoles
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(body.UserRoles, &elements); err != nil {
		return nil, fmt.Errorf("%w: not an array", ErrInvalidRoles)
	}

	claims := make([]models.RoleClaim, 0, len(elements))
	for i, raw := range elements {
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '{' {
			return nil, fmt.Errorf("%w: element %d is not an object", ErrInvalidRoles, i)
		}
		var c roleClaimJSON
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: element %d: %v", ErrInvalidRoles, i, err)
		}
		claims = append(claims, models.RoleClaim{
			EntityID: c.EntityID,
			RoleName: models.RoleName(c.RoleName),
			RoleType: models.RoleType(c.RoleType),
		})
	}
	return claims, nil
}

// ExtractRoles returns the role claims carried by token. It never fails: a token that
// cannot be decoded yields an empty list, and claims with an unknown name or type, or a
// scoped role without an entity id, are dropped. Every such case is logged.
func ExtractRoles(token string, logger *zap.Logger) []models.RoleClaim {
	claims, err := DecodeRoleClaims(token)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingRoles), errors.Is(err, ErrInvalidRoles):
			logger.Warn("no usable user_roles in token", zap.Error(err))
		default:
			logger.Error("failed to decode token payload", zap.Error(err))
		}
		return []models.RoleClaim{}
	}

	valid := claims[:0]
	for _, c := range claims {
		if !c.Valid() {
			logger.Warn("dropping invalid role claim",
				zap.String("role_name", string(c.RoleName)),
				zap.String("role_type", string(c.RoleType)),
				zap.Bool("has_entity_id", c.EntityID != nil))
			continue
		}
		valid = append(valid, c)
	}
	return valid
}
