package supabase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

var (
	// ErrInvalidToken is returned when the token fails signature or claim validation
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned when the token has expired
	ErrTokenExpired = errors.New("token expired")
)

// authenticatedAudience is the aud claim of tokens issued to signed-in users
const authenticatedAudience = "authenticated"

// AccessTokenClaims are the claims of an access token issued by the auth server
type AccessTokenClaims struct {
	jwt.RegisteredClaims
	Email        string                 `json:"email"`
	Phone        string                 `json:"phone"`
	Role         string                 `json:"role"`
	SessionID    string                 `json:"session_id"`
	AAL          string                 `json:"aal"`
	IsAnonymous  bool                   `json:"is_anonymous"`
	AppMetadata  map[string]interface{} `json:"app_metadata"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
}

// User builds the user record the claims describe
func (c *AccessTokenClaims) User() *User {
	aud := authenticatedAudience
	if len(c.Audience) > 0 {
		aud = c.Audience[0]
	}
	return &User{
		ID:           c.Subject,
		Aud:          aud,
		Role:         c.Role,
		Email:        c.Email,
		Phone:        c.Phone,
		AppMetadata:  c.AppMetadata,
		UserMetadata: c.UserMetadata,
	}
}

// TokenValidator verifies access tokens locally, either with the project's JWT secret or
// with the signing keys the auth server publishes
type TokenValidator struct {
	keyFunc jwt.Keyfunc
	jwks    *keyfunc.JWKS
	parser  *jwt.Parser
}

// NewSecretValidator validates HS256 tokens signed with the project JWT secret
func NewSecretValidator(issuer, secret string) *TokenValidator {
	key := []byte(secret)
	return newTokenValidator(issuer, func(*jwt.Token) (interface{}, error) {
		return key, nil
	}, []string{jwt.SigningMethodHS256.Alg()})
}

// NewJWKSValidator validates asymmetric tokens against the JWKS at jwksURL, refreshing the
// key set in the background. Call Close to stop the refresh.
func NewJWKSValidator(issuer, jwksURL string, logger *zap.Logger) (*TokenValidator, error) {
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		RefreshErrorHandler: func(err error) {
			logger.Warn("failed to refresh JWKS", zap.String("url", jwksURL), zap.Error(err))
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", jwksURL, err)
	}
	v := NewKeySetValidator(issuer, jwks)
	return v, nil
}

// NewKeySetValidator validates tokens against an already loaded key set
func NewKeySetValidator(issuer string, jwks *keyfunc.JWKS) *TokenValidator {
	v := newTokenValidator(issuer, jwks.Keyfunc, []string{"RS256", "ES256"})
	v.jwks = jwks
	return v
}

func newTokenValidator(issuer string, keyFunc jwt.Keyfunc, methods []string) *TokenValidator {
	return &TokenValidator{
		keyFunc: keyFunc,
		parser: jwt.NewParser(
			jwt.WithValidMethods(methods),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(authenticatedAudience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(5*time.Second),
		),
	}
}

// ValidateToken verifies the token's signature, issuer, audience and expiry
func (v *TokenValidator) ValidateToken(_ context.Context, tokenString string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, v.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}
	return claims, nil
}

// Close stops the background JWKS refresh, if any
func (v *TokenValidator) Close() {
	if v.jwks != nil {
		v.jwks.EndBackground()
	}
}
