package supabase

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Session is an auth session as issued by the token endpoint and persisted in the
// session cookie
type Session struct {
	AccessToken          string `json:"access_token"`
	TokenType            string `json:"token_type"`
	ExpiresIn            int64  `json:"expires_in"`
	ExpiresAt            int64  `json:"expires_at,omitempty"`
	RefreshToken         string `json:"refresh_token"`
	ProviderToken        string `json:"provider_token,omitempty"`
	ProviderRefreshToken string `json:"provider_refresh_token,omitempty"`
	User                 *User  `json:"user,omitempty"`
}

// expiryMargin is how long before expires_at a session is treated as expired
const expiryMargin = 10 * time.Second

// Expired reports whether the access token is past (or within a few seconds of) its expiry.
// Sessions without an expiry are never considered expired.
func (s *Session) Expired(now time.Time) bool {
	if s.ExpiresAt == 0 {
		return false
	}
	return now.Add(expiryMargin).Unix() >= s.ExpiresAt
}

// stampExpiry fills ExpiresAt from ExpiresIn when the server did not send it
func (s *Session) stampExpiry(now time.Time) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = now.Unix() + s.ExpiresIn
	}
}

// User is the auth user record returned by the user endpoint
type User struct {
	ID               string                 `json:"id"`
	Aud              string                 `json:"aud"`
	Role             string                 `json:"role"`
	Email            string                 `json:"email"`
	Phone            string                 `json:"phone,omitempty"`
	EmailConfirmedAt *time.Time             `json:"email_confirmed_at,omitempty"`
	ConfirmedAt      *time.Time             `json:"confirmed_at,omitempty"`
	LastSignInAt     *time.Time             `json:"last_sign_in_at,omitempty"`
	AppMetadata      map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata     map[string]interface{} `json:"user_metadata,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// MetadataString returns a string value from user_metadata, or "" when absent
func (u *User) MetadataString(key string) string {
	if u == nil || u.UserMetadata == nil {
		return ""
	}
	if s, ok := u.UserMetadata[key].(string); ok {
		return s
	}
	return ""
}

// UserAttributes is the body of an update-user request
type UserAttributes struct {
	Email    string                 `json:"email,omitempty"`
	Password string                 `json:"password,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// Credentials for password sign-in and sign-up
type Credentials struct {
	Email    string                 `json:"email"`
	Password string                 `json:"password"`
	Data     map[string]interface{} `json:"data,omitempty"`
}

// OTPType is the kind of one-time token carried in an email link
type OTPType string

const (
	OTPSignup    OTPType = "signup"
	OTPInvite    OTPType = "invite"
	OTPMagicLink OTPType = "magiclink"
	OTPRecovery  OTPType = "recovery"
	OTPEmail     OTPType = "email"
)

// ParseEmailOTPType accepts the otp types an email confirmation link may carry
func ParseEmailOTPType(s string) (OTPType, bool) {
	switch t := OTPType(s); t {
	case OTPSignup, OTPInvite, OTPMagicLink, OTPRecovery, OTPEmail:
		return t, true
	}
	return "", false
}

// SignUpResult is returned by sign-up. Session is nil when email confirmation is required.
type SignUpResult struct {
	User    *User
	Session *Session
}

// ErrNoSession is returned when a request carries no usable session cookie
var ErrNoSession = errors.New("no session")

// APIError is a non-2xx response from the auth or storage API
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"error_code,omitempty"`
	Message string `json:"msg,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase: %d: %s", e.Status, e.Message)
}

// IsAPIError reports whether err is an APIError with the given status. A zero status matches any.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return status == 0 || apiErr.Status == status
}

// parseAPIError decodes the several error shapes the auth and storage servers emit
func parseAPIError(status int, body []byte) *APIError {
	var raw struct {
		Code             json.RawMessage `json:"code"`
		ErrorCode        string          `json:"error_code"`
		Msg              string          `json:"msg"`
		Message          string          `json:"message"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, &raw); err != nil {
		apiErr.Message = string(body)
		return apiErr
	}
	apiErr.Code = raw.ErrorCode
	if apiErr.Code == "" {
		apiErr.Code = raw.Error
	}
	for _, m := range []string{raw.Msg, raw.Message, raw.ErrorDescription, raw.Error} {
		if m != "" {
			apiErr.Message = m
			break
		}
	}
	return apiErr
}
