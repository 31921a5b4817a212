package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// ErrMissingVerifier is returned when a code exchange arrives without the PKCE verifier cookie
var ErrMissingVerifier = errors.New("missing pkce code verifier")

// RequestClient is a Client bound to one HTTP exchange. It reads the session from the
// request cookies and writes session changes back to the response. Not safe for
// concurrent use; create one per request with Client.ForRequest.
type RequestClient struct {
	client  *Client
	w       http.ResponseWriter
	r       *http.Request
	session *Session
	loaded  bool
	bearer  bool
}

// ForRequest binds the client to a request and its response writer
func (c *Client) ForRequest(w http.ResponseWriter, r *http.Request) *RequestClient {
	return &RequestClient{client: c, w: w, r: r}
}

// ForAccessToken binds the client to a request authenticated by a bearer token that
// has already been validated. The session is never read from or written to cookies.
func (c *Client) ForAccessToken(w http.ResponseWriter, r *http.Request, session *Session) *RequestClient {
	return &RequestClient{client: c, w: w, r: r, session: session, loaded: true, bearer: true}
}

// GetSession returns the session stored in the request cookies without validating the
// access token with the auth server. An expired session is refreshed with its refresh
// token and the new session is written back; a failed refresh clears the cookies.
func (rc *RequestClient) GetSession(ctx context.Context) (*Session, error) {
	if rc.loaded {
		if rc.session == nil {
			return nil, ErrNoSession
		}
		return rc.session, nil
	}
	rc.loaded = true

	session, err := rc.client.cookies.ReadSession(rc.r)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			rc.client.logger.Warn("discarding unreadable session cookie", zap.Error(err))
			rc.client.cookies.ClearSession(rc.w, rc.r)
		}
		return nil, err
	}

	if session.Expired(rc.client.now()) {
		if session.RefreshToken == "" {
			rc.client.cookies.ClearSession(rc.w, rc.r)
			return nil, ErrNoSession
		}
		refreshed, err := rc.client.RefreshSession(ctx, session.RefreshToken)
		if err != nil {
			rc.client.cookies.ClearSession(rc.w, rc.r)
			return nil, fmt.Errorf("refresh session: %w", err)
		}
		rc.setSession(refreshed)
		return refreshed, nil
	}

	rc.session = session
	return session, nil
}

// GetUser validates accessToken with the auth server
func (rc *RequestClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	return rc.client.GetUser(ctx, accessToken)
}

// SignInWithPassword signs in and stores the new session
func (rc *RequestClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	session, err := rc.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, err
	}
	rc.setSession(session)
	return session, nil
}

// SignUp registers a user, storing the session when the server issues one immediately
func (rc *RequestClient) SignUp(ctx context.Context, creds Credentials, redirectTo string) (*SignUpResult, error) {
	result, err := rc.client.SignUp(ctx, creds, redirectTo)
	if err != nil {
		return nil, err
	}
	if result.Session != nil {
		rc.setSession(result.Session)
	}
	return result, nil
}

// SignInWithOAuth starts a PKCE OAuth flow and returns the provider URL to redirect to.
// The code verifier is kept in a cookie for ExchangeCodeForSession.
func (rc *RequestClient) SignInWithOAuth(provider, redirectTo string) string {
	verifier := oauth2.GenerateVerifier()
	rc.client.cookies.SetVerifier(rc.w, verifier)
	return rc.client.AuthorizeURL(provider, redirectTo, oauth2.S256ChallengeFromVerifier(verifier))
}

// ExchangeCodeForSession completes the PKCE flow started by SignInWithOAuth
func (rc *RequestClient) ExchangeCodeForSession(ctx context.Context, authCode string) (*Session, error) {
	verifier := rc.client.cookies.ReadVerifier(rc.r)
	if verifier == "" {
		return nil, ErrMissingVerifier
	}
	session, err := rc.client.ExchangeCodeForSession(ctx, authCode, verifier)
	rc.client.cookies.ClearVerifier(rc.w)
	if err != nil {
		return nil, err
	}
	rc.setSession(session)
	return session, nil
}

// VerifyOTP verifies an email link token and stores the resulting session
func (rc *RequestClient) VerifyOTP(ctx context.Context, tokenHash string, otpType OTPType) (*Session, error) {
	session, err := rc.client.VerifyOTP(ctx, tokenHash, otpType)
	if err != nil {
		return nil, err
	}
	rc.setSession(session)
	return session, nil
}

// ResetPasswordForEmail sends a recovery email
func (rc *RequestClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	return rc.client.ResetPasswordForEmail(ctx, email, redirectTo)
}

// UpdateUser updates the signed-in user and refreshes the stored session's user
func (rc *RequestClient) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	session, err := rc.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	user, err := rc.client.UpdateUser(ctx, session.AccessToken, attrs)
	if err != nil {
		return nil, err
	}
	updated := *session
	updated.User = user
	rc.setSession(&updated)
	return user, nil
}

// SignOut revokes the session on the server and always clears the session cookies
func (rc *RequestClient) SignOut(ctx context.Context) error {
	session, err := rc.GetSession(ctx)
	if !rc.bearer {
		rc.client.cookies.ClearSession(rc.w, rc.r)
	}
	rc.session = nil
	rc.loaded = true
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}
	return rc.client.SignOut(ctx, session.AccessToken)
}

// Storage returns a storage client acting with the current session's access token,
// or the anon key when there is no session
func (rc *RequestClient) Storage() *Storage {
	token := ""
	if rc.session != nil {
		token = rc.session.AccessToken
	}
	return rc.client.NewStorage(token)
}

func (rc *RequestClient) setSession(session *Session) {
	rc.session = session
	rc.loaded = true
	if rc.bearer {
		return
	}
	if err := rc.client.cookies.WriteSession(rc.w, rc.r, session); err != nil {
		rc.client.logger.Error("failed to write session cookie", zap.Error(err))
	}
}
