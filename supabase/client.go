package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// Config holds what a Client needs to talk to a Supabase project
type Config struct {
	URL          string
	AnonKey      string
	HTTPTimeout  time.Duration
	CookieSecure bool
}

// Client talks to the Supabase auth and storage REST APIs with the project anon key.
// It is safe for concurrent use; per-request state lives in RequestClient.
type Client struct {
	baseURL    *url.URL
	anonKey    string
	projectRef string
	httpClient *http.Client
	cookies    *CookieStore
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a new Supabase client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("supabase url is required")
	}
	if cfg.AnonKey == "" {
		return nil, errors.New("supabase anon key is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid supabase url %q", cfg.URL)
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}

	ref := strings.SplitN(base.Hostname(), ".", 2)[0]
	return &Client{
		baseURL:    base,
		anonKey:    cfg.AnonKey,
		projectRef: ref,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cookies:    NewCookieStore(ref, cfg.CookieSecure),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// ProjectRef is the project reference used to name the session cookies
func (c *Client) ProjectRef() string {
	return c.projectRef
}

// Issuer is the iss claim the auth server puts in access tokens
func (c *Client) Issuer() string {
	return c.endpoint("/auth/v1", nil)
}

// JWKSURL is the auth server's JSON Web Key Set endpoint
func (c *Client) JWKSURL() string {
	return c.endpoint("/auth/v1/.well-known/jwks.json", nil)
}

// GetUser validates an access token against the auth server and returns its user
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}
	user := &User{}
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken, nil, user); err != nil {
		return nil, err
	}
	if user.ID == "" {
		return nil, errors.New("supabase: user response without id")
	}
	return user, nil
}

// SignInWithPassword exchanges email and password for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	q := url.Values{"grant_type": {"password"}}
	return c.tokenRequest(ctx, q, Credentials{Email: email, Password: password})
}

// RefreshSession exchanges a refresh token for a new session
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	q := url.Values{"grant_type": {"refresh_token"}}
	return c.tokenRequest(ctx, q, map[string]string{"refresh_token": refreshToken})
}

// ExchangeCodeForSession completes a PKCE flow
func (c *Client) ExchangeCodeForSession(ctx context.Context, authCode, codeVerifier string) (*Session, error) {
	q := url.Values{"grant_type": {"pkce"}}
	return c.tokenRequest(ctx, q, map[string]string{
		"auth_code":     authCode,
		"code_verifier": codeVerifier,
	})
}

func (c *Client) tokenRequest(ctx context.Context, q url.Values, body interface{}) (*Session, error) {
	session := &Session{}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, "", body, session); err != nil {
		return nil, err
	}
	session.stampExpiry(c.now())
	return session, nil
}

// SignUp registers a new email user. redirectTo is where the confirmation link lands.
func (c *Client) SignUp(ctx context.Context, creds Credentials, redirectTo string) (*SignUpResult, error) {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", q, "", creds, &raw); err != nil {
		return nil, err
	}

	// With autoconfirm the server answers with a session, otherwise with the bare user
	var shape struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &shape); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	if shape.AccessToken != "" {
		session := &Session{}
		if err := json.Unmarshal(raw, session); err != nil {
			return nil, fmt.Errorf("decode signup session: %w", err)
		}
		session.stampExpiry(c.now())
		return &SignUpResult{User: session.User, Session: session}, nil
	}
	user := &User{}
	if err := json.Unmarshal(raw, user); err != nil {
		return nil, fmt.Errorf("decode signup user: %w", err)
	}
	return &SignUpResult{User: user}, nil
}

// VerifyOTP verifies a token hash from an email link and returns the resulting session
func (c *Client) VerifyOTP(ctx context.Context, tokenHash string, otpType OTPType) (*Session, error) {
	session := &Session{}
	body := map[string]string{"token_hash": tokenHash, "type": string(otpType)}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/verify", nil, "", body, session); err != nil {
		return nil, err
	}
	session.stampExpiry(c.now())
	return session, nil
}

// ResetPasswordForEmail sends a password recovery email
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", q, "", map[string]string{"email": email}, nil)
}

// UpdateUser updates the user owning accessToken
func (c *Client) UpdateUser(ctx context.Context, accessToken string, attrs UserAttributes) (*User, error) {
	user := &User{}
	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", nil, accessToken, attrs, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SignOut revokes the session's refresh tokens
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	q := url.Values{"scope": {"global"}}
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", q, accessToken, nil, nil)
}

// AuthorizeURL builds the OAuth authorize URL for provider using a PKCE S256 challenge
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	q := url.Values{"provider": {provider}}
	if redirectTo != "" {
		q.Set("redirect_to", redirectTo)
	}
	if codeChallenge != "" {
		q.Set("code_challenge", codeChallenge)
		q.Set("code_challenge_method", "s256")
	}
	return c.endpoint("/auth/v1/authorize", q)
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// do sends a JSON request. The bearer is accessToken when set, otherwise the anon key.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, accessToken string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, q), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, accessToken, out)
}

func (c *Client) send(req *http.Request, accessToken string, out interface{}) error {
	bearer := accessToken
	if bearer == "" {
		bearer = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("supabase request %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseAPIError(resp.StatusCode, data)
		c.logger.Debug("supabase request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code))
		return apiErr
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
