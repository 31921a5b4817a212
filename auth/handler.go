package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/upb/commons-portal/models"
	"github.com/upb/commons-portal/services"
	"github.com/upb/commons-portal/services/profile"
	"github.com/upb/commons-portal/supabase"
	"github.com/upb/commons-portal/utils"
	"go.uber.org/zap"
)

const (
	// ProfileRedirectPath is the callback target that lands a confirmed sign-up on its profile
	ProfileRedirectPath = "/auth/callback/redirect-to/profile"

	authErrorPath     = "/auth/auth-error"
	authCodeErrorPath = "/auth/auth-code-error"
	setPasswordPath   = "/auth/set/password"
	signinPath        = "/auth/signin"

	msgServerError = "Server error. Try again later."

	// maxFormMemory bounds multipart parsing; the avatar limit applies separately
	maxFormMemory = profile.MaxAvatarSize + 1<<20
)

var (
	// oauthProviders are the identity providers offered on sign-up
	oauthProviders = []string{"github", "discord", "linkedin"}

	// signInProviders are the identity providers with a direct sign-in link
	signInProviders = []string{"github", "discord"}
)

// SessionClient is the per-request auth client the flows drive
type SessionClient interface {
	IdentityProvider
	SignInWithPassword(ctx context.Context, email, password string) (*supabase.Session, error)
	SignUp(ctx context.Context, creds supabase.Credentials, redirectTo string) (*supabase.SignUpResult, error)
	SignInWithOAuth(provider, redirectTo string) string
	ExchangeCodeForSession(ctx context.Context, authCode string) (*supabase.Session, error)
	VerifyOTP(ctx context.Context, tokenHash string, otpType supabase.OTPType) (*supabase.Session, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	UpdateUser(ctx context.Context, attrs supabase.UserAttributes) (*supabase.User, error)
	SignOut(ctx context.Context) error

	// Objects returns object storage acting as the session's user
	Objects() profile.ObjectStore
}

// ClientProvider hands out the SessionClient bound to a request
type ClientProvider interface {
	ForRequest(w http.ResponseWriter, r *http.Request) SessionClient
}

// ProfileSetter stores a user's profile form
type ProfileSetter interface {
	SetProfile(ctx context.Context, account profile.AccountUpdater, store profile.ObjectStore, userID string, req profile.SetProfileRequest) (*models.UserProfile, error)
}

// SignInRequest is the password sign-in form
type SignInRequest struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

// SignUpRequest is the sign-up form. Names and credentials are only validated for the
// email provider.
type SignUpRequest struct {
	FirstName string `form:"firstName" validate:"required"`
	LastName  string `form:"lastName" validate:"required"`
	Email     string `form:"email" validate:"required,email"`
	Password  string `form:"password" validate:"required,min=6"`
	Provider  string `form:"provider" validate:"-"`
}

// Handler serves the browser authentication flows: password and OAuth sign-in,
// sign-up, email link callbacks, sign-out, password reset and the profile forms.
type Handler struct {
	clients     ClientProvider
	profiles    ProfileSetter
	authContext func(ctx context.Context) *AuthorizationContext
	siteURL     string
	logger      *zap.Logger
}

// NewHandler creates a new auth handler. authContext returns the caller resolved by
// the session middleware. siteURL is the public origin used in emailed and OAuth
// redirect links; when empty it is derived from each request.
func NewHandler(clients ClientProvider, profiles ProfileSetter, authContext func(ctx context.Context) *AuthorizationContext, siteURL string, logger *zap.Logger) *Handler {
	return &Handler{
		clients:     clients,
		profiles:    profiles,
		authContext: authContext,
		siteURL:     strings.TrimSuffix(siteURL, "/"),
		logger:      logger,
	}
}

// Routes mounts the flows on a router
func (h *Handler) Routes(r chi.Router) {
	r.Post("/signin", h.HandleSignIn)
	r.Get("/signin/{provider}", h.HandleOAuthSignIn)
	r.Post("/signup", h.HandleSignUp)
	r.Get("/signout", h.HandleSignOut)
	r.Get("/callback", h.HandleCallback)
	r.Get("/callback/", h.HandleCallback)
	r.Get("/callback/redirect-to/profile", h.HandleRedirectToProfile)
	r.Post("/reset/password", h.HandleResetPassword)
	r.Post("/set/password", h.HandleSetPassword)
	r.Post("/set/profile", h.HandleSetProfile)
	r.Post("/set/password/profile", h.HandleSetPasswordProfile)
}

// HandleSignIn signs in with email and password and sends the user to their dashboard
func (h *Handler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"general": "Invalid form"})
		return
	}
	req := SignInRequest{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, utils.GetValidationFields(err))
		return
	}

	session, err := h.clients.ForRequest(w, r).SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("sign in failed", zap.Error(err))
		if supabase.IsAPIError(err, http.StatusBadRequest) {
			_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"general": "Invalid credentials"})
			return
		}
		_ = utils.WriteFormErrors(w, http.StatusInternalServerError, map[string]string{"general": msgServerError})
		return
	}
	if session.User == nil || session.User.ID == "" {
		utils.SeeOther(w, r, authErrorPath)
		return
	}
	utils.SeeOther(w, r, dashboardPath(session.User.ID))
}

// HandleSignUp registers an email user or starts an OAuth sign-up
func (h *Handler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"general": "Invalid form"})
		return
	}
	req := SignUpRequest{
		FirstName: strings.TrimSpace(r.PostFormValue("firstName")),
		LastName:  strings.TrimSpace(r.PostFormValue("lastName")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password:  r.PostFormValue("password"),
		Provider:  r.PostFormValue("provider"),
	}

	client := h.clients.ForRequest(w, r)
	switch {
	case req.Provider == "email":
		h.signUpWithEmail(w, r, client, req)
	case utils.ValidateOneOf(req.Provider, "provider", oauthProviders) == nil:
		utils.SeeOther(w, r, client.SignInWithOAuth(req.Provider, h.origin(r)+"/auth/callback"))
	default:
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"provider": "Invalid provider"})
	}
}

func (h *Handler) signUpWithEmail(w http.ResponseWriter, r *http.Request, client SessionClient, req SignUpRequest) {
	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, utils.GetValidationFields(err))
		return
	}

	redirectTo := h.origin(r) + "/auth/callback?next=" + url.QueryEscape(ProfileRedirectPath)
	result, err := client.SignUp(r.Context(), supabase.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Data:     map[string]interface{}{"firstName": req.FirstName, "lastName": req.LastName},
	}, redirectTo)
	if err != nil {
		h.logger.Info("sign up failed", zap.Error(err))
		if supabase.IsAPIError(err, 0) {
			_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"email": "Invalid email"})
			return
		}
		_ = utils.WriteFormErrors(w, http.StatusInternalServerError, map[string]string{"general": msgServerError})
		return
	}

	if result.Session != nil && result.User != nil {
		_ = utils.WriteFormSuccess(w, profilePath(result.User.ID))
		return
	}
	_ = utils.WriteFormMessage(w, "Check your email to confirm your account.")
}

// HandleOAuthSignIn redirects to the provider's consent page
func (h *Handler) HandleOAuthSignIn(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if err := utils.ValidateOneOf(provider, "provider", signInProviders); err != nil {
		h.logger.Warn("unsupported oauth provider", zap.String("provider", provider), zap.Error(err))
		utils.SeeOther(w, r, authErrorPath)
		return
	}

	authURL := h.clients.ForRequest(w, r).SignInWithOAuth(provider, h.origin(r)+"/auth/callback")
	if authURL == "" {
		utils.SeeOther(w, r, authErrorPath)
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleSignOut ends the session and reports the outcome on the home page
func (h *Handler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.clients.ForRequest(w, r).SignOut(r.Context()); err != nil {
		h.logger.Warn("sign out failed", zap.Error(err))
		q := url.Values{"signout": {"error"}, "message": {signOutMessage(err)}}
		utils.SeeOther(w, r, "/?"+q.Encode())
		return
	}
	utils.SeeOther(w, r, "/?signout=success")
}

// HandleCallback completes email links (token_hash and type) and OAuth PKCE
// redirects (code)
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tokenHash := q.Get("token_hash")
	otpType := q.Get("type")
	next := utils.SafeRedirectPath(q.Get("next"), "/")
	client := h.clients.ForRequest(w, r)

	if tokenHash != "" && otpType != "" {
		h.verifyEmailLink(w, r, client, tokenHash, otpType, next)
		return
	}

	if code := q.Get("code"); code != "" {
		session, err := client.ExchangeCodeForSession(r.Context(), code)
		if err != nil {
			h.logger.Warn("code exchange failed", zap.Error(err))
			utils.SeeOther(w, r, authCodeErrorPath)
			return
		}
		if session.User != nil && session.User.ID != "" {
			utils.SeeOther(w, r, profilePath(session.User.ID))
			return
		}
	}

	h.logger.Warn("unhandled authentication callback")
	utils.SeeOther(w, r, authErrorPath)
}

func (h *Handler) verifyEmailLink(w http.ResponseWriter, r *http.Request, client SessionClient, tokenHash, rawType, next string) {
	otpType, ok := supabase.ParseEmailOTPType(rawType)
	if !ok || otpType == supabase.OTPMagicLink {
		h.logger.Warn("invalid otp type", zap.String("type", rawType))
		utils.SeeOther(w, r, authErrorPath)
		return
	}

	session, err := client.VerifyOTP(r.Context(), tokenHash, otpType)
	if err != nil {
		h.logger.Warn("otp verification failed", zap.Error(err))
		utils.SeeOther(w, r, authErrorPath)
		return
	}

	switch {
	case otpType == supabase.OTPRecovery:
		utils.SeeOther(w, r, setPasswordPath)
		return
	case otpType == supabase.OTPSignup && next == ProfileRedirectPath:
		if id := sessionUserID(r.Context(), client, session); id != "" {
			utils.SeeOther(w, r, profilePath(id))
			return
		}
	}
	utils.SeeOther(w, r, next)
}

// HandleRedirectToProfile sends a signed-in user to their dashboard
func (h *Handler) HandleRedirectToProfile(w http.ResponseWriter, r *http.Request) {
	ac := h.authContext(r.Context())
	if !ac.IsAuthenticated() {
		utils.SeeOther(w, r, signinPath)
		return
	}
	utils.SeeOther(w, r, dashboardPath(ac.UserID()))
}

// HandleResetPassword emails a recovery link that returns to the callback
func (h *Handler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"general": "Invalid form"})
		return
	}
	email := strings.TrimSpace(r.PostFormValue("email"))
	if err := utils.ValidateEmail(email); err != nil {
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"email": "Invalid email address"})
		return
	}

	err := h.clients.ForRequest(w, r).ResetPasswordForEmail(r.Context(), email, h.origin(r)+"/auth/callback/")
	if err != nil {
		h.logger.Info("password reset failed", zap.Error(err))
		if supabase.IsAPIError(err, http.StatusBadRequest) {
			_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"email": "Invalid email address"})
			return
		}
		_ = utils.WriteFormErrors(w, http.StatusInternalServerError, map[string]string{"general": msgServerError})
		return
	}
	_ = utils.WriteFormMessage(w, "Password reset email sent. Check your inbox.")
}

// HandleSetPassword sets a new password for the signed-in user
func (h *Handler) HandleSetPassword(w http.ResponseWriter, r *http.Request) {
	ac := h.authContext(r.Context())
	if !ac.IsAuthenticated() {
		_ = utils.WriteFormErrors(w, http.StatusUnauthorized, map[string]string{"general": "Unauthorized"})
		return
	}
	if err := r.ParseForm(); err != nil {
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"general": "Invalid form"})
		return
	}
	password := r.PostFormValue("password")
	if password == "" {
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"password": "Password is required"})
		return
	}

	if _, err := h.clients.ForRequest(w, r).UpdateUser(r.Context(), supabase.UserAttributes{Password: password}); err != nil {
		h.logger.Info("password update failed", zap.String("user_id", ac.UserID()), zap.Error(err))
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"general": apiMessage(err)})
		return
	}
	_ = utils.WriteFormSuccess(w, dashboardPath(ac.UserID()))
}

// HandleSetProfile stores the profile form of the signed-in user
func (h *Handler) HandleSetProfile(w http.ResponseWriter, r *http.Request) {
	h.setProfile(w, r, false)
}

// HandleSetPasswordProfile stores the profile form together with a first password,
// for accounts created by invitation
func (h *Handler) HandleSetPasswordProfile(w http.ResponseWriter, r *http.Request) {
	h.setProfile(w, r, true)
}

func (h *Handler) setProfile(w http.ResponseWriter, r *http.Request, withPassword bool) {
	ac := h.authContext(r.Context())
	if !ac.IsAuthenticated() {
		_ = utils.WriteFormErrors(w, http.StatusUnauthorized, map[string]string{"general": "Unauthorized"})
		return
	}

	req, err := readProfileForm(r)
	if err != nil {
		h.logger.Info("invalid profile form", zap.Error(err))
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, map[string]string{"general": "Invalid form"})
		return
	}
	req.WithPassword = withPassword

	client := h.clients.ForRequest(w, r)
	if _, err := h.profiles.SetProfile(r.Context(), client, client.Objects(), ac.UserID(), req); err != nil {
		h.writeProfileError(w, ac.UserID(), err)
		return
	}

	if withPassword {
		_ = utils.WriteJSON(w, http.StatusOK, utils.FormResult{Success: true})
		return
	}
	_ = utils.WriteFormSuccess(w, dashboardPath(ac.UserID()))
}

func (h *Handler) writeProfileError(w http.ResponseWriter, userID string, err error) {
	switch {
	case services.IsValidationError(err):
		fields := map[string]string{}
		for k, v := range services.GetErrorDetails(err) {
			if s, ok := v.(string); ok && k != "content_type" {
				fields[k] = s
			}
		}
		_ = utils.WriteFormErrors(w, http.StatusBadRequest, fields)
	case services.IsUnauthorizedError(err):
		_ = utils.WriteFormErrors(w, http.StatusUnauthorized, map[string]string{"general": "Unauthorized"})
	case services.IsExternalError(err):
		h.logger.Error("profile update failed upstream", zap.String("user_id", userID), zap.Error(err))
		_ = utils.WriteFormErrors(w, http.StatusBadGateway, map[string]string{"avatar": "Avatar upload failed"})
	default:
		h.logger.Error("profile update failed", zap.String("user_id", userID), zap.Error(err))
		_ = utils.WriteFormErrors(w, http.StatusInternalServerError, map[string]string{"general": msgServerError})
	}
}

// readProfileForm parses a urlencoded or multipart profile form. An empty or missing
// avatar file leaves Avatar nil.
func readProfileForm(r *http.Request) (profile.SetProfileRequest, error) {
	var req profile.SetProfileRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
	} else if err := r.ParseForm(); err != nil {
		return req, fmt.Errorf("invalid form: %w", err)
	}

	req.FirstName = r.PostFormValue("firstName")
	req.LastName = r.PostFormValue("lastName")
	req.Password = r.PostFormValue("password")

	if r.MultipartForm == nil {
		return req, nil
	}
	file, _, err := r.FormFile("avatar")
	if errors.Is(err, http.ErrMissingFile) {
		return req, nil
	}
	if err != nil {
		return req, fmt.Errorf("invalid avatar: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, profile.MaxAvatarSize+1))
	if err != nil {
		return req, fmt.Errorf("invalid avatar: %w", err)
	}
	if len(data) > 0 {
		req.Avatar = data
	}
	return req, nil
}

// origin is the public origin of the site, from configuration or the request
func (h *Handler) origin(r *http.Request) string {
	if h.siteURL != "" {
		return h.siteURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

func sessionUserID(ctx context.Context, client SessionClient, session *supabase.Session) string {
	if session.User != nil && session.User.ID != "" {
		return session.User.ID
	}
	user, err := client.GetUser(ctx, session.AccessToken)
	if err != nil || user == nil {
		return ""
	}
	return user.ID
}

func dashboardPath(userID string) string {
	return "/users/" + url.PathEscape(userID) + "/dashboard"
}

func profilePath(userID string) string {
	return "/profile/" + url.PathEscape(userID)
}

func apiMessage(err error) string {
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return msgServerError
}

func signOutMessage(err error) string {
	var apiErr *supabase.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Unknown error"
}
