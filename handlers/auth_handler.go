package handlers

import (
	"net/http"

	"github.com/upb/commons-portal/auth"
	"github.com/upb/commons-portal/middleware"
	"github.com/upb/commons-portal/services/profile"
	"github.com/upb/commons-portal/supabase"
)

// SessionClients implements auth.ClientProvider over a supabase.Client. The request
// client created by the session middleware is reused so the session is read once.
type SessionClients struct {
	client *supabase.Client
}

// NewSessionClients creates a new SessionClients
func NewSessionClients(client *supabase.Client) *SessionClients {
	return &SessionClients{client: client}
}

// ForRequest returns the client bound to r. Cookie callers reuse the middleware's
// client; bearer callers get a client acting with their validated access token.
func (s *SessionClients) ForRequest(w http.ResponseWriter, r *http.Request) auth.SessionClient {
	ctx := r.Context()
	if rc := middleware.GetRequestClient(ctx); rc != nil {
		return sessionClient{rc}
	}
	if ac := middleware.GetAuthContext(ctx); ac.IsAuthenticated() && ac.Session != nil {
		return sessionClient{s.client.ForAccessToken(w, r, ac.Session)}
	}
	return sessionClient{s.client.ForRequest(w, r)}
}

type sessionClient struct {
	*supabase.RequestClient
}

func (c sessionClient) Objects() profile.ObjectStore {
	return c.Storage()
}
