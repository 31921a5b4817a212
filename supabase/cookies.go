package supabase

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	// base64Prefix marks a cookie value holding base64url encoded JSON
	base64Prefix = "base64-"

	// maxChunkSize is the largest cookie value written before splitting into .0, .1, ...
	maxChunkSize = 3180

	// cookieMaxAge matches the 400 day ceiling browsers apply to cookie lifetimes
	cookieMaxAge = 400 * 24 * 60 * 60
)

// CookieStore reads and writes the auth session cookies in the format the Supabase SSR
// helpers use, so sessions are shared with browser clients of the same project.
type CookieStore struct {
	name   string
	secure bool
}

// NewCookieStore creates a cookie store for the project ref
func NewCookieStore(projectRef string, secure bool) *CookieStore {
	return &CookieStore{
		name:   "sb-" + projectRef + "-auth-token",
		secure: secure,
	}
}

// SessionCookieName is the base name of the session cookie
func (s *CookieStore) SessionCookieName() string {
	return s.name
}

// VerifierCookieName is the name of the PKCE code verifier cookie
func (s *CookieStore) VerifierCookieName() string {
	return s.name + "-code-verifier"
}

// ReadSession decodes the session from the request cookies, joining chunks when needed.
// It returns ErrNoSession when no session cookie is present.
func (s *CookieStore) ReadSession(r *http.Request) (*Session, error) {
	raw := s.readChunked(r, s.name)
	if raw == "" {
		return nil, ErrNoSession
	}
	data, err := decodeCookieValue(raw)
	if err != nil {
		return nil, err
	}
	session := &Session{}
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("decode session cookie: %w", err)
	}
	if session.AccessToken == "" {
		return nil, ErrNoSession
	}
	return session, nil
}

// WriteSession stores the session, splitting it into chunks when it exceeds the cookie
// size limit and expiring chunks left over from a previous, larger session.
func (s *CookieStore) WriteSession(w http.ResponseWriter, r *http.Request, session *Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	value := base64Prefix + base64.RawURLEncoding.EncodeToString(data)

	existing := s.existingNames(r, s.name)
	written := map[string]bool{}

	if len(value) <= maxChunkSize {
		s.set(w, s.name, value, cookieMaxAge)
		written[s.name] = true
	} else {
		for i := 0; len(value) > 0; i++ {
			n := maxChunkSize
			if len(value) < n {
				n = len(value)
			}
			name := s.name + "." + strconv.Itoa(i)
			s.set(w, name, value[:n], cookieMaxAge)
			written[name] = true
			value = value[n:]
		}
	}

	for _, name := range existing {
		if !written[name] {
			s.set(w, name, "", -1)
		}
	}
	return nil
}

// ClearSession expires every session cookie present on the request
func (s *CookieStore) ClearSession(w http.ResponseWriter, r *http.Request) {
	names := s.existingNames(r, s.name)
	if len(names) == 0 {
		names = []string{s.name}
	}
	for _, name := range names {
		s.set(w, name, "", -1)
	}
}

// SetVerifier stores the PKCE code verifier for the callback request
func (s *CookieStore) SetVerifier(w http.ResponseWriter, verifier string) {
	data, _ := json.Marshal(verifier)
	s.set(w, s.VerifierCookieName(), base64Prefix+base64.RawURLEncoding.EncodeToString(data), cookieMaxAge)
}

// ReadVerifier returns the stored PKCE code verifier, or "" when absent or unreadable
func (s *CookieStore) ReadVerifier(r *http.Request) string {
	c, err := r.Cookie(s.VerifierCookieName())
	if err != nil || c.Value == "" {
		return ""
	}
	data, err := decodeCookieValue(c.Value)
	if err != nil {
		return ""
	}
	var verifier string
	if err := json.Unmarshal(data, &verifier); err != nil {
		// Older clients store the verifier as plain text
		return string(data)
	}
	return verifier
}

// ClearVerifier expires the PKCE code verifier cookie
func (s *CookieStore) ClearVerifier(w http.ResponseWriter) {
	s.set(w, s.VerifierCookieName(), "", -1)
}

func (s *CookieStore) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// readChunked returns the unchunked cookie when present, otherwise the concatenation
// of name.0, name.1, ... up to the first gap
func (s *CookieStore) readChunked(r *http.Request, name string) string {
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		return c.Value
	}
	var b strings.Builder
	for i := 0; ; i++ {
		c, err := r.Cookie(name + "." + strconv.Itoa(i))
		if err != nil {
			break
		}
		b.WriteString(c.Value)
	}
	return b.String()
}

// existingNames lists the request's cookies that belong to the chunked cookie name
func (s *CookieStore) existingNames(r *http.Request, name string) []string {
	var names []string
	for _, c := range r.Cookies() {
		if c.Name == name {
			names = append(names, c.Name)
			continue
		}
		if suffix, ok := strings.CutPrefix(c.Name, name+"."); ok {
			if _, err := strconv.Atoi(suffix); err == nil {
				names = append(names, c.Name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// decodeCookieValue accepts base64- prefixed values and percent-encoded raw JSON
func decodeCookieValue(raw string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(raw, base64Prefix)
	if !ok {
		data, err := url.QueryUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("decode cookie value: %w", err)
		}
		return []byte(data), nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("decode cookie value: %w", err)
	}
	return data, nil
}
