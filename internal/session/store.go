// Package session keeps the browser's authenticated state: the access token
// in the access_token cookie and the user record in a gorilla session.
package session

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"

	"attendance/internal/entity"
	"attendance/internal/httpclient"
	"attendance/internal/metrics"
)

const (
	TokenCookie = httpclient.DefaultTokenCookie
	Name        = "app-session"

	// MaxAge is the lifetime of a login in seconds (8 hours).
	MaxAge = 8 * 60 * 60
)

const (
	keyUserID   = "user_id"
	keyEmail    = "email"
	keyUsername = "username"
	keyRole     = "role"
	keyRedirect = "redirect_after_login"
)

// Store issues and clears sessions. It holds no per-browser state itself;
// everything lives in the cookies and the backend.
type Store struct {
	backend sessions.Store
	name    string
	secure  bool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Store)

// WithSecureCookies marks the token cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Store) { s.secure = secure }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

func NewStore(backend sessions.Store, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		name:    Name,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewCookieBackend returns the default backend: the user record is kept in
// a signed and encrypted cookie.
func NewCookieBackend(secret string, secure bool) (*sessions.CookieStore, error) {
	hashKey, blockKey, err := DeriveKeys(secret)
	if err != nil {
		return nil, err
	}
	store := sessions.NewCookieStore(hashKey, blockKey)
	store.Options = cookieOptions(MaxAge, secure)
	store.MaxAge(MaxAge)
	return store, nil
}

func cookieOptions(maxAge int, secure bool) *sessions.Options {
	return &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login writes the user record and the token cookie, both valid for MaxAge
// seconds. Any previous record for this browser, including a pending
// redirect, is replaced.
func (s *Store) Login(w http.ResponseWriter, r *http.Request, token string, user entity.User) (entity.Session, error) {
	sess := sessions.NewSession(s.backend, s.name)
	sess.Options = cookieOptions(MaxAge, s.secure)
	sess.Values[keyUserID] = user.ID
	sess.Values[keyEmail] = user.Email
	sess.Values[keyUsername] = user.Username
	sess.Values[keyRole] = string(user.Role)

	if err := sess.Save(r, w); err != nil {
		return entity.Session{}, fmt.Errorf("session.Login: %w", err)
	}
	http.SetCookie(w, s.tokenCookie(token, MaxAge))

	if s.metrics != nil {
		s.metrics.SessionLogins.Inc()
	}
	return entity.NewSession(token, user), nil
}

// Logout expires the token cookie and the user record. Repeated calls leave
// the same state.
func (s *Store) Logout(w http.ResponseWriter, r *http.Request) error {
	http.SetCookie(w, s.tokenCookie("", -1))

	sess, err := s.backend.Get(r, s.name)
	if err != nil {
		s.logger.DebugContext(r.Context(), "discarding unreadable session", "error", err)
	}
	if sess == nil {
		sess = sessions.NewSession(s.backend, s.name)
	}
	sess.Options = cookieOptions(-1, s.secure)
	if err := sess.Save(r, w); err != nil {
		return fmt.Errorf("session.Logout: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SessionLogouts.Inc()
	}
	return nil
}

// Load reads the session of the browser that sent r. Unless both the token
// cookie and a complete user record are present the session is empty.
func (s *Store) Load(r *http.Request) entity.Session {
	c, err := r.Cookie(TokenCookie)
	if err != nil || c.Value == "" {
		return entity.Session{}
	}
	sess, err := s.backend.Get(r, s.name)
	if err != nil || sess == nil {
		return entity.Session{}
	}
	user, ok := userFrom(sess.Values)
	if !ok {
		return entity.Session{}
	}
	return entity.NewSession(c.Value, user)
}

// Middleware loads the session into the request context and attaches the
// request's cookie jar for outbound API calls.
func (s *Store) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := s.Load(r)
		ctx := httpclient.WithCookies(r.Context(), r.Cookies())
		ctx = WithSession(ctx, current)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RememberRedirect records where an unauthenticated visitor was headed so
// that Login can send them back there. Only local paths are kept.
func (s *Store) RememberRedirect(w http.ResponseWriter, r *http.Request, path string) {
	if !IsLocalPath(path) {
		return
	}
	sess, err := s.backend.Get(r, s.name)
	if err != nil || sess == nil {
		sess = sessions.NewSession(s.backend, s.name)
	}
	sess.Values[keyRedirect] = path
	sess.Options = cookieOptions(MaxAge, s.secure)
	if err := sess.Save(r, w); err != nil {
		s.logger.WarnContext(r.Context(), "failed to save redirect target", "error", err)
	}
}

// PendingRedirect returns the path recorded by RememberRedirect, if any.
func (s *Store) PendingRedirect(r *http.Request) string {
	sess, err := s.backend.Get(r, s.name)
	if err != nil || sess == nil {
		return ""
	}
	path, _ := sess.Values[keyRedirect].(string)
	if !IsLocalPath(path) {
		return ""
	}
	return path
}

func (s *Store) tokenCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     TokenCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func userFrom(values map[interface{}]interface{}) (entity.User, bool) {
	id, ok := values[keyUserID].(int)
	if !ok || id == 0 {
		return entity.User{}, false
	}
	role, _ := values[keyRole].(string)
	email, _ := values[keyEmail].(string)
	username, _ := values[keyUsername].(string)
	return entity.User{
		ID:       id,
		Email:    email,
		Username: username,
		Role:     entity.Role(role),
	}, true
}

// IsLocalPath accepts absolute paths on this host and rejects
// scheme-relative or absolute URLs.
func IsLocalPath(path string) bool {
	return strings.HasPrefix(path, "/") &&
		!strings.HasPrefix(path, "//") &&
		!strings.HasPrefix(path, "/\\") &&
		!strings.ContainsAny(path, "\r\n")
}
