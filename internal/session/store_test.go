package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attendance/internal/entity"
	"attendance/internal/httpclient"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var ada = entity.User{ID: 7, Email: "ada@ziti.edu", Username: "ada", Role: entity.RoleTeacher}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	backend, err := NewCookieBackend(testSecret, false)
	require.NoError(t, err)
	return NewStore(backend)
}

// browserCookies returns what a browser would send back after rec.
func browserCookies(rec *httptest.ResponseRecorder) []*http.Cookie {
	var kept []*http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			kept = append(kept, c)
		}
	}
	return kept
}

func requestWith(cookies []*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}

func findSetCookie(t *testing.T, rec *httptest.ResponseRecorder, name string) string {
	t.Helper()
	for _, line := range rec.Header().Values("Set-Cookie") {
		if strings.HasPrefix(line, name+"=") {
			return line
		}
	}
	t.Fatalf("no Set-Cookie for %s in %v", name, rec.Header().Values("Set-Cookie"))
	return ""
}

func TestLogin_SetsTokenAndUserTogether(t *testing.T) {
	store := newTestStore(t)
	rec := httptest.NewRecorder()

	sess, err := store.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "tok-1", ada)
	require.NoError(t, err)

	assert.True(t, sess.IsAuthenticated())
	assert.Equal(t, "tok-1", sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, ada, *sess.User)

	token := findSetCookie(t, rec, "access_token")
	assert.True(t, strings.HasPrefix(token, "access_token=tok-1;"))
	assert.Contains(t, token, "Path=/")
	assert.Contains(t, token, "Max-Age=28800")
	assert.Contains(t, token, "HttpOnly")

	record := findSetCookie(t, rec, Name)
	assert.Contains(t, record, "Max-Age=28800")
}

func TestLogin_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	rec := httptest.NewRecorder()
	_, err := store.Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "tok-1", ada)
	require.NoError(t, err)

	loaded := store.Load(requestWith(browserCookies(rec)))
	assert.True(t, loaded.IsAuthenticated())
	assert.Equal(t, "tok-1", loaded.Token)
	assert.Equal(t, ada, *loaded.User)
}

func TestLogin_OverwritesPreviousSession(t *testing.T) {
	store := newTestStore(t)
	first := httptest.NewRecorder()
	_, err := store.Login(first, httptest.NewRequest(http.MethodPost, "/login", nil), "tok-1", ada)
	require.NoError(t, err)

	bob := entity.User{ID: 8, Email: "bob@ziti.edu", Username: "bob", Role: entity.RoleStudent}
	second := httptest.NewRecorder()
	_, err = store.Login(second, requestWith(browserCookies(first)), "tok-2", bob)
	require.NoError(t, err)

	loaded := store.Load(requestWith(browserCookies(second)))
	assert.Equal(t, "tok-2", loaded.Token)
	assert.Equal(t, bob, *loaded.User)
}

func TestLogout_ClearsTokenAndUserTogether(t *testing.T) {
	store := newTestStore(t)
	login := httptest.NewRecorder()
	_, err := store.Login(login, httptest.NewRequest(http.MethodPost, "/login", nil), "tok-1", ada)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, store.Logout(rec, requestWith(browserCookies(login))))

	token := findSetCookie(t, rec, "access_token")
	assert.True(t, strings.HasPrefix(token, "access_token=;"))
	assert.Contains(t, token, "Path=/")
	assert.Contains(t, token, "Max-Age=0")
	assert.Contains(t, findSetCookie(t, rec, Name), "Max-Age=0")

	assert.Empty(t, browserCookies(rec))
	assert.Equal(t, entity.Session{}, store.Load(requestWith(browserCookies(rec))))
}

func TestLogout_Idempotent(t *testing.T) {
	store := newTestStore(t)

	first := httptest.NewRecorder()
	require.NoError(t, store.Logout(first, httptest.NewRequest(http.MethodPost, "/logout", nil)))
	second := httptest.NewRecorder()
	require.NoError(t, store.Logout(second, requestWith(browserCookies(first))))

	for _, rec := range []*httptest.ResponseRecorder{first, second} {
		assert.Contains(t, findSetCookie(t, rec, "access_token"), "Max-Age=0")
		assert.Contains(t, findSetCookie(t, rec, Name), "Max-Age=0")
		assert.Empty(t, browserCookies(rec))
	}
}

func TestLoad_RequiresBothHalves(t *testing.T) {
	store := newTestStore(t)
	login := httptest.NewRecorder()
	_, err := store.Login(login, httptest.NewRequest(http.MethodPost, "/login", nil), "tok-1", ada)
	require.NoError(t, err)

	var tokenOnly, recordOnly []*http.Cookie
	for _, c := range browserCookies(login) {
		if c.Name == TokenCookie {
			tokenOnly = append(tokenOnly, c)
		} else {
			recordOnly = append(recordOnly, c)
		}
	}

	assert.False(t, store.Load(requestWith(tokenOnly)).IsAuthenticated())
	assert.False(t, store.Load(requestWith(recordOnly)).IsAuthenticated())
	assert.False(t, store.Load(requestWith(nil)).IsAuthenticated())
}

func TestLoad_TamperedRecord(t *testing.T) {
	store := newTestStore(t)
	r := requestWith([]*http.Cookie{
		{Name: TokenCookie, Value: "tok"},
		{Name: Name, Value: "forged"},
	})
	assert.Equal(t, entity.Session{}, store.Load(r))
}

func TestLoad_RecordFromOtherSecretIsRejected(t *testing.T) {
	other, err := NewCookieBackend("another-secret-another-secret-xx", false)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	_, err = NewStore(other).Login(rec, httptest.NewRequest(http.MethodPost, "/login", nil), "tok", ada)
	require.NoError(t, err)

	assert.False(t, newTestStore(t).Load(requestWith(browserCookies(rec))).IsAuthenticated())
}

func TestMiddleware_PutsSessionAndCookieJarInContext(t *testing.T) {
	store := newTestStore(t)
	login := httptest.NewRecorder()
	_, err := store.Login(login, httptest.NewRequest(http.MethodPost, "/login", nil), "tok-1", ada)
	require.NoError(t, err)

	var got entity.Session
	var token string
	h := store.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		token = httpclient.TokenFrom(r.Context(), TokenCookie)
	}))
	h.ServeHTTP(httptest.NewRecorder(), requestWith(browserCookies(login)))

	assert.True(t, got.IsAuthenticated())
	assert.Equal(t, "ada", got.User.Username)
	assert.Equal(t, "tok-1", token)
}

func TestFromContext_Empty(t *testing.T) {
	assert.False(t, FromContext(context.Background()).IsAuthenticated())
}

func TestRedirectMemory(t *testing.T) {
	store := newTestStore(t)

	rec := httptest.NewRecorder()
	store.RememberRedirect(rec, httptest.NewRequest(http.MethodGet, "/courses/3", nil), "/courses/3")
	assert.Equal(t, "/courses/3", store.PendingRedirect(requestWith(browserCookies(rec))))

	login := httptest.NewRecorder()
	_, err := store.Login(login, requestWith(browserCookies(rec)), "tok", ada)
	require.NoError(t, err)
	assert.Empty(t, store.PendingRedirect(requestWith(browserCookies(login))))
}

func TestRememberRedirect_IgnoresForeignTargets(t *testing.T) {
	store := newTestStore(t)
	for _, target := range []string{"https://evil.example", "//evil.example", "/\\evil.example", "relative"} {
		rec := httptest.NewRecorder()
		store.RememberRedirect(rec, httptest.NewRequest(http.MethodGet, "/", nil), target)
		assert.Empty(t, store.PendingRedirect(requestWith(browserCookies(rec))), target)
	}
}

func TestIsLocalPath(t *testing.T) {
	assert.True(t, IsLocalPath("/dashboard"))
	assert.True(t, IsLocalPath("/courses/1?tab=students"))
	assert.False(t, IsLocalPath(""))
	assert.False(t, IsLocalPath("//host/x"))
	assert.False(t, IsLocalPath("/ok\r\nSet-Cookie: x"))
}

func TestDeriveKeys(t *testing.T) {
	h1, b1, err := DeriveKeys(testSecret)
	require.NoError(t, err)
	assert.Len(t, h1, 64)
	assert.Len(t, b1, 32)

	h2, b2, err := DeriveKeys(testSecret)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, b1, b2)

	h3, _, err := DeriveKeys(testSecret + "x")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	_, _, err = DeriveKeys("")
	assert.Error(t, err)
}
