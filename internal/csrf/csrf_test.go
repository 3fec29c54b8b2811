package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newProtector(t *testing.T) *Protector {
	t.Helper()
	p, err := New(testSecret, false)
	require.NoError(t, err)
	return p
}

// issue fetches a token the way the login page does and returns it with
// the cookie the browser would keep.
func issue(t *testing.T, p *Protector) (string, *http.Cookie) {
	t.Helper()
	rec := httptest.NewRecorder()
	token, err := p.Token(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return token, cookies[0]
}

func post(form url.Values, cookies ...*http.Cookie) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		r.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return r
}

func TestNew_EmptySecret(t *testing.T) {
	_, err := New("", false)
	assert.Error(t, err)
}

func TestToken_SetsSignedCookie(t *testing.T) {
	p := newProtector(t)
	token, cookie := issue(t, p)

	assert.NotEmpty(t, token)
	assert.Equal(t, CookieName, cookie.Name)
	assert.NotEqual(t, token, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
}

func TestToken_ReusesExistingCookie(t *testing.T) {
	p := newProtector(t)
	token, cookie := issue(t, p)

	r := httptest.NewRequest(http.MethodGet, "/login", nil)
	r.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	rec := httptest.NewRecorder()
	again, err := p.Token(rec, r)
	require.NoError(t, err)

	assert.Equal(t, token, again)
	assert.Empty(t, rec.Result().Cookies())
}

func TestVerify(t *testing.T) {
	p := newProtector(t)
	token, cookie := issue(t, p)
	other, err := New("another-secret-another-secret-00", false)
	require.NoError(t, err)
	_, foreign := issue(t, other)

	tests := []struct {
		name    string
		req     *http.Request
		wantErr bool
	}{
		{"matching token", post(url.Values{FieldName: {token}}, cookie), false},
		{"no cookie", post(url.Values{FieldName: {token}}), true},
		{"no field", post(url.Values{}, cookie), true},
		{"wrong token", post(url.Values{FieldName: {token + "x"}}, cookie), true},
		{"cookie signed with another key", post(url.Values{FieldName: {token}}, foreign), true},
		{"forged cookie", post(url.Values{FieldName: {token}}, &http.Cookie{Name: CookieName, Value: token}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Verify(tt.req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
