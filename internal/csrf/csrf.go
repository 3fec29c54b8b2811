// Package csrf protects forms with double-submit tokens: a random token is
// kept in a signed cookie and the form has to send the same value back.
package csrf

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/securecookie"
	"golang.org/x/crypto/hkdf"

	"attendance/internal/session"
)

const (
	CookieName = "csrf_token"
	FieldName  = "csrf_token"

	keyInfo  = "attendance-web csrf cookie"
	tokenLen = 32
)

var ErrInvalidToken = errors.New("csrf: invalid token")

type Protector struct {
	codec  *securecookie.SecureCookie
	secure bool
}

// New derives the cookie signing key from secret.
func New(secret string, secure bool) (*Protector, error) {
	if secret == "" {
		return nil, errors.New("csrf.New: empty secret")
	}
	hashKey := make([]byte, 64)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), hashKey); err != nil {
		return nil, fmt.Errorf("csrf.New: %w", err)
	}
	codec := securecookie.New(hashKey, nil)
	codec.MaxAge(session.MaxAge)
	return &Protector{codec: codec, secure: secure}, nil
}

// Token returns the browser's form token. A browser without a valid token
// cookie gets a new one.
func (p *Protector) Token(w http.ResponseWriter, r *http.Request) (string, error) {
	if token, ok := p.read(r); ok {
		return token, nil
	}

	raw := securecookie.GenerateRandomKey(tokenLen)
	if raw == nil {
		return "", errors.New("csrf: no randomness available")
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	encoded, err := p.codec.Encode(CookieName, token)
	if err != nil {
		return "", fmt.Errorf("csrf: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   session.MaxAge,
		Secure:   p.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// Verify checks the token of a submitted form against the cookie.
func (p *Protector) Verify(r *http.Request) error {
	want, ok := p.read(r)
	if !ok {
		return ErrInvalidToken
	}
	got := r.PostFormValue(FieldName)
	if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

func (p *Protector) read(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	var token string
	if err := p.codec.Decode(CookieName, c.Value, &token); err != nil || token == "" {
		return "", false
	}
	return token, true
}
