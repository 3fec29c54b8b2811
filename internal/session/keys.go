package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const keyInfo = "attendance-web session cookie"

// DeriveKeys expands one configured secret into the HMAC key (64 bytes) and
// the AES-256 key (32 bytes) used by securecookie.
func DeriveKeys(secret string) (hashKey, blockKey []byte, err error) {
	if secret == "" {
		return nil, nil, errors.New("session.DeriveKeys: empty secret")
	}
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo))
	hashKey = make([]byte, 64)
	blockKey = make([]byte, 32)
	if _, err := io.ReadFull(r, hashKey); err != nil {
		return nil, nil, fmt.Errorf("session.DeriveKeys: %w", err)
	}
	if _, err := io.ReadFull(r, blockKey); err != nil {
		return nil, nil, fmt.Errorf("session.DeriveKeys: %w", err)
	}
	return hashKey, blockKey, nil
}
