package session

import (
	"context"
	"database/sql"
	"encoding/base32"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

// PGStore is a sessions.Store that keeps session values in Postgres. The
// browser only receives a signed session ID.
type PGStore struct {
	db      *sql.DB
	Codecs  []securecookie.Codec
	Options *sessions.Options
	now     func() time.Time
}

var _ sessions.Store = (*PGStore)(nil)

var serializer = securecookie.GobEncoder{}

// NewPGStore signs session IDs with the given key pairs.
func NewPGStore(db *sql.DB, keyPairs ...[]byte) *PGStore {
	s := &PGStore{
		db:      db,
		Codecs:  securecookie.CodecsFromPairs(keyPairs...),
		Options: cookieOptions(MaxAge, false),
		now:     time.Now,
	}
	s.MaxAge(MaxAge)
	return s
}

// NewPGBackend derives the signing keys from secret.
func NewPGBackend(db *sql.DB, secret string, secure bool) (*PGStore, error) {
	hashKey, blockKey, err := DeriveKeys(secret)
	if err != nil {
		return nil, err
	}
	s := NewPGStore(db, hashKey, blockKey)
	s.Options.Secure = secure
	return s, nil
}

// MaxAge sets the lifetime of new sessions and of the signed ID cookie.
func (s *PGStore) MaxAge(age int) {
	s.Options.MaxAge = age
	for _, codec := range s.Codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

func (s *PGStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New returns the session named by the request cookie, or a fresh one. As
// with the gorilla stores, a fresh session is returned alongside any error.
func (s *PGStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts

	c, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...); err != nil {
		return session, err
	}
	found, err := s.load(r.Context(), id, session)
	if err != nil {
		return session, err
	}
	if found {
		session.ID = id
		session.IsNew = false
	}
	return session, nil
}

// Save upserts the session row and sets the ID cookie. A negative MaxAge
// deletes the row and expires the cookie.
func (s *PGStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	ctx := r.Context()
	if session.Options.MaxAge < 0 {
		if session.ID != "" {
			if _, err := s.db.ExecContext(ctx, `DELETE FROM http_sessions WHERE id = $1`, session.ID); err != nil {
				return fmt.Errorf("session.PGStore.Save: delete: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		session.ID = newSessionID()
	}
	data, err := serializer.Serialize(session.Values)
	if err != nil {
		return fmt.Errorf("session.PGStore.Save: serialize: %w", err)
	}
	now := s.now()
	expiresAt := now.Add(time.Duration(session.Options.MaxAge) * time.Second)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO http_sessions (id, data, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at
	`, session.ID, data, now, expiresAt)
	if err != nil {
		return fmt.Errorf("session.PGStore.Save: upsert: %w", err)
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("session.PGStore.Save: encode id: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// DeleteExpired removes rows whose lifetime has passed.
func (s *PGStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM http_sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, fmt.Errorf("session.PGStore.DeleteExpired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("session.PGStore.DeleteExpired: %w", err)
	}
	return n, nil
}

func (s *PGStore) load(ctx context.Context, id string, session *sessions.Session) (bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM http_sessions WHERE id = $1 AND expires_at > $2
	`, id, s.now()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session.PGStore: load: %w", err)
	}
	if err := serializer.Deserialize(data, &session.Values); err != nil {
		return false, fmt.Errorf("session.PGStore: decode: %w", err)
	}
	return true, nil
}

func newSessionID() string {
	return strings.TrimRight(base32.StdEncoding.EncodeToString(securecookie.GenerateRandomKey(32)), "=")
}
