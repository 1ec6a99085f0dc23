// internal/app/store/sessions/store.go
package sessions

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

// ErrNotFound is returned when the token is unknown or the session has expired.
var ErrNotFound = errors.New("session not found")

// Session is a signed-in browser session. Token is the opaque value held in
// the session cookie.
type Session struct {
	ID        string `db:"id"`
	Token     string `db:"token"`
	UserID    string `db:"user_id"`
	ExpiresAt int64  `db:"expires_at"`
	IPAddress string `db:"ip_address"`
	UserAgent string `db:"user_agent"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// Expires returns ExpiresAt as a time.
func (s Session) Expires() time.Time { return time.Unix(s.ExpiresAt, 0).UTC() }

// Store manages user sessions.
type Store struct {
	h   *database.Handle
	now func() time.Time
}

// New creates a new sessions Store.
func New(h *database.Handle) *Store {
	return &Store{h: h, now: time.Now}
}

// Create starts a session for a user lasting ttl.
func (s *Store) Create(ctx context.Context, userID string, ttl time.Duration, ip, userAgent string) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	now := s.now().UTC()
	sess := Session{
		ID:        uuid.NewString(),
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(ttl).Unix(),
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}
	_, err = s.h.DB.NamedExecContext(ctx, `INSERT INTO sessions
		(id, token, user_id, expires_at, ip_address, user_agent, created_at, updated_at)
		VALUES (:id, :token, :user_id, :expires_at, :ip_address, :user_agent, :created_at, :updated_at)`, sess)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// GetValid returns the unexpired session for token.
func (s *Store) GetValid(ctx context.Context, token string) (*Session, error) {
	var sess Session
	err := s.h.DB.GetContext(ctx, &sess, s.h.Rebind(
		"SELECT * FROM sessions WHERE token = ? AND expires_at > ?"), token, s.now().UTC().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// Extend moves the expiry of a session forward.
func (s *Store) Extend(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := s.h.DB.ExecContext(ctx, s.h.Rebind(
		"UPDATE sessions SET expires_at = ?, updated_at = ? WHERE token = ?"),
		expiresAt.UTC().Unix(), s.now().UTC().Unix(), token)
	return err
}

// Delete ends a session. Deleting an unknown token is not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
	_, err := s.h.DB.ExecContext(ctx, s.h.Rebind("DELETE FROM sessions WHERE token = ?"), token)
	return err
}

// DeleteByUser ends every session for a user.
func (s *Store) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	res, err := s.h.DB.ExecContext(ctx, s.h.Rebind("DELETE FROM sessions WHERE user_id = ?"), userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpired removes sessions past their expiry and reports how many.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.h.DB.ExecContext(ctx, s.h.Rebind(
		"DELETE FROM sessions WHERE expires_at <= ?"), s.now().UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// newToken returns 32 random bytes, base64url encoded.
func newToken() (string, error) {
	b := securecookie.GenerateRandomKey(32)
	if b == nil {
		return "", errors.New("session token: random source unavailable")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
