// internal/app/store/verifications/store.go
package verifications

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/google/uuid"
)

// Verification is a short-lived one-time value, such as an OAuth state
// token keyed by the state and holding the return URL.
type Verification struct {
	ID         string `db:"id"`
	Identifier string `db:"identifier"`
	Value      string `db:"value"`
	ExpiresAt  int64  `db:"expires_at"`
	CreatedAt  int64  `db:"created_at"`
}

// Store manages one-time verification values.
type Store struct {
	h   *database.Handle
	now func() time.Time
}

// New creates a new verifications Store.
func New(h *database.Handle) *Store {
	return &Store{h: h, now: time.Now}
}

// Save stores value under identifier until expiresAt.
func (s *Store) Save(ctx context.Context, identifier, value string, expiresAt time.Time) error {
	_, err := s.h.DB.ExecContext(ctx, s.h.Rebind(
		"INSERT INTO verifications (id, identifier, value, expires_at, created_at) VALUES (?, ?, ?, ?, ?)"),
		uuid.NewString(), identifier, value, expiresAt.UTC().Unix(), s.now().UTC().Unix())
	return err
}

// Consume checks that identifier exists and has not expired. If valid, the
// row is deleted (one-time use) and its value returned. Two concurrent
// callers cannot both succeed.
func (s *Store) Consume(ctx context.Context, identifier string) (value string, valid bool, err error) {
	var v Verification
	err = s.h.DB.GetContext(ctx, &v, s.h.Rebind(
		"SELECT * FROM verifications WHERE identifier = ? AND expires_at > ? ORDER BY created_at DESC LIMIT 1"),
		identifier, s.now().UTC().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	res, err := s.h.DB.ExecContext(ctx, s.h.Rebind("DELETE FROM verifications WHERE id = ?"), v.ID)
	if err != nil {
		return "", false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, err
	}
	if n == 0 {
		return "", false, nil
	}
	return v.Value, true, nil
}

// DeleteExpired removes expired values.
func (s *Store) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.h.DB.ExecContext(ctx, s.h.Rebind(
		"DELETE FROM verifications WHERE expires_at <= ?"), s.now().UTC().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
