// internal/app/store/users/userstore.go
package userstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrDuplicateEmail is returned when attempting to create a user with an email that already exists.
	ErrDuplicateEmail = errors.New("a user with this email already exists")
	errEmailRequired  = errors.New("email is required")
)

// User is an authenticated identity.
type User struct {
	ID            string
	Name          string
	Email         string
	EmailVerified bool
	Image         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type row struct {
	ID            string `db:"id"`
	Name          string `db:"name"`
	Email         string `db:"email"`
	EmailVerified bool   `db:"email_verified"`
	Image         string `db:"image"`
	CreatedAt     int64  `db:"created_at"`
	UpdatedAt     int64  `db:"updated_at"`
}

func (r row) user() User {
	return User{
		ID:            r.ID,
		Name:          r.Name,
		Email:         r.Email,
		EmailVerified: r.EmailVerified,
		Image:         r.Image,
		CreatedAt:     time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt:     time.Unix(r.UpdatedAt, 0).UTC(),
	}
}

const columns = "id, name, email, email_verified, image, created_at, updated_at"

type Store struct {
	h *database.Handle
}

func New(h *database.Handle) *Store {
	return &Store{h: h}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetByID loads a user by id.
func (s *Store) GetByID(ctx context.Context, id string) (*User, error) {
	return s.getOne(ctx, "SELECT "+columns+" FROM users WHERE id = ?", id)
}

// GetByEmail looks up a user by case-insensitive email. Returns ErrNotFound if not found.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, "SELECT "+columns+" FROM users WHERE email = ?", NormalizeEmail(email))
}

func (s *Store) getOne(ctx context.Context, query string, args ...any) (*User, error) {
	var r row
	if err := s.h.DB.GetContext(ctx, &r, s.h.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u := r.user()
	return &u, nil
}

// Create inserts a new user after normalizing fields. The returned user
// carries the generated id and timestamps.
func (s *Store) Create(ctx context.Context, u User) (User, error) {
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" {
		return User{}, errEmailRequired
	}
	u.Name = strings.TrimSpace(u.Name)

	if _, err := s.GetByEmail(ctx, u.Email); err == nil {
		return User{}, ErrDuplicateEmail
	} else if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	u.ID = uuid.NewString()
	u.CreatedAt = now
	u.UpdatedAt = now

	_, err := s.h.DB.ExecContext(ctx, s.h.Rebind(
		"INSERT INTO users ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?)"),
		u.ID, u.Name, u.Email, u.EmailVerified, u.Image, now.Unix(), now.Unix())
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Delete removes the user with id. Missing users are not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.h.DB.ExecContext(ctx, s.h.Rebind("DELETE FROM users WHERE id = ?"), id)
	return err
}

// ProfileUpdate holds the fields a user may change about themselves.
type ProfileUpdate struct {
	Name  *string
	Image *string
}

// UpdateProfile applies the non-nil fields of upd.
func (s *Store) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC().Unix()}
	if upd.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*upd.Name))
	}
	if upd.Image != nil {
		sets = append(sets, "image = ?")
		args = append(args, *upd.Image)
	}
	args = append(args, id)

	res, err := s.h.DB.ExecContext(ctx,
		s.h.Rebind("UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?"), args...)
	if err != nil {
		return err
	}
	return requireOne(res)
}

// MarkEmailVerified flags the user's address as verified.
func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	res, err := s.h.DB.ExecContext(ctx,
		s.h.Rebind("UPDATE users SET email_verified = ?, updated_at = ? WHERE id = ?"),
		true, time.Now().UTC().Unix(), id)
	if err != nil {
		return err
	}
	return requireOne(res)
}

func requireOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
