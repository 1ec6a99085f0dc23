// internal/app/store/accounts/store.go
package accounts

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/google/uuid"
)

// Provider ids.
const (
	ProviderCredential = "credential" // email + password
	ProviderGoogle     = "google"
)

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = errors.New("account not found")

// Account links a user to one sign-in method.
type Account struct {
	ID           string `db:"id"`
	UserID       string `db:"user_id"`
	ProviderID   string `db:"provider_id"`
	AccountID    string `db:"account_id"` // provider subject; the user id for credentials
	PasswordHash string `db:"password_hash"`
	AccessToken  string `db:"access_token"`
	RefreshToken string `db:"refresh_token"`
	IDToken      string `db:"id_token"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

type Store struct {
	h *database.Handle
}

func New(h *database.Handle) *Store {
	return &Store{h: h}
}

// Link creates the account, or refreshes its tokens and password hash when
// the provider/account pair is already linked.
func (s *Store) Link(ctx context.Context, a Account) (Account, error) {
	now := time.Now().UTC().Unix()

	existing, err := s.GetByProvider(ctx, a.ProviderID, a.AccountID)
	switch {
	case err == nil:
		_, err = s.h.DB.ExecContext(ctx, s.h.Rebind(`UPDATE accounts
			SET password_hash = ?, access_token = ?, refresh_token = ?, id_token = ?, updated_at = ?
			WHERE id = ?`),
			a.PasswordHash, a.AccessToken, a.RefreshToken, a.IDToken, now, existing.ID)
		if err != nil {
			return Account{}, err
		}
		a.ID = existing.ID
		a.UserID = existing.UserID
		a.CreatedAt = existing.CreatedAt
		a.UpdatedAt = now
		return a, nil

	case errors.Is(err, ErrNotFound):
		a.ID = uuid.NewString()
		a.CreatedAt = now
		a.UpdatedAt = now
		_, err = s.h.DB.NamedExecContext(ctx, `INSERT INTO accounts
			(id, user_id, provider_id, account_id, password_hash, access_token, refresh_token, id_token, created_at, updated_at)
			VALUES (:id, :user_id, :provider_id, :account_id, :password_hash, :access_token, :refresh_token, :id_token, :created_at, :updated_at)`, a)
		if err != nil {
			return Account{}, err
		}
		return a, nil

	default:
		return Account{}, err
	}
}

// GetByProvider finds the account for a provider subject.
func (s *Store) GetByProvider(ctx context.Context, providerID, accountID string) (*Account, error) {
	var a Account
	err := s.h.DB.GetContext(ctx, &a, s.h.Rebind(
		"SELECT * FROM accounts WHERE provider_id = ? AND account_id = ?"), providerID, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetPasswordHash returns the credential hash for a user.
func (s *Store) GetPasswordHash(ctx context.Context, userID string) (string, error) {
	var hash string
	err := s.h.DB.GetContext(ctx, &hash, s.h.Rebind(
		"SELECT password_hash FROM accounts WHERE user_id = ? AND provider_id = ?"), userID, ProviderCredential)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return hash, err
}

// ListByUser returns every account linked to a user.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Account, error) {
	var out []Account
	err := s.h.DB.SelectContext(ctx, &out, s.h.Rebind(
		"SELECT * FROM accounts WHERE user_id = ? ORDER BY created_at"), userID)
	return out, err
}
