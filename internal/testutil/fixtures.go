package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	sessionstore "github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	"github.com/dalemusser/scratchstarter/internal/app/store/subscriptions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	h *database.Handle
	t *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, h *database.Handle) *Fixtures {
	t.Helper()
	return &Fixtures{h: h, t: t}
}

// DB returns the underlying handle for direct access in tests.
func (f *Fixtures) DB() *database.Handle {
	return f.h
}

// CreateUser creates a user with the given name and email.
func (f *Fixtures) CreateUser(ctx context.Context, name, email string) userstore.User {
	f.t.Helper()

	u, err := userstore.New(f.h).Create(ctx, userstore.User{Name: name, Email: email})
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreatePasswordUser creates a user with a credential account for password.
// bcrypt.MinCost keeps the fixture fast.
func (f *Fixtures) CreatePasswordUser(ctx context.Context, name, email, password string) userstore.User {
	f.t.Helper()

	u := f.CreateUser(ctx, name, email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		f.t.Fatalf("failed to hash password: %v", err)
	}
	if _, err := accounts.New(f.h).Link(ctx, accounts.Account{
		UserID:       u.ID,
		ProviderID:   accounts.ProviderCredential,
		AccountID:    u.ID,
		PasswordHash: string(hash),
	}); err != nil {
		f.t.Fatalf("failed to link credential account: %v", err)
	}
	return u
}

// CreateSession creates a session for userID lasting ttl.
func (f *Fixtures) CreateSession(ctx context.Context, userID string, ttl time.Duration) sessionstore.Session {
	f.t.Helper()

	s, err := sessionstore.New(f.h).Create(ctx, userID, ttl, "127.0.0.1", "testutil")
	if err != nil {
		f.t.Fatalf("failed to create test session: %v", err)
	}
	return s
}

// CreateSubscription creates an active subscription on plan for userID.
func (f *Fixtures) CreateSubscription(ctx context.Context, userID, plan string) subscriptions.Subscription {
	f.t.Helper()

	now := time.Now().UTC()
	sub := subscriptions.Subscription{
		ReferenceID:          userID,
		Plan:                 plan,
		Status:               subscriptions.StatusActive,
		StripeCustomerID:     "cus_" + uuid.NewString()[:8],
		StripeSubscriptionID: "sub_" + uuid.NewString()[:8],
		PeriodStart:          now.Unix(),
		PeriodEnd:            now.AddDate(0, 1, 0).Unix(),
	}
	saved, err := subscriptions.New(f.h).Upsert(ctx, sub)
	if err != nil {
		f.t.Fatalf("failed to create test subscription: %v", err)
	}
	return saved
}
