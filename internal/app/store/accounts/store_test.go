package accounts_test

import (
	"errors"
	"testing"

	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/testutil"
)

func TestStore_LinkAndLookup(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, err := userstore.New(db).Create(ctx, userstore.User{Email: "a@example.com"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	store := accounts.New(db)

	linked, err := store.Link(ctx, accounts.Account{
		UserID: u.ID, ProviderID: accounts.ProviderGoogle, AccountID: "sub-1", AccessToken: "at1",
	})
	if err != nil {
		t.Fatalf("Link: %v", err)
	}

	got, err := store.GetByProvider(ctx, accounts.ProviderGoogle, "sub-1")
	if err != nil {
		t.Fatalf("GetByProvider: %v", err)
	}
	if got.ID != linked.ID || got.UserID != u.ID || got.AccessToken != "at1" {
		t.Errorf("got %+v", got)
	}
}

func TestStore_LinkTwiceRefreshesTokens(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, _ := userstore.New(db).Create(ctx, userstore.User{Email: "b@example.com"})
	store := accounts.New(db)

	first, _ := store.Link(ctx, accounts.Account{UserID: u.ID, ProviderID: accounts.ProviderGoogle, AccountID: "sub", AccessToken: "old"})
	second, err := store.Link(ctx, accounts.Account{UserID: u.ID, ProviderID: accounts.ProviderGoogle, AccountID: "sub", AccessToken: "new"})
	if err != nil {
		t.Fatalf("second Link: %v", err)
	}
	if second.ID != first.ID {
		t.Error("expected the same account row")
	}

	list, err := store.ListByUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 1 || list[0].AccessToken != "new" {
		t.Errorf("accounts = %+v", list)
	}
}

func TestStore_GetPasswordHash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u, _ := userstore.New(db).Create(ctx, userstore.User{Email: "c@example.com"})
	store := accounts.New(db)

	if _, err := store.GetPasswordHash(ctx, u.ID); !errors.Is(err, accounts.ErrNotFound) {
		t.Errorf("expected ErrNotFound before linking, got %v", err)
	}

	_, _ = store.Link(ctx, accounts.Account{UserID: u.ID, ProviderID: accounts.ProviderCredential, AccountID: u.ID, PasswordHash: "$2a$hash"})
	hash, err := store.GetPasswordHash(ctx, u.ID)
	if err != nil || hash != "$2a$hash" {
		t.Errorf("GetPasswordHash = %q, %v", hash, err)
	}
}
