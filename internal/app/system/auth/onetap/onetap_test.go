package onetap_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	sessionstore "github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/store/verifications"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth/onetap"
	"github.com/dalemusser/scratchstarter/internal/testutil"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

func newRouter(t *testing.T, p *onetap.Plugin) (http.Handler, *userstore.Store) {
	t.Helper()
	h := testutil.SetupTestDB(t)
	users := userstore.New(h)
	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "scratch-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	e, err := auth.New(auth.Options{BaseURL: "http://localhost"}, auth.Stores{
		Users:         users,
		Accounts:      accounts.New(h),
		Sessions:      sessionstore.New(h),
		Verifications: verifications.New(h),
	}, sm, nil, zap.NewNop(), p)
	if err != nil {
		t.Fatal(err)
	}
	return e.Routes(), users
}

func post(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/one-tap/callback", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestCallback_CreatesUserAndSession(t *testing.T) {
	var gotAudience string
	p := &onetap.Plugin{ClientID: "client-1", Validate: func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		gotAudience = audience
		return &idtoken.Payload{Subject: "g-42", Claims: map[string]interface{}{
			"email":          "tap@example.com",
			"email_verified": true,
			"name":           "Tap User",
		}}, nil
	}}
	router, users := newRouter(t, p)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, post(`{"idToken":"tok"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if gotAudience != "client-1" {
		t.Errorf("audience = %q", gotAudience)
	}
	var body struct {
		User auth.User `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.User.Email != "tap@example.com" || !body.User.EmailVerified {
		t.Errorf("user = %+v", body.User)
	}
	if len(rec.Result().Cookies()) == 0 {
		t.Error("no session cookie set")
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := users.GetByEmail(ctx, "tap@example.com"); err != nil {
		t.Errorf("user not stored: %v", err)
	}
}

func TestCallback_RejectsInvalidToken(t *testing.T) {
	p := &onetap.Plugin{ClientID: "client-1", Validate: func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		return nil, errors.New("idtoken: audience provided does not match aud claim")
	}}
	router, _ := newRouter(t, p)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, post(`{"idToken":"forged"}`))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCallback_MissingToken(t *testing.T) {
	router, _ := newRouter(t, onetap.New("client-1"))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, post(`{}`))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCallback_RejectsFormPost(t *testing.T) {
	called := false
	p := &onetap.Plugin{ClientID: "client-1", Validate: func(ctx context.Context, token, audience string) (*idtoken.Payload, error) {
		called = true
		return nil, errors.New("unexpected")
	}}
	router, _ := newRouter(t, p)

	req := httptest.NewRequest(http.MethodPost, "/one-tap/callback", strings.NewReader("credential=tok"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d", rec.Code)
	}
	if called {
		t.Error("token validated for a form post")
	}
}
