package logout_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/features/logout"
	"github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/testutil"
	"go.uber.org/zap"
)

func newSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager("test-session-key-for-testing-only", "test-session", "", 24*time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager failed: %v", err)
	}
	return sm
}

func newTestHandler(t *testing.T) *logout.Handler {
	t.Helper()
	// Pass nil for audit logger and sessions store in tests (handler has nil checks)
	return logout.NewHandler(newSessionManager(t), nil, nil, zap.NewNop())
}

func TestServeLogout_RedirectsToHome(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/logout", nil)
	rec := httptest.NewRecorder()

	handler.ServeLogout(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Errorf("expected status %d, got %d", http.StatusSeeOther, rec.Code)
	}
	if location := rec.Header().Get("Location"); location != "/" {
		t.Errorf("Location: got %q, want %q", location, "/")
	}
}

func TestServeLogout_ClearsSessionCookie(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/logout", nil)
	rec := httptest.NewRecorder()

	handler.ServeLogout(rec, req)

	found := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == "test-session" {
			found = true
			if c.MaxAge != -1 {
				t.Errorf("cookie MaxAge: got %d, want -1 (delete)", c.MaxAge)
			}
		}
	}
	if !found {
		t.Error("expected session cookie to be set for deletion")
	}
}

func TestServeLogout_HTMX_ReturnsHXRedirect(t *testing.T) {
	handler := newTestHandler(t)

	req := httptest.NewRequest("GET", "/logout", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()

	handler.ServeLogout(rec, req)

	if hx := rec.Header().Get("HX-Redirect"); hx != "/" {
		t.Errorf("HX-Redirect: got %q, want %q", hx, "/")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected status %d for HTMX, got %d", http.StatusOK, rec.Code)
	}
}

func TestServeLogout_DeletesServerSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ada", "ada@example.com")
	sess := fx.CreateSession(ctx, u.ID, time.Hour)

	sm := newSessionManager(t)
	store := sessions.New(db)
	handler := logout.NewHandler(sm, nil, store, zap.NewNop())

	// Issue a cookie carrying the session token.
	setup := httptest.NewRecorder()
	if err := sm.SetToken(setup, httptest.NewRequest("GET", "/", nil), sess.Token); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/logout", nil)
	for _, c := range setup.Result().Cookies() {
		req.AddCookie(c)
	}
	handler.ServeLogout(httptest.NewRecorder(), req)

	if _, err := store.GetValid(context.Background(), sess.Token); err != sessions.ErrNotFound {
		t.Errorf("GetValid after logout: err = %v, want ErrNotFound", err)
	}
}
