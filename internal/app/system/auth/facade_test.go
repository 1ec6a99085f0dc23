package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sessionstore "github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/testutil"
	"go.uber.org/zap"
)

type failingSessions struct{ err error }

func (f failingSessions) GetValid(ctx context.Context, token string) (*sessionstore.Session, error) {
	return nil, f.err
}

func TestLookup_NoCookieIsUnauthenticated(t *testing.T) {
	h := testutil.SetupTestDB(t)
	f := auth.NewFacade(newTestSessionManager(t), sessionstore.New(h), userstore.New(h), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	res := f.Lookup(req)
	if res.Status != auth.Unauthenticated {
		t.Errorf("Status = %v, want unauthenticated", res.Status)
	}
	if u, ok := f.GetCurrentUser(req); ok || u != nil {
		t.Errorf("GetCurrentUser = %v, %v", u, ok)
	}
}

func TestLookup_UnknownTokenIsUnauthenticated(t *testing.T) {
	h := testutil.SetupTestDB(t)
	sm := newTestSessionManager(t)
	f := auth.NewFacade(sm, sessionstore.New(h), userstore.New(h), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, sm, "no-such-token"))
	if res := f.Lookup(req); res.Status != auth.Unauthenticated {
		t.Errorf("Status = %v, want unauthenticated", res.Status)
	}
}

func TestLookup_BackendFailureIsDistinct(t *testing.T) {
	h := testutil.SetupTestDB(t)
	sm := newTestSessionManager(t)
	dbErr := errors.New("connection reset")
	f := auth.NewFacade(sm, failingSessions{err: dbErr}, userstore.New(h), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, sm, "some-token"))

	res := f.Lookup(req)
	if res.Status != auth.BackendUnavailable {
		t.Fatalf("Status = %v, want backend_unavailable", res.Status)
	}
	if !errors.Is(res.Err, dbErr) {
		t.Errorf("Err = %v, want %v", res.Err, dbErr)
	}
	if _, ok := f.GetCurrentUser(req); ok {
		t.Error("GetCurrentUser reported a user during an outage")
	}
	if _, err := f.RequireAuth(req); !errors.Is(err, auth.ErrAuthRequired) {
		t.Errorf("RequireAuth err = %v", err)
	}
}

func TestLookup_ValidSession(t *testing.T) {
	h := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, h)
	u := fx.CreateUser(ctx, "Ada", "ada@example.com")
	s := fx.CreateSession(ctx, u.ID, time.Hour)

	sm := newTestSessionManager(t)
	f := auth.NewFacade(sm, sessionstore.New(h), userstore.New(h), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, sm, s.Token))

	got, ok := f.GetCurrentUser(req)
	if !ok {
		t.Fatal("expected a signed-in user")
	}
	if got.ID != u.ID || got.Email != "ada@example.com" {
		t.Errorf("user = %+v", got)
	}
	sess, ok := f.GetSession(req)
	if !ok || sess.UserID != u.ID {
		t.Errorf("session = %+v, %v", sess, ok)
	}
}

func TestLookup_ExpiredSessionIsUnauthenticated(t *testing.T) {
	h := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	fx := testutil.NewFixtures(t, h)
	u := fx.CreateUser(ctx, "Ada", "ada@example.com")
	s := fx.CreateSession(ctx, u.ID, -time.Minute)

	sm := newTestSessionManager(t)
	f := auth.NewFacade(sm, sessionstore.New(h), userstore.New(h), zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, sm, s.Token))
	if res := f.Lookup(req); res.Status != auth.Unauthenticated {
		t.Errorf("Status = %v, want unauthenticated", res.Status)
	}
}

func TestLoadSessionUser_StoresResultOnce(t *testing.T) {
	sm := newTestSessionManager(t)
	calls := 0
	f := auth.NewFacade(sm, countingSessions{calls: &calls}, nil, zap.NewNop())

	var seen bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.Lookup(r)
		f.Lookup(r)
		_, seen = auth.CurrentUser(r)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieFor(t, sm, "tok"))
	f.LoadSessionUser(next).ServeHTTP(httptest.NewRecorder(), req)

	if calls != 1 {
		t.Errorf("session store hit %d times, want 1", calls)
	}
	if seen {
		t.Error("CurrentUser reported a user for an unknown token")
	}
}

type countingSessions struct{ calls *int }

func (c countingSessions) GetValid(ctx context.Context, token string) (*sessionstore.Session, error) {
	*c.calls++
	return nil, sessionstore.ErrNotFound
}

func TestRequireSignedIn(t *testing.T) {
	sm := newTestSessionManager(t)
	f := auth.NewFacade(sm, failingSessions{err: sessionstore.ErrNotFound}, nil, zap.NewNop())
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	guarded := f.RequireSignedIn(ok)

	t.Run("html redirects to login", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/account?tab=1", nil)
		req.Header.Set("Accept", "text/html")
		rec := testutil.NewRecorder()
		guarded.ServeHTTP(rec, req)
		rec.AssertRedirect(t, "/auth/login?return=%2Faccount%3Ftab%3D1")
	})

	t.Run("htmx gets HX-Redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/account", nil)
		req.Header.Set("HX-Request", "true")
		rec := testutil.NewRecorder()
		guarded.ServeHTTP(rec, req)
		rec.AssertStatus(t, http.StatusUnauthorized)
		if got := rec.Header().Get("HX-Redirect"); got != "/auth/login?return=%2Faccount" {
			t.Errorf("HX-Redirect = %q", got)
		}
	})

	t.Run("api gets 401", func(t *testing.T) {
		rec := testutil.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/account", nil))
		rec.AssertStatus(t, http.StatusUnauthorized)
	})

	t.Run("signed in passes", func(t *testing.T) {
		req := testutil.NewAuthenticatedRequest(http.MethodGet, "/account", testutil.SignedInUser())
		rec := testutil.NewRecorder()
		guarded.ServeHTTP(rec, req)
		rec.AssertStatus(t, http.StatusTeapot)
	})
}
