package auth_test

import (
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
	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/dalemusser/scratchstarter/internal/testutil"
	"go.uber.org/zap"
)

const testBaseURL = "http://localhost:8080"

func newTestSessionManager(t *testing.T) *auth.SessionManager {
	t.Helper()
	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "scratch-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return sm
}

func testStores(h *database.Handle) auth.Stores {
	return auth.Stores{
		Users:         userstore.New(h),
		Accounts:      accounts.New(h),
		Sessions:      sessionstore.New(h),
		Verifications: verifications.New(h),
	}
}

type testEnv struct {
	h      *database.Handle
	engine *auth.Engine
	router http.Handler
}

func newTestEngine(t *testing.T, opts auth.Options, plugins ...auth.Plugin) *testEnv {
	t.Helper()
	h := testutil.SetupTestDB(t)
	if opts.BaseURL == "" {
		opts.BaseURL = testBaseURL
	}
	e, err := auth.New(opts, testStores(h), newTestSessionManager(t), nil, zap.NewNop(), plugins...)
	if err != nil {
		t.Fatalf("auth.New: %v", err)
	}
	mux := http.NewServeMux()
	mux.Handle(e.Options().BasePath+"/", http.StripPrefix(e.Options().BasePath, e.Routes()))
	return &testEnv{h: h, engine: e, router: mux}
}

// do sends a request through the engine and carries cookies in both
// directions.
func (env *testEnv) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "scratch-session" {
			return c
		}
	}
	t.Fatalf("response set no session cookie")
	return nil
}

// cookieFor mints a signed cookie carrying token.
func cookieFor(t *testing.T, sm *auth.SessionManager, token string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	if err := sm.SetToken(rec, httptest.NewRequest(http.MethodGet, "/", nil), token); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	return sessionCookie(t, rec)
}
