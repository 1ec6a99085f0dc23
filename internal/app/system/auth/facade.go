package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	sessionstore "github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// SessionReader loads unexpired sessions by token.
type SessionReader interface {
	GetValid(ctx context.Context, token string) (*sessionstore.Session, error)
}

// UserReader loads users by id.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*userstore.User, error)
}

// Facade answers "who is making this request" for the rest of the
// application. It is built once at startup and shared by every handler.
type Facade struct {
	sm        *SessionManager
	sessions  SessionReader
	users     UserReader
	log       *zap.Logger
	loginPath string
}

// NewFacade wires the session cookie to the session and user stores.
func NewFacade(sm *SessionManager, sessions SessionReader, users UserReader, logger *zap.Logger) *Facade {
	return &Facade{sm: sm, sessions: sessions, users: users, log: logger, loginPath: "/auth/login"}
}

// SessionManager returns the cookie manager.
func (f *Facade) SessionManager() *SessionManager { return f.sm }

type ctxKey string

const resultKey ctxKey = "authResult"

// Lookup resolves the session bound to the request. When LoadSessionUser
// already ran for this request the stored result is returned without
// touching the database again.
func (f *Facade) Lookup(r *http.Request) Result {
	if res, ok := r.Context().Value(resultKey).(Result); ok {
		return res
	}
	res := f.lookup(r)
	metrics.SessionLookups.WithLabelValues(res.Status.String()).Inc()
	return res
}

func (f *Facade) lookup(r *http.Request) Result {
	token := f.sm.Token(r)
	if token == "" {
		return Result{Status: Unauthenticated}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	sess, err := f.sessions.GetValid(ctx, token)
	if errors.Is(err, sessionstore.ErrNotFound) {
		return Result{Status: Unauthenticated}
	}
	if err != nil {
		f.log.Warn("session lookup failed", zap.Error(err))
		return Result{Status: BackendUnavailable, Err: err}
	}

	u, err := f.users.GetByID(ctx, sess.UserID)
	if errors.Is(err, userstore.ErrNotFound) {
		return Result{Status: Unauthenticated}
	}
	if err != nil {
		f.log.Warn("session user lookup failed", zap.String("user_id", sess.UserID), zap.Error(err))
		return Result{Status: BackendUnavailable, Err: err}
	}

	return Result{Status: Authenticated, User: fromUserRow(u), Session: fromSessionRow(sess)}
}

// GetCurrentUser returns the signed-in user. A request without a session
// and a request whose lookup failed both report false.
func (f *Facade) GetCurrentUser(r *http.Request) (*User, bool) {
	res := f.Lookup(r)
	if res.Status != Authenticated {
		return nil, false
	}
	return res.User, true
}

// RequireAuth returns the signed-in user or ErrAuthRequired.
func (f *Facade) RequireAuth(r *http.Request) (*User, error) {
	u, ok := f.GetCurrentUser(r)
	if !ok {
		return nil, ErrAuthRequired
	}
	return u, nil
}

// GetSession returns the session record for the request.
func (f *Facade) GetSession(r *http.Request) (*Session, bool) {
	res := f.Lookup(r)
	if res.Status != Authenticated {
		return nil, false
	}
	return res.Session, true
}

// LoadSessionUser performs one lookup per request and stores the result in
// the request context, where CurrentUser and Lookup find it.
func (f *Facade) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := f.Lookup(r)
		next.ServeHTTP(w, withResult(r, res))
	})
}

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to the login page with ?return=...
//   - HTML: 303 redirect to the login page with ?return=...
//   - API:  401 Unauthorized with a plain error body.
func (f *Facade) RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := f.RequireAuth(r); err == nil {
			next.ServeHTTP(w, r)
			return
		}

		dest := f.loginPath + "?return=" + url.QueryEscape(r.URL.RequestURI())

		if r.Header.Get("HX-Request") == "true" {
			w.Header().Set("HX-Redirect", dest)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if wantsHTML(r) {
			http.Redirect(w, r, dest, http.StatusSeeOther)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

// CurrentUser returns the user stored by LoadSessionUser.
func CurrentUser(r *http.Request) (*User, bool) {
	res, ok := r.Context().Value(resultKey).(Result)
	if !ok || res.Status != Authenticated {
		return nil, false
	}
	return res.User, true
}

// WithTestUser injects an authenticated user, bypassing the session cookie.
func WithTestUser(r *http.Request, u *User) *http.Request {
	return withResult(r, Result{Status: Authenticated, User: u, Session: &Session{UserID: u.ID}})
}

func withResult(r *http.Request, res Result) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), resultKey, res))
}

func wantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
