package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	sessionstore "github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/system/auditlog"
	"github.com/dalemusser/scratchstarter/internal/app/system/ratelimit"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// UserStore is the user persistence the engine needs.
type UserStore interface {
	UserReader
	Create(ctx context.Context, u userstore.User) (userstore.User, error)
	GetByEmail(ctx context.Context, email string) (*userstore.User, error)
	Delete(ctx context.Context, id string) error
}

// AccountStore is the account persistence the engine needs.
type AccountStore interface {
	Link(ctx context.Context, a accounts.Account) (accounts.Account, error)
	GetByProvider(ctx context.Context, providerID, accountID string) (*accounts.Account, error)
	GetPasswordHash(ctx context.Context, userID string) (string, error)
}

// SessionStore is the session persistence the engine needs.
type SessionStore interface {
	SessionReader
	Create(ctx context.Context, userID string, ttl time.Duration, ip, userAgent string) (sessionstore.Session, error)
	Extend(ctx context.Context, token string, expiresAt time.Time) error
	Delete(ctx context.Context, token string) error
}

// VerificationStore holds one-time values such as OAuth state.
type VerificationStore interface {
	Save(ctx context.Context, identifier, value string, expiresAt time.Time) error
	Consume(ctx context.Context, identifier string) (string, bool, error)
}

// Stores groups the engine's persistence.
type Stores struct {
	Users         UserStore
	Accounts      AccountStore
	Sessions      SessionStore
	Verifications VerificationStore
}

// GoogleOptions enables Google sign-in. Endpoint and UserInfoURL default to
// Google's production endpoints.
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
}

// Options configure the engine. They are fixed for the process lifetime.
type Options struct {
	BaseURL           string // absolute site URL, used for OAuth redirects and origin checks
	BasePath          string // mount point, default /api/auth
	EmailPassword     bool
	Google            *GoogleOptions
	MinPasswordLength int
	TrustedOrigins    []string
	SignInPage        string // browser error redirects, default /auth/login
	SignUpPage        string // default /auth/register
	DefaultCallback   string // default /account
}

// Plugin adds endpoints to the engine.
type Plugin interface {
	ID() string
	Mount(r chi.Router, e *Engine)
}

// BeforeHook is implemented by plugins that vet requests to engine
// endpoints before the handler runs. Endpoints are paths relative to
// BasePath, e.g. "/sign-in/email".
type BeforeHook interface {
	Endpoints() []string
	Before(w http.ResponseWriter, r *http.Request) error
}

// Engine serves the /api/auth surface. It is built once at startup.
type Engine struct {
	opts    Options
	stores  Stores
	sm      *SessionManager
	facade  *Facade
	audit   *auditlog.Logger
	limiter *ratelimit.LoginLimiter
	log     *zap.Logger

	plugins []Plugin
	hooks   map[string][]BeforeHook
	oauth   *oauth2.Config
	origins map[string]bool
}

// New builds an engine with the given plugins registered in order.
func New(opts Options, stores Stores, sm *SessionManager, audit *auditlog.Logger, logger *zap.Logger, plugins ...Plugin) (*Engine, error) {
	if stores.Users == nil || stores.Accounts == nil || stores.Sessions == nil || stores.Verifications == nil {
		return nil, errors.New("auth: all stores are required")
	}
	if sm == nil {
		return nil, errors.New("auth: session manager is required")
	}
	if opts.BasePath == "" {
		opts.BasePath = "/api/auth"
	}
	if opts.MinPasswordLength <= 0 {
		opts.MinPasswordLength = 8
	}
	if opts.SignInPage == "" {
		opts.SignInPage = "/auth/login"
	}
	if opts.SignUpPage == "" {
		opts.SignUpPage = "/auth/register"
	}
	if opts.DefaultCallback == "" {
		opts.DefaultCallback = "/account"
	}

	e := &Engine{
		opts:    opts,
		stores:  stores,
		sm:      sm,
		facade:  NewFacade(sm, stores.Sessions, stores.Users, logger),
		audit:   audit,
		limiter: ratelimit.NewLoginLimiter(),
		log:     logger,
		hooks:   make(map[string][]BeforeHook),
		origins: make(map[string]bool),
	}
	e.facade.loginPath = opts.SignInPage

	for _, o := range append([]string{opts.BaseURL}, opts.TrustedOrigins...) {
		if key := originKey(o); key != "" {
			e.origins[key] = true
		}
	}

	if g := opts.Google; g != nil {
		e.oauth = googleConfig(g, strings.TrimRight(opts.BaseURL, "/")+opts.BasePath+"/callback/google")
	}

	seen := make(map[string]bool)
	for _, p := range plugins {
		if seen[p.ID()] {
			return nil, fmt.Errorf("auth: plugin %q registered twice", p.ID())
		}
		seen[p.ID()] = true
		e.plugins = append(e.plugins, p)
		if h, ok := p.(BeforeHook); ok {
			for _, ep := range h.Endpoints() {
				e.hooks[ep] = append(e.hooks[ep], h)
			}
		}
	}

	ids := make([]string, 0, len(e.plugins))
	for _, p := range e.plugins {
		ids = append(ids, p.ID())
	}
	logger.Info("auth engine ready",
		zap.Bool("email_password", opts.EmailPassword),
		zap.Bool("google", opts.Google != nil),
		zap.Strings("plugins", ids))
	return e, nil
}

// Facade returns the session lookup facade.
func (e *Engine) Facade() *Facade { return e.facade }

// Options returns the engine options after defaults were applied.
func (e *Engine) Options() Options { return e.opts }

// Stores returns the engine's persistence.
func (e *Engine) Stores() Stores { return e.stores }

// Audit returns the audit logger (may be nil).
func (e *Engine) Audit() *auditlog.Logger { return e.audit }

// Limiter returns the sign-in rate limiter.
func (e *Engine) Limiter() *ratelimit.LoginLimiter { return e.limiter }

// Log returns the engine logger.
func (e *Engine) Log() *zap.Logger { return e.log }

// PluginIDs lists registered plugins in order.
func (e *Engine) PluginIDs() []string {
	out := make([]string, len(e.plugins))
	for i, p := range e.plugins {
		out[i] = p.ID()
	}
	return out
}

// Routes returns the router to mount at Options.BasePath.
func (e *Engine) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(e.checkOrigin)
	r.Use(e.runHooks)

	if e.opts.EmailPassword {
		r.Post("/sign-up/email", e.signUpEmail)
		r.Post("/sign-in/email", e.signInEmail)
	}
	r.Post("/sign-out", e.signOut)
	r.Get("/get-session", e.getSession)
	if e.oauth != nil {
		r.Get("/sign-in/social", e.signInSocial)
		r.Post("/sign-in/social", e.signInSocial)
		r.Get("/callback/google", e.callbackGoogle)
	}

	for _, p := range e.plugins {
		p.Mount(r, e)
	}
	return r
}

// StartSession creates a session for userID and sets the cookie.
func (e *Engine) StartSession(w http.ResponseWriter, r *http.Request, userID string) (*Session, error) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	sess, err := e.stores.Sessions.Create(ctx, userID, e.sm.TTL(), ratelimit.ClientIP(r), r.UserAgent())
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := e.sm.SetToken(w, r, sess.Token); err != nil {
		return nil, fmt.Errorf("set session cookie: %w", err)
	}
	return fromSessionRow(&sess), nil
}

func (e *Engine) checkOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if origin := r.Header.Get("Origin"); origin != "" && !e.origins[originKey(origin)] {
				e.log.Warn("rejected cross-origin auth request",
					zap.String("origin", origin), zap.String("path", r.URL.Path))
				WriteError(w, NewAPIError(http.StatusForbidden, "INVALID_ORIGIN", "Origin not allowed."))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (e *Engine) runHooks(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := strings.TrimPrefix(r.URL.Path, e.opts.BasePath)
		for _, h := range e.hooks[endpoint] {
			if err := h.Before(w, r); err != nil {
				respondError(w, r, e.errorPage(endpoint), err)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (e *Engine) errorPage(endpoint string) string {
	if strings.HasPrefix(endpoint, "/sign-up") {
		return e.opts.SignUpPage
	}
	return e.opts.SignInPage
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /get-session                                                             |
| Returns the current session and user, or null. Sessions past half their     |
| lifetime are extended.                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

func (e *Engine) getSession(w http.ResponseWriter, r *http.Request) {
	res := e.facade.Lookup(r)
	switch res.Status {
	case BackendUnavailable:
		WriteError(w, errBackend)
		return
	case Unauthenticated:
		WriteJSON(w, http.StatusOK, nil)
		return
	}

	ttl := e.sm.TTL()
	if time.Until(res.Session.ExpiresAt) < ttl/2 {
		expires := time.Now().Add(ttl)
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		err := e.stores.Sessions.Extend(ctx, res.Session.Token, expires)
		cancel()
		if err != nil {
			e.log.Warn("session refresh failed", zap.Error(err))
		} else {
			res.Session.ExpiresAt = expires.UTC().Truncate(time.Second)
			_ = e.sm.SetToken(w, r, res.Session.Token)
		}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"session": res.Session, "user": res.User})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /sign-out                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

func (e *Engine) signOut(w http.ResponseWriter, r *http.Request) {
	res := e.facade.Lookup(r)
	if token := e.sm.Token(r); token != "" {
		ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
		if err := e.stores.Sessions.Delete(ctx, token); err != nil {
			e.log.Warn("session delete failed", zap.Error(err))
		}
		cancel()
	}
	if err := e.sm.Clear(w, r); err != nil {
		e.log.Warn("clear session cookie failed", zap.Error(err))
	}
	if res.Status == Authenticated {
		e.audit.Logout(r.Context(), r, res.User.ID)
	}
	respondOK(w, r, "/", map[string]bool{"success": true})
}

func originKey(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
