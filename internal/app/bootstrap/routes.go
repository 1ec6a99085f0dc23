// internal/app/bootstrap/routes.go
package bootstrap

import (
	"crypto/sha256"
	"net/http"
	"net/url"

	accountfeature "github.com/dalemusser/scratchstarter/internal/app/features/account"
	authpagesfeature "github.com/dalemusser/scratchstarter/internal/app/features/authpages"
	blogfeature "github.com/dalemusser/scratchstarter/internal/app/features/blog"
	errorsfeature "github.com/dalemusser/scratchstarter/internal/app/features/errors"
	healthfeature "github.com/dalemusser/scratchstarter/internal/app/features/health"
	homefeature "github.com/dalemusser/scratchstarter/internal/app/features/home"
	localefeature "github.com/dalemusser/scratchstarter/internal/app/features/locale"
	logoutfeature "github.com/dalemusser/scratchstarter/internal/app/features/logout"
	pagesfeature "github.com/dalemusser/scratchstarter/internal/app/features/pages"
	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	"github.com/dalemusser/scratchstarter/internal/app/store/audit"
	sessionstore "github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	"github.com/dalemusser/scratchstarter/internal/app/store/subscriptions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/store/verifications"
	"github.com/dalemusser/scratchstarter/internal/app/system/auditlog"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth/billing"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth/captcha"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth/onetap"
	"github.com/dalemusser/scratchstarter/internal/app/system/envresolve"
	"github.com/dalemusser/scratchstarter/internal/app/system/i18n"
	"github.com/dalemusser/scratchstarter/internal/app/system/layout"
	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/dalemusser/scratchstarter/internal/app/system/ratelimit"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
	"github.com/dalemusser/scratchstarter/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// The router is split in two. The auth API under /api/auth checks request
// origins itself and receives Stripe webhooks, so it sits outside the CSRF
// group. Every browser page sits inside it.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	site := appCfg.Site
	secure := coreCfg.Env == "prod"

	if err := ratelimit.TrustProxies(appCfg.TrustedProxies); err != nil {
		logger.Error("trusted proxies invalid", zap.Error(err))
		return nil, err
	}

	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, site.SessionCookieName(), appCfg.SessionDomain, appCfg.SessionTTL, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Initialize and boot the template engine once at startup.
	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	// Stores
	users := userstore.New(deps.Handle)
	accts := accounts.New(deps.Handle)
	sessions := sessionstore.New(deps.Handle)
	verifs := verifications.New(deps.Handle)
	subs := subscriptions.New(deps.Handle)

	auditLog := auditlog.New(audit.New(deps.Handle), logger, auditlog.Config{
		Auth:    appCfg.AuditLogAuth,
		Billing: appCfg.AuditLogBilling,
	})

	engine, err := auth.New(authOptions(appCfg, deps.Env),
		auth.Stores{Users: users, Accounts: accts, Sessions: sessions, Verifications: verifs},
		sessionMgr, auditLog, logger, authPlugins(site, deps.Env, subs, logger)...)
	if err != nil {
		logger.Error("auth engine init failed", zap.Error(err))
		return nil, err
	}
	facade := engine.Facade()

	locales := i18n.NewResolver(site)
	composer := layout.New(site, locales)
	logger.Info("layout composed", zap.Strings("stages", composer.Active()))

	content := contentFacade()

	errorsHandler := errorsfeature.NewHandler()

	r := chi.NewRouter()
	r.Use(metrics.Instrument)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.Handle, string(deps.Handle.Kind), logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler())

	// Static assets with pre-compressed file support (gzip/brotli)
	r.Handle("/static/*", fileserver.Handler("/static", "public"))

	// Auth API
	r.Mount(engine.Options().BasePath, engine.Routes())

	// Browser pages
	r.Group(func(pr chi.Router) {
		pr.Use(csrfMiddleware(appCfg, secure, errorsHandler))
		pr.Use(facade.LoadSessionUser)
		pr.Use(composer.Wrap)

		homeHandler := homefeature.NewHandler(content, logger)
		pr.Mount("/", homefeature.Routes(homeHandler))

		if content != nil {
			blogHandler := blogfeature.NewHandler(content, logger)
			pr.Mount("/blog", blogfeature.Routes(blogHandler))

			pagesHandler := pagesfeature.NewHandler(content, logger)
			pr.Mount("/page", pagesfeature.Routes(pagesHandler))
		}

		authPages := authpagesfeature.NewHandler(authPageOptions(appCfg, engine.Options(), deps.Env), logger)
		pr.Mount("/auth", authpagesfeature.Routes(authPages))

		accountHandler := accountfeature.NewHandler(accts, subs, users, logger)
		pr.Mount("/account", accountfeature.Routes(accountHandler, facade))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLog, sessions, logger)
		pr.Mount("/logout", logoutfeature.Routes(logoutHandler, facade))

		localeHandler := localefeature.NewHandler(locales, logger)
		pr.Mount("/locale", localefeature.Routes(localeHandler))

		// Error pages
		pr.Get("/forbidden", errorsHandler.Forbidden)
		pr.Get("/unauthorized", errorsHandler.Unauthorized)
		pr.NotFound(errorsHandler.NotFound)
	})

	startCleanup(appCfg, logger, sessions, verifs, engine.Limiter())

	return r, nil
}

// authOptions maps configuration and secrets onto the auth engine options.
// Google sign-in is offered only when both OAuth values are present.
func authOptions(appCfg AppConfig, env envresolve.Snapshot) auth.Options {
	opts := auth.Options{
		BaseURL:           appCfg.Site.BaseURL,
		EmailPassword:     appCfg.EmailPassword,
		MinPasswordLength: appCfg.MinPasswordLength,
		TrustedOrigins:    appCfg.TrustedOrigins,
	}
	id, secret := env.Get(envresolve.GoogleClientID), env.Get(envresolve.GoogleClientSecret)
	if id != "" && secret != "" {
		opts.Google = &auth.GoogleOptions{ClientID: id, ClientSecret: secret}
	}
	return opts
}

// authPlugins registers One Tap, Turnstile and Stripe when their keys are
// present. Billing also needs plans in the site record.
func authPlugins(site siteconfig.Config, env envresolve.Snapshot, subs *subscriptions.Store, logger *zap.Logger) []auth.Plugin {
	var plugins []auth.Plugin

	if id := oneTapClientID(env); id != "" {
		plugins = append(plugins, onetap.New(id))
	}
	if key := env.Get(envresolve.TurnstileSecretKey); key != "" {
		plugins = append(plugins, captcha.New(key))
	}
	if site.BillingEnabled() {
		key := env.Get(envresolve.StripeSecretKey)
		if key == "" {
			logger.Warn("billing plans configured but STRIPE_SECRET_KEY is not set; billing disabled")
		} else if p, err := billing.New(key, env.Get(envresolve.StripeWebhookSecret), billingPlans(site), subs); err != nil {
			logger.Warn("billing disabled", zap.Error(err))
		} else {
			plugins = append(plugins, p)
		}
	}
	return plugins
}

func billingPlans(site siteconfig.Config) []billing.Plan {
	plans := make([]billing.Plan, 0, len(site.Billing.Plans))
	for _, p := range site.Billing.Plans {
		plans = append(plans, billing.Plan{
			Name:          p.Name,
			PriceID:       p.PriceID,
			AnnualPriceID: p.AnnualPriceID,
			Title:         p.Name,
			Price:         p.Price,
			Features:      p.Features,
			Limits:        p.Limits,
		})
	}
	return plans
}

func oneTapClientID(env envresolve.Snapshot) string {
	if id := env.Get(envresolve.PublicGoogleClientID); id != "" {
		return id
	}
	return env.Get(envresolve.GoogleClientID)
}

func authPageOptions(appCfg AppConfig, opts auth.Options, env envresolve.Snapshot) authpagesfeature.Options {
	return authpagesfeature.Options{
		APIBase:           opts.BasePath,
		EmailPassword:     opts.EmailPassword,
		GoogleEnabled:     opts.Google != nil,
		OneTapClientID:    oneTapClientID(env),
		TurnstileSiteKey:  env.Get(envresolve.TurnstileSiteKey),
		MinPasswordLength: opts.MinPasswordLength,
		DefaultReturn:     opts.DefaultCallback,
	}
}

// csrfMiddleware protects page forms. The token key is derived from the
// session key so tokens survive restarts.
func csrfMiddleware(appCfg AppConfig, secure bool, errorsHandler *errorsfeature.Handler) func(http.Handler) http.Handler {
	key := sha256.Sum256([]byte("csrf:" + appCfg.SessionKey))
	protect := csrf.Protect(key[:],
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.TrustedOrigins(originHosts(appCfg.TrustedOrigins)),
		csrf.ErrorHandler(http.HandlerFunc(errorsHandler.Forbidden)),
	)
	return func(next http.Handler) http.Handler {
		h := protect(next)
		if secure {
			return h
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

// originHosts reduces configured origins to the host[:port] form the CSRF
// referer check compares against.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		} else {
			hosts = append(hosts, o)
		}
	}
	return hosts
}

func startCleanup(appCfg AppConfig, logger *zap.Logger, sessions *sessionstore.Store, verifs *verifications.Store, limiter workers.Sweeper) {
	w := workers.NewSessionCleanup(map[string]workers.Pruner{
		"sessions":      sessions,
		"verifications": verifs,
	}, logger, appCfg.CleanupInterval, limiter)
	w.Start()

	state.mu.Lock()
	prev := state.cleanup
	state.cleanup = w
	state.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}
