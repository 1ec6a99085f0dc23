// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/dalemusser/scratchstarter/internal/app/system/envresolve"
	"github.com/dalemusser/scratchstarter/internal/app/system/ratelimit"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the site.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: site_config, db_kind, etc.
//   - Environment variables: SCRATCH_SITE_CONFIG, SCRATCH_DB_KIND, etc.
//   - Command-line flags: --site_config, --db_kind, etc.
var appConfigKeys = []config.AppKey{
	{Name: "site_config", Default: "site.yaml", Desc: "Path to the YAML site record"},
	{Name: "base_url", Default: "", Desc: "Absolute site URL; overrides base_url in the site record"},
	{Name: "secrets_file", Default: envresolve.DefaultSecretsFile, Desc: "Dotenv secrets file read in dev mode"},
	{Name: "db_kind", Default: string(database.Embedded), Desc: "Database engine: 'networked' (Postgres) or 'embedded' (libSQL/SQLite)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_ttl", Default: "168h", Desc: "Session lifetime (e.g., 24h, 168h)"},

	{Name: "content_dir", Default: "content", Desc: "Directory holding the blog/ and page/ collections"},

	// Sign-in
	{Name: "email_password", Default: true, Desc: "Enable email and password sign-in"},
	{Name: "min_password_length", Default: 8, Desc: "Minimum password length for sign-up"},
	{Name: "trusted_origins", Default: "", Desc: "Comma-separated extra origins allowed to call the auth API"},
	{Name: "trusted_proxies", Default: "", Desc: "Comma-separated proxy addresses or CIDRs whose X-Forwarded-For is believed"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_billing", Default: "all", Desc: "Billing event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	{Name: "cleanup_interval", Default: "1h", Desc: "How often expired sessions and verifications are deleted"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, SCRATCH_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
//
// The site record is read here too so that ValidateConfig can reject a bad
// one before any connection is attempted.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "SCRATCH", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		SiteConfigPath: appValues.String("site_config"),
		BaseURL:        appValues.String("base_url"),
		SecretsFile:    appValues.String("secrets_file"),
		DBKind:         database.Kind(appValues.String("db_kind")),

		SessionKey:    appValues.String("session_key"),
		SessionDomain: appValues.String("session_domain"),
		SessionTTL:    appValues.Duration("session_ttl", 7*24*time.Hour),

		ContentDir: appValues.String("content_dir"),

		EmailPassword:     appValues.Bool("email_password"),
		MinPasswordLength: appValues.Int("min_password_length"),
		TrustedOrigins:    splitList(appValues.String("trusted_origins")),
		TrustedProxies:    splitList(appValues.String("trusted_proxies")),

		AuditLogAuth:    appValues.String("audit_log_auth"),
		AuditLogBilling: appValues.String("audit_log_billing"),

		CleanupInterval: appValues.Duration("cleanup_interval", time.Hour),
	}

	site, err := siteconfig.Load(appCfg.SiteConfigPath)
	if err != nil {
		return nil, AppConfig{}, err
	}
	if appCfg.BaseURL != "" {
		site.BaseURL = appCfg.BaseURL
	}
	appCfg.Site = site

	logger.Info("site record loaded",
		zap.String("path", appCfg.SiteConfigPath),
		zap.String("base_url", site.BaseURL),
		zap.Strings("locales", site.LocaleCodes()),
		zap.Bool("content", site.ContentEnabled()),
		zap.Bool("billing", site.BillingEnabled()))

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// A default locale that is not among the configured locales stops the
// process here.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := appCfg.Site.Validate(); err != nil {
		logger.Error("invalid site record", zap.String("path", appCfg.SiteConfigPath), zap.Error(err))
		return fmt.Errorf("invalid site record: %w", err)
	}

	if _, err := database.ParseKind(string(appCfg.DBKind)); err != nil {
		return err
	}

	switch appCfg.AuditLogAuth {
	case "all", "db", "log", "off":
	default:
		return fmt.Errorf("audit_log_auth must be all, db, log or off (got %q)", appCfg.AuditLogAuth)
	}
	switch appCfg.AuditLogBilling {
	case "all", "db", "log", "off":
	default:
		return fmt.Errorf("audit_log_billing must be all, db, log or off (got %q)", appCfg.AuditLogBilling)
	}

	if _, err := ratelimit.ParseProxies(appCfg.TrustedProxies); err != nil {
		return err
	}

	if appCfg.SessionTTL <= 0 {
		return fmt.Errorf("session_ttl must be positive")
	}
	if coreCfg != nil && coreCfg.Env == "prod" && strings.HasPrefix(appCfg.SessionKey, "dev-only") {
		return fmt.Errorf("session_key must be set in production")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
