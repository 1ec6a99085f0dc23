// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - The env flag ("dev" or "prod")
//
// AppConfig carries what is specific to the site:
//   - Where the site record and local secrets live
//   - Which database engine to open
//   - Session cookie settings
//   - Audit logging destinations and background cleanup cadence
//
// Secrets (database URLs, OAuth, Stripe and Turnstile keys) are not read
// here. They come from the environment snapshot built in ConnectDB.
type AppConfig struct {
	// Site record
	SiteConfigPath string            // YAML site file (default site.yaml; missing file keeps built-in defaults)
	Site           siteconfig.Config // loaded record, read-only after LoadConfig
	BaseURL        string            // overrides the site record's base_url when set

	// Secrets and persistence
	SecretsFile string        // dotenv file read in development (default .dev.vars)
	DBKind      database.Kind // networked or embedded

	// Session management
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionTTL    time.Duration // Server-side session lifetime

	// Content
	ContentDir string // Root of the blog/ and page/ collections

	// Sign-in
	EmailPassword     bool
	MinPasswordLength int
	TrustedOrigins    []string
	TrustedProxies    []string // peers allowed to set X-Forwarded-For

	// Audit logging
	AuditLogAuth    string
	AuditLogBilling string

	// Background cleanup of expired sessions and verification rows
	CleanupInterval time.Duration
}
