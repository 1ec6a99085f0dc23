package envresolve

// Variable names read from the Snapshot.
const (
	DatabaseURL          = "DATABASE_URL"
	DatabaseAuthToken    = "DATABASE_AUTH_TOKEN"
	HyperdriveConnString = "HYPERDRIVE_CONNECTION_STRING"

	GoogleClientID       = "GOOGLE_CLIENT_ID"
	GoogleClientSecret   = "GOOGLE_CLIENT_SECRET"
	PublicGoogleClientID = "PUBLIC_GOOGLE_CLIENT_ID"

	StripeSecretKey     = "STRIPE_SECRET_KEY"
	StripeWebhookSecret = "STRIPE_WEBHOOK_SECRET"

	TurnstileSecretKey = "TURNSTILE_SECRET_KEY"
	TurnstileSiteKey   = "PUBLIC_TURNSTILE_SITE_KEY"

	PublicBaseURL = "PUBLIC_BASE_URL"
)
