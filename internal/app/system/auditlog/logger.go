// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/store/audit"
	"github.com/dalemusser/scratchstarter/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Destinations for a category.
const (
	All = "all" // database + zap
	DB  = "db"
	Log = "log"
	Off = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls logging for sign-in, sign-up, sign-out, and OAuth events.
	// Values: "all" (database + zap), "db" (database only), "log" (zap only), "off" (disabled)
	Auth string
	// Billing controls logging for checkout and subscription events.
	Billing string
}

// Store persists audit events.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to both the database (via audit.Store) and structured logs (via zap).
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	return ratelimit.ClientIP(r)
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.UserID != "" {
		fields = append(fields, zap.String("user_id", event.UserID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryBilling:
		setting = l.config.Billing
	default:
		setting = All
	}
	if setting == "" {
		setting = All
	}
	if setting == Off {
		return
	}

	if setting == All || setting == Log {
		l.logToZap(event)
	}
	if (setting == All || setting == DB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func (l *Logger) authEvent(ctx context.Context, r *http.Request, eventType, userID string, success bool, reason string, details map[string]string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     eventType,
		UserID:        userID,
		IP:            ClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       success,
		FailureReason: reason,
		Details:       details,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Authentication events                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// SignUp logs a new email/password registration.
func (l *Logger) SignUp(ctx context.Context, r *http.Request, userID, email string) {
	l.authEvent(ctx, r, audit.EventSignUp, userID, true, "", map[string]string{"email": email})
}

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID, method string) {
	l.authEvent(ctx, r, audit.EventLoginSuccess, userID, true, "", map[string]string{"auth_method": method})
}

// LoginFailedUserNotFound logs a failed login due to user not found.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedEmail string) {
	l.authEvent(ctx, r, audit.EventLoginFailedUserNotFound, "", false, "user not found",
		map[string]string{"attempted_email": attemptedEmail})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID string) {
	l.authEvent(ctx, r, audit.EventLoginFailedWrongPassword, userID, false, "wrong password", nil)
}

// LoginFailedRateLimit logs a login refused by the rate limiter.
func (l *Logger) LoginFailedRateLimit(ctx context.Context, r *http.Request, email string) {
	l.authEvent(ctx, r, audit.EventLoginFailedRateLimit, "", false, "rate limited",
		map[string]string{"email": email})
}

// CaptchaFailed logs a request rejected by the captcha check.
func (l *Logger) CaptchaFailed(ctx context.Context, r *http.Request, reason string) {
	l.authEvent(ctx, r, audit.EventLoginFailedCaptcha, "", false, reason,
		map[string]string{"path": r.URL.Path})
}

// OAuthLogin logs a sign-in through a social provider.
func (l *Logger) OAuthLogin(ctx context.Context, r *http.Request, userID, provider string) {
	l.authEvent(ctx, r, audit.EventOAuthLogin, userID, true, "", map[string]string{"provider": provider})
}

// OneTapLogin logs a sign-in through Google One Tap.
func (l *Logger) OneTapLogin(ctx context.Context, r *http.Request, userID string) {
	l.authEvent(ctx, r, audit.EventOneTapLogin, userID, true, "", nil)
}

// Logout logs a sign-out.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID string) {
	l.authEvent(ctx, r, audit.EventLogout, userID, true, "", nil)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Billing events                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// CheckoutStarted logs a checkout session created for a plan.
func (l *Logger) CheckoutStarted(ctx context.Context, r *http.Request, userID, plan string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryBilling,
		EventType: audit.EventCheckoutStarted,
		UserID:    userID,
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"plan": plan},
	})
}

// SubscriptionChanged logs a subscription written from a webhook.
func (l *Logger) SubscriptionChanged(ctx context.Context, userID, plan, status string) {
	eventType := audit.EventSubscriptionUpdated
	if status == "canceled" {
		eventType = audit.EventSubscriptionCanceled
	}
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryBilling,
		EventType: eventType,
		UserID:    userID,
		Success:   true,
		Details:   map[string]string{"plan": plan, "status": status},
	})
}
