// Package captcha guards auth endpoints with Cloudflare Turnstile.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/dalemusser/scratchstarter/internal/app/system/ratelimit"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	// SiteverifyURL is Turnstile's verification endpoint.
	SiteverifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

	headerName = "x-captcha-response"
	formField  = "cf-turnstile-response"
)

// DefaultEndpoints are the engine endpoints checked when none are given.
var DefaultEndpoints = []string{"/sign-up/email", "/sign-in/email"}

var (
	errMissing  = auth.NewAPIError(http.StatusBadRequest, "MISSING_CAPTCHA_RESPONSE", "Captcha response is required.")
	errFailed   = auth.NewAPIError(http.StatusForbidden, "CAPTCHA_VERIFICATION_FAILED", "Captcha verification failed.")
	errUpstream = auth.NewAPIError(http.StatusServiceUnavailable, "CAPTCHA_UNAVAILABLE", "Captcha service is unavailable.")
)

// Plugin verifies the captcha token before the listed endpoints run.
type Plugin struct {
	SecretKey string
	Paths     []string

	// Zero values use SiteverifyURL, http.DefaultClient, 3 attempts and a
	// 200ms delay.
	VerifyURL  string
	HTTPClient *http.Client
	Attempts   uint
	Delay      time.Duration

	e   *auth.Engine
	log *zap.Logger
}

// New returns a plugin for secretKey guarding paths (DefaultEndpoints when
// empty).
func New(secretKey string, paths ...string) *Plugin {
	if len(paths) == 0 {
		paths = DefaultEndpoints
	}
	return &Plugin{SecretKey: secretKey, Paths: paths}
}

func (p *Plugin) ID() string { return "captcha" }

// Mount adds no routes; it captures the engine for logging and audit.
func (p *Plugin) Mount(_ chi.Router, e *auth.Engine) {
	p.e = e
	p.log = e.Log()
}

func (p *Plugin) Endpoints() []string {
	if len(p.Paths) == 0 {
		return DefaultEndpoints
	}
	return p.Paths
}

func (p *Plugin) Before(w http.ResponseWriter, r *http.Request) error {
	token := r.Header.Get(headerName)
	if token == "" && !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		token = r.PostFormValue(formField)
	}
	if token == "" {
		p.reject(r, "missing", "captcha response missing")
		return errMissing
	}

	ok, err := p.Verify(r.Context(), token, ratelimit.ClientIP(r))
	if err != nil {
		p.logger().Error("captcha verification unavailable", zap.Error(err))
		metrics.CaptchaVerifications.WithLabelValues("error").Inc()
		return errUpstream
	}
	if !ok {
		p.reject(r, "failure", "captcha rejected")
		return errFailed
	}
	metrics.CaptchaVerifications.WithLabelValues("success").Inc()
	return nil
}

func (p *Plugin) reject(r *http.Request, outcome, reason string) {
	metrics.CaptchaVerifications.WithLabelValues(outcome).Inc()
	if p.e != nil {
		p.e.Audit().CaptchaFailed(r.Context(), r, reason)
	}
}

func (p *Plugin) logger() *zap.Logger {
	if p.log == nil {
		return zap.NewNop()
	}
	return p.log
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

var errRetryable = errors.New("retryable")

// Verify asks Turnstile whether token is valid. Transport failures and 5xx
// answers are retried; an error means no verdict was obtained.
func (p *Plugin) Verify(ctx context.Context, token, remoteIP string) (bool, error) {
	endpoint := p.VerifyURL
	if endpoint == "" {
		endpoint = SiteverifyURL
	}
	client := p.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	attempts := p.Attempts
	if attempts == 0 {
		attempts = 3
	}
	delay := p.Delay
	if delay == 0 {
		delay = 200 * time.Millisecond
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Outbound(), p.logger(), "turnstile verify")
	defer cancel()

	form := url.Values{"secret": {p.SecretKey}, "response": {token}}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	return retry.DoWithData(func() (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return false, retry.Unrecoverable(err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := client.Do(req)
		if err != nil {
			return false, fmt.Errorf("%w: %v", errRetryable, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return false, fmt.Errorf("%w: siteverify status %d", errRetryable, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return false, retry.Unrecoverable(fmt.Errorf("siteverify status %d", resp.StatusCode))
		}

		var out siteverifyResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return false, retry.Unrecoverable(fmt.Errorf("decode siteverify: %w", err))
		}
		if !out.Success {
			p.logger().Info("captcha rejected", zap.Strings("error_codes", out.ErrorCodes))
		}
		return out.Success, nil
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errRetryable) }),
		retry.OnRetry(func(n uint, err error) {
			p.logger().Warn("retrying captcha verification", zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
}
