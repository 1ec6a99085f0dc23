// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scratch"

var (
	// SessionLookups counts session resolutions by outcome
	// (authenticated, unauthenticated, backend_unavailable).
	SessionLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "session_lookups_total",
		Help:      "Session lookups by outcome.",
	}, []string{"status"})

	// SignIns counts sign-in attempts by method and outcome.
	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "sign_ins_total",
		Help:      "Sign-in attempts by method and outcome.",
	}, []string{"method", "outcome"})

	// CaptchaVerifications counts Turnstile checks by outcome.
	CaptchaVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "captcha_verifications_total",
		Help:      "Captcha verifications by outcome.",
	}, []string{"outcome"})

	// WebhookEvents counts Stripe webhook deliveries by event type.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Stripe webhook events by type and outcome.",
	}, []string{"type", "outcome"})

	// ContentEntries reports the number of loaded entries per collection.
	ContentEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "content",
		Name:      "entries",
		Help:      "Loaded content entries per collection.",
	}, []string{"collection"})

	// RequestDuration observes HTTP handling time by route pattern.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "code"})
)

// Instrument records RequestDuration for every request. The route label is
// the matched chi pattern so path parameters do not explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RequestDuration.WithLabelValues(r.Method, route, strconv.Itoa(status/100)+"xx").
			Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
