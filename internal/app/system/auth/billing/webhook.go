package billing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| POST /stripe/webhook                                                         |
| Verifies the Stripe-Signature header and applies subscription events.       |
*─────────────────────────────────────────────────────────────────────────────*/

func (p *Plugin) webhook(w http.ResponseWriter, r *http.Request) {
	if p.WebhookSecret == "" {
		p.log.Error("stripe webhook received but no signing secret is configured")
		metrics.WebhookEvents.WithLabelValues("unknown", "no_secret").Inc()
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	payload, err := readBody(r)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if err := webhook.ValidatePayload(payload, r.Header.Get("Stripe-Signature"), p.WebhookSecret); err != nil {
		p.log.Warn("stripe webhook signature rejected", zap.Error(err))
		metrics.WebhookEvents.WithLabelValues("unknown", "bad_signature").Inc()
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil || event.Data == nil {
		metrics.WebhookEvents.WithLabelValues("unknown", "bad_payload").Inc()
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	err = p.apply(ctx, event)
	switch {
	case errors.Is(err, errUnhandled):
		metrics.WebhookEvents.WithLabelValues(event.Type, "ignored").Inc()
	case err != nil:
		p.log.Error("stripe webhook failed",
			zap.String("event_id", event.ID), zap.String("type", event.Type), zap.Error(err))
		metrics.WebhookEvents.WithLabelValues(event.Type, "error").Inc()
		// Non-2xx makes Stripe redeliver.
		http.Error(w, "webhook failed", http.StatusInternalServerError)
		return
	default:
		metrics.WebhookEvents.WithLabelValues(event.Type, "applied").Inc()
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}
