// Package billing mirrors Stripe subscriptions into the subscriptions table
// and starts Checkout sessions for plan upgrades.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/scratchstarter/internal/app/store/subscriptions"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/checkout/session"
	"go.uber.org/zap"
)

// Plan is a purchasable subscription tier.
type Plan struct {
	Name          string         `json:"name" yaml:"name"`
	PriceID       string         `json:"priceId" yaml:"price_id"`
	AnnualPriceID string         `json:"annualPriceId,omitempty" yaml:"annual_price_id"`
	Title         string         `json:"title" yaml:"title"`
	Description   string         `json:"description,omitempty" yaml:"description"`
	Price         string         `json:"price,omitempty" yaml:"price"`
	Features      []string       `json:"features,omitempty" yaml:"features"`
	Limits        map[string]int `json:"limits,omitempty" yaml:"limits"`
}

// ErrNoWebhookSecret is returned by New when no Stripe webhook signing
// secret is configured.
var ErrNoWebhookSecret = errors.New("billing: STRIPE_WEBHOOK_SECRET is required")

// Store is the subscription persistence the plugin needs.
type Store interface {
	Upsert(ctx context.Context, sub subscriptions.Subscription) (subscriptions.Subscription, error)
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*subscriptions.Subscription, error)
	GetActiveByUser(ctx context.Context, userID string) (*subscriptions.Subscription, error)
}

// CheckoutCreator starts a Stripe Checkout session.
type CheckoutCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Plugin serves the subscription endpoints.
type Plugin struct {
	WebhookSecret string
	Plans         []Plan
	Store         Store
	Checkout      CheckoutCreator

	e   *auth.Engine
	log *zap.Logger
}

// New returns a plugin using the Stripe API with secretKey. Webhook events
// are verified against webhookSecret, which must be set.
func New(secretKey, webhookSecret string, plans []Plan, store Store) (*Plugin, error) {
	if webhookSecret == "" {
		return nil, ErrNoWebhookSecret
	}
	return &Plugin{
		WebhookSecret: webhookSecret,
		Plans:         plans,
		Store:         store,
		Checkout:      &session.Client{B: stripe.GetBackend(stripe.APIBackend), Key: secretKey},
	}, nil
}

func (p *Plugin) ID() string { return "stripe" }

func (p *Plugin) Mount(r chi.Router, e *auth.Engine) {
	p.e = e
	p.log = e.Log()
	r.Post("/stripe/webhook", p.webhook)
	r.Get("/subscription/plans", p.listPlans)
	r.Get("/subscription/active", p.active)
	r.Post("/subscription/upgrade", p.upgrade)
}

// PlanByName returns the plan called name.
func (p *Plugin) PlanByName(name string) (Plan, bool) {
	for _, pl := range p.Plans {
		if strings.EqualFold(pl.Name, name) {
			return pl, true
		}
	}
	return Plan{}, false
}

// PlanByPrice returns the plan billed with priceID, monthly or annual.
func (p *Plugin) PlanByPrice(priceID string) (Plan, bool) {
	if priceID == "" {
		return Plan{}, false
	}
	for _, pl := range p.Plans {
		if pl.PriceID == priceID || pl.AnnualPriceID == priceID {
			return pl, true
		}
	}
	return Plan{}, false
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /subscription/plans                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (p *Plugin) listPlans(w http.ResponseWriter, r *http.Request) {
	plans := p.Plans
	if plans == nil {
		plans = []Plan{}
	}
	auth.WriteJSON(w, http.StatusOK, plans)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /subscription/active                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (p *Plugin) active(w http.ResponseWriter, r *http.Request) {
	u, err := p.e.Facade().RequireAuth(r)
	if err != nil {
		auth.WriteError(w, auth.NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required."))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	sub, err := p.Store.GetActiveByUser(ctx, u.ID)
	if errors.Is(err, subscriptions.ErrNotFound) {
		auth.WriteJSON(w, http.StatusOK, nil)
		return
	}
	if err != nil {
		p.log.Error("load active subscription", zap.String("user_id", u.ID), zap.Error(err))
		auth.WriteError(w, err)
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]any{
		"plan":              sub.Plan,
		"status":            sub.Status,
		"periodEnd":         sub.PeriodEnd,
		"cancelAtPeriodEnd": sub.CancelAtPeriodEnd,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /subscription/upgrade                                                   |
| Starts a Checkout session for the named plan and hands back its URL.        |
*─────────────────────────────────────────────────────────────────────────────*/

type upgradeRequest struct {
	Plan       string `json:"plan"`
	Annual     bool   `json:"annual"`
	SuccessURL string `json:"successUrl"`
	CancelURL  string `json:"cancelUrl"`
}

func (p *Plugin) upgrade(w http.ResponseWriter, r *http.Request) {
	u, err := p.e.Facade().RequireAuth(r)
	if err != nil {
		auth.WriteError(w, auth.NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required."))
		return
	}

	var req upgradeRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			auth.WriteError(w, auth.NewAPIError(http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON."))
			return
		}
	} else {
		_ = r.ParseForm()
		req.Plan = r.PostFormValue("plan")
		req.Annual = r.PostFormValue("annual") == "true"
		req.SuccessURL = r.PostFormValue("successUrl")
		req.CancelURL = r.PostFormValue("cancelUrl")
	}

	plan, ok := p.PlanByName(req.Plan)
	if !ok {
		auth.WriteError(w, auth.NewAPIError(http.StatusBadRequest, "PLAN_NOT_FOUND", "Unknown plan."))
		return
	}

	priceID := plan.PriceID
	if req.Annual {
		if plan.AnnualPriceID == "" {
			auth.WriteError(w, auth.NewAPIError(http.StatusBadRequest, "PLAN_NOT_FOUND", "This plan has no annual billing."))
			return
		}
		priceID = plan.AnnualPriceID
	}

	base := strings.TrimRight(p.e.Options().BaseURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(u.ID),
		CustomerEmail:     stripe.String(u.Email),
		SuccessURL:        stripe.String(base + auth.SafeLocalPath(req.SuccessURL, p.e.Options().DefaultCallback)),
		CancelURL:         stripe.String(base + auth.SafeLocalPath(req.CancelURL, p.e.Options().DefaultCallback)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
	}
	params.AddMetadata("plan", plan.Name)
	params.AddMetadata("userId", u.ID)

	cs, err := p.Checkout.New(params)
	if err != nil {
		p.log.Error("create checkout session", zap.String("plan", plan.Name), zap.Error(err))
		auth.WriteError(w, auth.NewAPIError(http.StatusBadGateway, "CHECKOUT_FAILED", "Could not start checkout."))
		return
	}

	p.e.Audit().CheckoutStarted(r.Context(), r, u.ID, plan.Name)
	if auth.WantsJSON(r) {
		auth.WriteJSON(w, http.StatusOK, map[string]any{"url": cs.URL, "redirect": true})
		return
	}
	http.Redirect(w, r, cs.URL, http.StatusSeeOther)
}

// errUnhandled marks webhook events the plugin ignores.
var errUnhandled = errors.New("unhandled event type")

func (p *Plugin) apply(ctx context.Context, event stripe.Event) error {
	switch event.Type {
	case "checkout.session.completed":
		var cs stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
			return fmt.Errorf("decode checkout session: %w", err)
		}
		return p.applyCheckout(ctx, &cs)

	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("decode subscription: %w", err)
		}
		return p.applySubscription(ctx, &sub)
	}
	return errUnhandled
}

func (p *Plugin) applyCheckout(ctx context.Context, cs *stripe.CheckoutSession) error {
	if cs.Subscription == nil || cs.Subscription.ID == "" {
		return nil
	}
	userID := cs.ClientReferenceID
	if userID == "" {
		userID = cs.Metadata["userId"]
	}
	if userID == "" {
		return errors.New("checkout session has no user reference")
	}

	row := subscriptions.Subscription{
		ReferenceID:          userID,
		Plan:                 cs.Metadata["plan"],
		Status:               subscriptions.StatusActive,
		StripeSubscriptionID: cs.Subscription.ID,
	}
	if cs.Customer != nil {
		row.StripeCustomerID = cs.Customer.ID
	}
	if existing, err := p.Store.GetByStripeID(ctx, row.StripeSubscriptionID); err == nil {
		// A subscription event may have arrived first with fresher state.
		existing.ReferenceID = userID
		if existing.Plan == "" {
			existing.Plan = row.Plan
		}
		row = *existing
	} else if !errors.Is(err, subscriptions.ErrNotFound) {
		return err
	}

	if _, err := p.Store.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	p.e.Audit().SubscriptionChanged(ctx, userID, row.Plan, row.Status)
	return nil
}

func (p *Plugin) applySubscription(ctx context.Context, sub *stripe.Subscription) error {
	row := subscriptions.Subscription{StripeSubscriptionID: sub.ID}
	existing, err := p.Store.GetByStripeID(ctx, sub.ID)
	switch {
	case err == nil:
		row = *existing
	case errors.Is(err, subscriptions.ErrNotFound):
		row.ReferenceID = sub.Metadata["userId"]
	default:
		return err
	}
	if row.ReferenceID == "" {
		// Nothing ties this subscription to a user yet; checkout completion will.
		p.log.Info("subscription event before checkout completion", zap.String("subscription", sub.ID))
		return nil
	}

	row.Status = string(sub.Status)
	row.PeriodStart = sub.CurrentPeriodStart
	row.PeriodEnd = sub.CurrentPeriodEnd
	row.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
	if sub.Customer != nil {
		row.StripeCustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		if plan, ok := p.PlanByPrice(sub.Items.Data[0].Price.ID); ok {
			row.Plan = plan.Name
		}
	}

	if _, err := p.Store.Upsert(ctx, row); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	p.e.Audit().SubscriptionChanged(ctx, row.ReferenceID, row.Plan, row.Status)
	return nil
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, 1<<16))
}
