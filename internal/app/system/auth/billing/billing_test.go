package billing_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	sessionstore "github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	"github.com/dalemusser/scratchstarter/internal/app/store/subscriptions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/store/verifications"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth/billing"
	"github.com/dalemusser/scratchstarter/internal/testutil"
	"github.com/stripe/stripe-go/v72"
	"go.uber.org/zap"
)

const whsec = "whsec_test"

var testPlans = []billing.Plan{
	{Name: "basic", PriceID: "price_basic", Title: "Basic"},
	{Name: "pro", PriceID: "price_pro", AnnualPriceID: "price_pro_annual", Title: "Pro"},
}

type fakeCheckout struct {
	got *stripe.CheckoutSessionParams
}

func (f *fakeCheckout) New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.got = params
	return &stripe.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.test/cs_1"}, nil
}

type fixture struct {
	router   http.Handler
	subs     *subscriptions.Store
	checkout *fakeCheckout
}

func setup(t *testing.T) *fixture {
	t.Helper()
	return setupWithSecret(t, whsec)
}

func setupWithSecret(t *testing.T, secret string) *fixture {
	t.Helper()
	h := testutil.SetupTestDB(t)
	subs := subscriptions.New(h)
	checkout := &fakeCheckout{}
	p := &billing.Plugin{WebhookSecret: secret, Plans: testPlans, Store: subs, Checkout: checkout}

	sm, err := auth.NewSessionManager(strings.Repeat("k", 32), "scratch-session", "", time.Hour, false, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	e, err := auth.New(auth.Options{BaseURL: "https://site.test"}, auth.Stores{
		Users:         userstore.New(h),
		Accounts:      accounts.New(h),
		Sessions:      sessionstore.New(h),
		Verifications: verifications.New(h),
	}, sm, nil, zap.NewNop(), p)
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{router: e.Routes(), subs: subs, checkout: checkout}
}

func signedWebhook(t *testing.T, payload string) *http.Request {
	t.Helper()
	return signedWebhookWith(t, whsec, payload)
}

func signedWebhookWith(t *testing.T, secret, payload string) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return req
}

func event(t *testing.T, typ string, object any) string {
	t.Helper()
	raw, err := json.Marshal(object)
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":%s}}`, typ, raw)
}

func TestNew_RequiresWebhookSecret(t *testing.T) {
	if _, err := billing.New("sk_test", "", testPlans, nil); !errors.Is(err, billing.ErrNoWebhookSecret) {
		t.Errorf("New with empty webhook secret: err = %v", err)
	}
	p, err := billing.New("sk_test", whsec, testPlans, nil)
	if err != nil || p.WebhookSecret != whsec {
		t.Errorf("New = %+v, %v", p, err)
	}
}

func TestWebhook_WithoutSecretRejectsEvents(t *testing.T) {
	f := setupWithSecret(t, "")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	forged := event(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_x",
		"object":              "checkout.session",
		"client_reference_id": "user-9",
		"subscription":        "sub_x",
		"metadata":            map[string]string{"plan": "pro"},
	})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, signedWebhookWith(t, "", forged))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
	if _, err := f.subs.GetActiveByUser(ctx, "user-9"); !errors.Is(err, subscriptions.ErrNotFound) {
		t.Errorf("subscription created from unsigned event: %v", err)
	}
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	f := setup(t)
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", strings.NewReader(`{}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestWebhook_CheckoutThenSubscriptionUpdate(t *testing.T) {
	f := setup(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	checkout := event(t, "checkout.session.completed", map[string]any{
		"id":                  "cs_1",
		"object":              "checkout.session",
		"client_reference_id": "user-7",
		"customer":            "cus_7",
		"subscription":        "sub_7",
		"metadata":            map[string]string{"plan": "basic"},
	})
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, signedWebhook(t, checkout))
	if rec.Code != http.StatusOK {
		t.Fatalf("checkout status = %d body=%s", rec.Code, rec.Body)
	}

	got, err := f.subs.GetActiveByUser(ctx, "user-7")
	if err != nil {
		t.Fatalf("GetActiveByUser: %v", err)
	}
	if got.Plan != "basic" || got.StripeCustomerID != "cus_7" {
		t.Errorf("after checkout: %+v", got)
	}

	update := event(t, "customer.subscription.updated", map[string]any{
		"id":                   "sub_7",
		"object":               "subscription",
		"status":               "active",
		"customer":             "cus_7",
		"current_period_start": 1700000000,
		"current_period_end":   1702592000,
		"cancel_at_period_end": true,
		"items": map[string]any{
			"object": "list",
			"data": []any{map[string]any{
				"id":     "si_1",
				"object": "subscription_item",
				"price":  map[string]any{"id": "price_pro", "object": "price"},
			}},
		},
	})
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, signedWebhook(t, update))
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body=%s", rec.Code, rec.Body)
	}

	got, err = f.subs.GetActiveByUser(ctx, "user-7")
	if err != nil {
		t.Fatalf("GetActiveByUser: %v", err)
	}
	if got.Plan != "pro" || !got.CancelAtPeriodEnd || got.PeriodEnd != 1702592000 {
		t.Errorf("after update: %+v", got)
	}

	deleted := event(t, "customer.subscription.deleted", map[string]any{
		"id": "sub_7", "object": "subscription", "status": "canceled", "customer": "cus_7",
	})
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, signedWebhook(t, deleted))
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	if _, err := f.subs.GetActiveByUser(ctx, "user-7"); err == nil {
		t.Error("canceled subscription still active")
	}
}

func TestWebhook_IgnoresOtherEvents(t *testing.T) {
	f := setup(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, signedWebhook(t, event(t, "invoice.paid", map[string]any{"id": "in_1", "object": "invoice"})))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestUpgrade(t *testing.T) {
	f := setup(t)
	user := testutil.SignedInUser()

	t.Run("requires sign-in", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/subscription/upgrade", strings.NewReader(`{"plan":"pro"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/subscription/upgrade", strings.NewReader(`{"plan":"gold"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, testutil.WithUser(req, user))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("creates checkout", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/subscription/upgrade",
			strings.NewReader(`{"plan":"pro","successUrl":"/account?upgraded=1","cancelUrl":"https://evil.test"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, testutil.WithUser(req, user))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
		}
		if !strings.Contains(rec.Body.String(), "checkout.stripe.test") {
			t.Errorf("body = %s", rec.Body)
		}
		p := f.checkout.got
		if p == nil {
			t.Fatal("checkout not called")
		}
		if *p.ClientReferenceID != user.ID || *p.LineItems[0].Price != "price_pro" {
			t.Errorf("params = ref %s price %s", *p.ClientReferenceID, *p.LineItems[0].Price)
		}
		if *p.SuccessURL != "https://site.test/account?upgraded=1" || *p.CancelURL != "https://site.test/account" {
			t.Errorf("urls = %s %s", *p.SuccessURL, *p.CancelURL)
		}
	})

	t.Run("annual price", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/subscription/upgrade", strings.NewReader(`{"plan":"pro","annual":true}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, testutil.WithUser(req, user))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
		}
		if got := *f.checkout.got.LineItems[0].Price; got != "price_pro_annual" {
			t.Errorf("price = %s", got)
		}
	})

	t.Run("no annual price", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/subscription/upgrade", strings.NewReader(`{"plan":"basic","annual":true}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, testutil.WithUser(req, user))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestListPlans(t *testing.T) {
	f := setup(t)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscription/plans", nil))
	var plans []billing.Plan
	if err := json.Unmarshal(rec.Body.Bytes(), &plans); err != nil {
		t.Fatal(err)
	}
	if len(plans) != 2 || plans[1].PriceID != "price_pro" {
		t.Errorf("plans = %+v", plans)
	}
}

func TestPlanByPrice(t *testing.T) {
	p := &billing.Plugin{Plans: testPlans}
	if pl, ok := p.PlanByPrice("price_basic"); !ok || pl.Name != "basic" {
		t.Errorf("PlanByPrice = %+v, %v", pl, ok)
	}
	if pl, ok := p.PlanByPrice("price_pro_annual"); !ok || pl.Name != "pro" {
		t.Errorf("PlanByPrice(annual) = %+v, %v", pl, ok)
	}
	if _, ok := p.PlanByPrice(""); ok {
		t.Error("empty price matched")
	}
	if _, ok := p.PlanByPrice("price_none"); ok {
		t.Error("unexpected match")
	}
}
