// internal/app/features/account/handler.go
package account

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	uierrors "github.com/dalemusser/scratchstarter/internal/app/features/errors"
	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	"github.com/dalemusser/scratchstarter/internal/app/store/subscriptions"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/limits"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

const maxNameLength = 100

// AccountLister lists the sign-in methods linked to a user.
type AccountLister interface {
	ListByUser(ctx context.Context, userID string) ([]accounts.Account, error)
}

// SubscriptionReader loads a user's active subscription.
type SubscriptionReader interface {
	GetActiveByUser(ctx context.Context, userID string) (*subscriptions.Subscription, error)
}

// ProfileWriter updates the signed-in user's profile.
type ProfileWriter interface {
	UpdateProfile(ctx context.Context, id string, upd userstore.ProfileUpdate) error
}

type Handler struct {
	Accounts      AccountLister
	Subscriptions SubscriptionReader // nil when billing is off
	Users         ProfileWriter
	Log           *zap.Logger
}

func NewHandler(accts AccountLister, subs SubscriptionReader, users ProfileWriter, logger *zap.Logger) *Handler {
	return &Handler{
		Accounts:      accts,
		Subscriptions: subs,
		Users:         users,
		Log:           logger,
	}
}

type subscriptionVM struct {
	Plan              string
	Status            string
	RenewsOn          string
	CancelAtPeriodEnd bool
}

type pageData struct {
	viewdata.BaseVM
	Email         string
	EmailVerified bool
	Providers     []string
	Subscription  *subscriptionVM
	BillingOn     bool
	Saved         bool
	Error         string
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /account                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeAccount(w http.ResponseWriter, r *http.Request) {
	data, err := h.buildData(r)
	if err != nil {
		h.Log.Error("account: load failed", zap.Error(err))
		uierrors.RenderUnavailable(w, r)
		return
	}
	data.Saved = r.URL.Query().Get("saved") == "1"
	templates.Render(w, r, "account", data)
}

func (h *Handler) buildData(r *http.Request) (pageData, error) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		return pageData{}, auth.ErrAuthRequired
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	data := pageData{
		BaseVM:        viewdata.NewBaseVM(r, "Account", "/"),
		Email:         u.Email,
		EmailVerified: u.EmailVerified,
		BillingOn:     h.Subscriptions != nil,
	}
	data.Meta.NoIndex = true

	linked, err := h.Accounts.ListByUser(ctx, u.ID)
	if err != nil {
		return pageData{}, err
	}
	for _, a := range linked {
		data.Providers = append(data.Providers, a.ProviderID)
	}

	if h.Subscriptions != nil {
		sub, err := h.Subscriptions.GetActiveByUser(ctx, u.ID)
		switch {
		case errors.Is(err, subscriptions.ErrNotFound):
		case err != nil:
			return pageData{}, err
		default:
			vm := &subscriptionVM{Plan: sub.Plan, Status: sub.Status, CancelAtPeriodEnd: sub.CancelAtPeriodEnd}
			if sub.PeriodEnd > 0 {
				vm.RenewsOn = time.Unix(sub.PeriodEnd, 0).UTC().Format("January 2, 2006")
			}
			data.Subscription = vm
		}
	}
	return data, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /account – update display name                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.CurrentUser(r)
	if !ok {
		uierrors.RenderUnauthorized(w, r, "")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxProfileFormSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		data, err := h.buildData(r)
		if err != nil {
			h.Log.Error("account: load failed", zap.Error(err))
			uierrors.RenderUnavailable(w, r)
			return
		}
		data.Error = "Please enter a name up to 100 characters."
		w.WriteHeader(http.StatusUnprocessableEntity)
		templates.Render(w, r, "account", data)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.Users.UpdateProfile(ctx, u.ID, userstore.ProfileUpdate{Name: &name}); err != nil {
		h.Log.Error("account: update profile failed", zap.String("user_id", u.ID), zap.Error(err))
		uierrors.RenderUnavailable(w, r)
		return
	}

	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/account?saved=1")
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, "/account?saved=1", http.StatusSeeOther)
}
