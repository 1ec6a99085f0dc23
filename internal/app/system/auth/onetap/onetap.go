// Package onetap adds Google One Tap sign-in to the auth engine. The browser
// posts the credential (a Google ID token) it received from the One Tap
// prompt; the plugin verifies it and signs the user in.
package onetap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"google.golang.org/api/idtoken"
)

// Validator verifies an ID token for audience. idtoken.Validate in
// production; tests supply their own.
type Validator func(ctx context.Context, token, audience string) (*idtoken.Payload, error)

// Plugin serves POST /one-tap/callback.
type Plugin struct {
	ClientID string
	Validate Validator
}

// New returns a plugin verifying tokens issued to clientID.
func New(clientID string) *Plugin {
	return &Plugin{ClientID: clientID, Validate: idtoken.Validate}
}

func (p *Plugin) ID() string { return "one-tap" }

func (p *Plugin) Mount(r chi.Router, e *auth.Engine) {
	h := &handler{p: p, e: e, log: e.Log()}
	r.Post("/one-tap/callback", h.callback)
}

type handler struct {
	p   *Plugin
	e   *auth.Engine
	log *zap.Logger
}

type request struct {
	IDToken     string `json:"idToken"`
	CallbackURL string `json:"callbackURL"`
}

func (h *handler) callback(w http.ResponseWriter, r *http.Request) {
	// Only the popup flow is served: the page script posts the credential as
	// JSON from the site's own origin.
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		auth.WriteError(w, auth.NewAPIError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE", "Send the ID token as JSON."))
		return
	}
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		auth.WriteError(w, auth.NewAPIError(http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON."))
		return
	}
	if req.IDToken == "" {
		auth.WriteError(w, auth.NewAPIError(http.StatusBadRequest, "MISSING_ID_TOKEN", "No ID token provided."))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Outbound(), h.log, "one-tap verify")
	defer cancel()

	payload, err := h.p.Validate(ctx, req.IDToken, h.p.ClientID)
	if err != nil {
		h.log.Warn("one-tap token rejected", zap.Error(err))
		metrics.SignIns.WithLabelValues("one_tap", "failure").Inc()
		auth.WriteError(w, auth.NewAPIError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid ID token."))
		return
	}

	u, err := h.e.ResolveSocialUser(ctx, profileFrom(payload))
	if errors.Is(err, auth.ErrUnverifiedLink) {
		auth.WriteError(w, auth.NewAPIError(http.StatusUnauthorized, "ACCOUNT_NOT_LINKED", "This Google account is not linked."))
		return
	}
	if err != nil {
		h.log.Error("resolve one-tap user", zap.Error(err))
		auth.WriteError(w, err)
		return
	}

	sess, err := h.e.StartSession(w, r, u.ID)
	if err != nil {
		h.log.Error("start session", zap.Error(err))
		auth.WriteError(w, err)
		return
	}

	metrics.SignIns.WithLabelValues("one_tap", "success").Inc()
	h.e.Audit().OneTapLogin(r.Context(), r, u.ID)

	if !auth.WantsJSON(r) {
		http.Redirect(w, r, auth.SafeLocalPath(req.CallbackURL, h.e.Options().DefaultCallback), http.StatusSeeOther)
		return
	}
	auth.WriteJSON(w, http.StatusOK, map[string]any{
		"session": sess,
		"user": auth.User{
			ID:            u.ID,
			Name:          u.Name,
			Email:         u.Email,
			Image:         u.Image,
			EmailVerified: u.EmailVerified,
		},
	})
}

func profileFrom(p *idtoken.Payload) auth.SocialProfile {
	str := func(k string) string {
		v, _ := p.Claims[k].(string)
		return v
	}
	verified := false
	switch v := p.Claims["email_verified"].(type) {
	case bool:
		verified = v
	case string:
		verified = v == "true"
	}
	return auth.SocialProfile{
		Provider:      accounts.ProviderGoogle,
		Subject:       p.Subject,
		Email:         str("email"),
		EmailVerified: verified,
		Name:          str("name"),
		Image:         str("picture"),
	}
}
