package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"
	statePrefix       = "oauth-state:"
	stateTTL          = 10 * time.Minute
)

// ErrUnverifiedLink is returned when a provider reports an unverified email
// that already belongs to another user.
var ErrUnverifiedLink = errors.New("auth: provider email is not verified")

// SocialProfile is what a provider tells us about the person signing in.
type SocialProfile struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Image         string
	AccessToken   string
	RefreshToken  string
	IDToken       string
}

func googleConfig(g *GoogleOptions, redirectURL string) *oauth2.Config {
	endpoint := g.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = google.Endpoint
	}
	return &oauth2.Config{
		ClientID:     g.ClientID,
		ClientSecret: g.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoint,
	}
}

// ResolveSocialUser finds or creates the user behind a provider identity and
// links the account. An existing user with the same email is linked only
// when the provider verified the address.
func (e *Engine) ResolveSocialUser(ctx context.Context, p SocialProfile) (*userstore.User, error) {
	link := func(userID string) error {
		_, err := e.stores.Accounts.Link(ctx, accounts.Account{
			UserID:       userID,
			ProviderID:   p.Provider,
			AccountID:    p.Subject,
			AccessToken:  p.AccessToken,
			RefreshToken: p.RefreshToken,
			IDToken:      p.IDToken,
		})
		return err
	}

	acct, err := e.stores.Accounts.GetByProvider(ctx, p.Provider, p.Subject)
	switch {
	case err == nil:
		u, err := e.stores.Users.GetByID(ctx, acct.UserID)
		if err != nil {
			return nil, fmt.Errorf("load linked user: %w", err)
		}
		return u, link(u.ID)
	case !errors.Is(err, accounts.ErrNotFound):
		return nil, fmt.Errorf("load account: %w", err)
	}

	if p.Email == "" {
		return nil, errors.New("auth: provider returned no email")
	}

	created := false
	u, err := e.stores.Users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
		if !p.EmailVerified {
			return nil, ErrUnverifiedLink
		}
	case errors.Is(err, userstore.ErrNotFound):
		nu, err := e.stores.Users.Create(ctx, userstore.User{
			Name:          p.Name,
			Email:         p.Email,
			EmailVerified: p.EmailVerified,
			Image:         p.Image,
		})
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		u, created = &nu, true
	default:
		return nil, fmt.Errorf("load user by email: %w", err)
	}

	if err := link(u.ID); err != nil {
		if created {
			e.dropUser(ctx, u.ID)
		}
		return nil, fmt.Errorf("link account: %w", err)
	}
	return u, nil
}

// dropUser removes a user created moments ago whose account could not be
// linked, so the address stays free for another attempt.
func (e *Engine) dropUser(ctx context.Context, userID string) {
	if err := e.stores.Users.Delete(ctx, userID); err != nil {
		e.log.Error("remove unlinked user", zap.String("user_id", userID), zap.Error(err))
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET|POST /sign-in/social?provider=google&callbackURL=/account                |
| Saves a one-time state and redirects to the provider's consent screen.      |
*─────────────────────────────────────────────────────────────────────────────*/

func (e *Engine) signInSocial(w http.ResponseWriter, r *http.Request) {
	page := e.opts.SignInPage
	provider := query.Get(r, "provider")
	callback := query.Get(r, "callbackURL")
	if r.Method == http.MethodPost && provider == "" {
		_ = r.ParseForm()
		provider = r.PostFormValue("provider")
		callback = r.PostFormValue("callbackURL")
	}
	if provider != accounts.ProviderGoogle {
		respondError(w, r, page, NewAPIError(http.StatusNotFound, "PROVIDER_NOT_FOUND", "Unknown sign-in provider."))
		return
	}

	state, err := generateState()
	if err != nil {
		e.log.Error("failed to generate OAuth state", zap.Error(err))
		respondError(w, r, page, errInternal)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	returnURL := SafeLocalPath(callback, e.opts.DefaultCallback)
	if err := e.stores.Verifications.Save(ctx, statePrefix+state, returnURL, time.Now().Add(stateTTL)); err != nil {
		e.log.Error("failed to save OAuth state", zap.Error(err))
		respondError(w, r, page, errInternal)
		return
	}

	dest := e.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline)
	if WantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]any{"url": dest, "redirect": true})
		return
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /callback/google                                                         |
| Exchanges the code, fetches the profile, and starts a session.              |
*─────────────────────────────────────────────────────────────────────────────*/

func (e *Engine) callbackGoogle(w http.ResponseWriter, r *http.Request) {
	page := e.opts.SignInPage
	fail := func(code string) {
		metrics.SignIns.WithLabelValues("google", "failure").Inc()
		http.Redirect(w, r, page+"?error="+code, http.StatusSeeOther)
	}

	if errParam := query.Get(r, "error"); errParam != "" {
		e.log.Warn("Google OAuth error", zap.String("error", errParam))
		fail("ACCESS_DENIED")
		return
	}

	state := query.Get(r, "state")
	if state == "" {
		fail("STATE_MISMATCH")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Outbound())
	defer cancel()

	returnURL, valid, err := e.stores.Verifications.Consume(ctx, statePrefix+state)
	if err != nil {
		e.log.Error("failed to validate OAuth state", zap.Error(err))
		fail("INTERNAL_SERVER_ERROR")
		return
	}
	if !valid {
		e.log.Warn("invalid or expired OAuth state")
		fail("STATE_MISMATCH")
		return
	}

	code := query.Get(r, "code")
	if code == "" {
		fail("INVALID_CODE")
		return
	}

	tok, err := e.oauth.Exchange(ctx, code)
	if err != nil {
		e.log.Error("failed to exchange OAuth code", zap.Error(err))
		fail("TOKEN_EXCHANGE")
		return
	}

	info, err := e.fetchGoogleUserInfo(ctx, tok)
	if err != nil {
		e.log.Error("failed to fetch Google user info", zap.Error(err))
		fail("USER_INFO")
		return
	}

	idToken, _ := tok.Extra("id_token").(string)
	u, err := e.ResolveSocialUser(ctx, SocialProfile{
		Provider:      accounts.ProviderGoogle,
		Subject:       info.Sub,
		Email:         info.Email,
		EmailVerified: info.EmailVerified,
		Name:          info.Name,
		Image:         info.Picture,
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		IDToken:       idToken,
	})
	if errors.Is(err, ErrUnverifiedLink) {
		fail("ACCOUNT_NOT_LINKED")
		return
	}
	if err != nil {
		e.log.Error("resolve Google user", zap.Error(err))
		fail("INTERNAL_SERVER_ERROR")
		return
	}

	if _, err := e.StartSession(w, r, u.ID); err != nil {
		e.log.Error("start session", zap.Error(err))
		fail("INTERNAL_SERVER_ERROR")
		return
	}

	metrics.SignIns.WithLabelValues("google", "success").Inc()
	e.audit.OAuthLogin(r.Context(), r, u.ID, accounts.ProviderGoogle)
	http.Redirect(w, r, returnURL, http.StatusSeeOther)
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (e *Engine) fetchGoogleUserInfo(ctx context.Context, tok *oauth2.Token) (*googleUserInfo, error) {
	endpoint := googleUserInfoURL
	if e.opts.Google != nil && e.opts.Google.UserInfoURL != "" {
		endpoint = e.opts.Google.UserInfoURL
	}

	resp, err := e.oauth.Client(ctx, tok).Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	if info.Sub == "" {
		return nil, errors.New("user info has no subject")
	}
	return &info, nil
}

// generateState returns 32 random bytes, base64url encoded.
func generateState() (string, error) {
	b := securecookie.GenerateRandomKey(32)
	if b == nil {
		return "", errors.New("oauth state: random source unavailable")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
