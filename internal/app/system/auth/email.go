package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/dalemusser/scratchstarter/internal/app/store/accounts"
	userstore "github.com/dalemusser/scratchstarter/internal/app/store/users"
	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordLength = 128

type credentials struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	CallbackURL string `json:"callbackURL"`
}

// readCredentials accepts a JSON body or a url-encoded form.
func readCredentials(r *http.Request) (credentials, error) {
	var c credentials
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&c); err != nil {
			return c, NewAPIError(http.StatusBadRequest, "INVALID_BODY", "Request body is not valid JSON.")
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return c, NewAPIError(http.StatusBadRequest, "INVALID_BODY", "Request body could not be parsed.")
		}
		c.Name = r.PostFormValue("name")
		c.Email = r.PostFormValue("email")
		c.Password = r.PostFormValue("password")
		c.CallbackURL = r.PostFormValue("callbackURL")
	}
	c.Name = strings.TrimSpace(c.Name)
	c.Email = userstore.NormalizeEmail(c.Email)
	return c, nil
}

func (e *Engine) validatePassword(pw string) error {
	if len(pw) < e.opts.MinPasswordLength {
		return NewAPIError(http.StatusBadRequest, "PASSWORD_TOO_SHORT", "Password is too short.")
	}
	if len(pw) > maxPasswordLength {
		return NewAPIError(http.StatusBadRequest, "PASSWORD_TOO_LONG", "Password is too long.")
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /sign-up/email                                                          |
| Creates a user with a credential account and signs them in.                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (e *Engine) signUpEmail(w http.ResponseWriter, r *http.Request) {
	page := e.opts.SignUpPage
	c, err := readCredentials(r)
	if err != nil {
		respondError(w, r, page, err)
		return
	}
	if !strings.Contains(c.Email, "@") {
		respondError(w, r, page, NewAPIError(http.StatusBadRequest, "INVALID_EMAIL", "Enter a valid email address."))
		return
	}
	if err := e.validatePassword(c.Password); err != nil {
		respondError(w, r, page, err)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(c.Password), bcrypt.DefaultCost)
	if err != nil {
		e.log.Error("hash password", zap.Error(err))
		respondError(w, r, page, errInternal)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, err := e.stores.Users.Create(ctx, userstore.User{Name: c.Name, Email: c.Email})
	if errors.Is(err, userstore.ErrDuplicateEmail) {
		respondError(w, r, page, errUserExists)
		return
	}
	if err != nil {
		e.log.Error("create user", zap.Error(err))
		respondError(w, r, page, errInternal)
		return
	}

	if _, err := e.stores.Accounts.Link(ctx, accounts.Account{
		UserID:       u.ID,
		ProviderID:   accounts.ProviderCredential,
		AccountID:    u.ID,
		PasswordHash: string(hash),
	}); err != nil {
		e.log.Error("link credential account", zap.String("user_id", u.ID), zap.Error(err))
		e.dropUser(ctx, u.ID)
		respondError(w, r, page, errInternal)
		return
	}

	sess, err := e.StartSession(w, r, u.ID)
	if err != nil {
		e.log.Error("start session", zap.Error(err))
		respondError(w, r, page, errInternal)
		return
	}

	e.audit.SignUp(r.Context(), r, u.ID, u.Email)
	e.log.Info("user signed up", zap.String("user_id", u.ID))
	respondOK(w, r, SafeLocalPath(c.CallbackURL, e.opts.DefaultCallback),
		map[string]any{"user": fromUserRow(&u), "session": sess})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /sign-in/email                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (e *Engine) signInEmail(w http.ResponseWriter, r *http.Request) {
	page := e.opts.SignInPage
	c, err := readCredentials(r)
	if err != nil {
		respondError(w, r, page, err)
		return
	}

	if ok, reason := e.limiter.Check(r, c.Email); !ok {
		metrics.SignIns.WithLabelValues("email", "rate_limited").Inc()
		e.audit.LoginFailedRateLimit(r.Context(), r, c.Email)
		respondError(w, r, page, NewAPIError(http.StatusTooManyRequests, "TOO_MANY_REQUESTS", reason))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := e.stores.Users.GetByEmail(ctx, c.Email)
	if errors.Is(err, userstore.ErrNotFound) {
		metrics.SignIns.WithLabelValues("email", "failure").Inc()
		e.audit.LoginFailedUserNotFound(r.Context(), r, c.Email)
		respondError(w, r, page, errInvalidCredentials)
		return
	}
	if err != nil {
		e.log.Error("load user for sign-in", zap.Error(err))
		respondError(w, r, page, errInternal)
		return
	}

	hash, err := e.stores.Accounts.GetPasswordHash(ctx, u.ID)
	if err != nil && !errors.Is(err, accounts.ErrNotFound) {
		e.log.Error("load credential", zap.String("user_id", u.ID), zap.Error(err))
		respondError(w, r, page, errInternal)
		return
	}
	if hash == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(c.Password)) != nil {
		metrics.SignIns.WithLabelValues("email", "failure").Inc()
		e.audit.LoginFailedWrongPassword(r.Context(), r, u.ID)
		respondError(w, r, page, errInvalidCredentials)
		return
	}

	sess, err := e.StartSession(w, r, u.ID)
	if err != nil {
		e.log.Error("start session", zap.Error(err))
		respondError(w, r, page, errInternal)
		return
	}

	e.limiter.ResetEmail(c.Email)
	metrics.SignIns.WithLabelValues("email", "success").Inc()
	e.audit.LoginSuccess(r.Context(), r, u.ID, "email")
	respondOK(w, r, SafeLocalPath(c.CallbackURL, e.opts.DefaultCallback),
		map[string]any{"user": fromUserRow(u), "session": sess})
}
