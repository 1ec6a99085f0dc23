// internal/app/features/authpages/handler.go
package authpages

import (
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// Options describe which sign-in methods the pages offer. Forms post to
// the auth API under APIBase.
type Options struct {
	APIBase           string // default /api/auth
	EmailPassword     bool
	GoogleEnabled     bool
	OneTapClientID    string
	TurnstileSiteKey  string
	MinPasswordLength int
	DefaultReturn     string // default /account
}

type Handler struct {
	Opts Options
	Log  *zap.Logger
}

func NewHandler(opts Options, logger *zap.Logger) *Handler {
	if opts.APIBase == "" {
		opts.APIBase = "/api/auth"
	}
	if opts.DefaultReturn == "" {
		opts.DefaultReturn = "/account"
	}
	return &Handler{Opts: opts, Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Template-data                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type formData struct {
	viewdata.BaseVM
	Options
	Error     string
	ReturnURL string
	Email     string
}

// errorMessages maps auth API error codes to what the form shows.
var errorMessages = map[string]string{
	"INVALID_EMAIL_OR_PASSWORD":   "That email and password do not match.",
	"INVALID_EMAIL":               "Please enter a valid email address.",
	"PASSWORD_TOO_SHORT":          "That password is too short.",
	"PASSWORD_TOO_LONG":           "That password is too long.",
	"USER_ALREADY_EXISTS":         "An account with this email already exists. Try signing in.",
	"TOO_MANY_REQUESTS":           "Too many attempts. Please wait a minute and try again.",
	"MISSING_CAPTCHA_RESPONSE":    "Please complete the challenge.",
	"CAPTCHA_VERIFICATION_FAILED": "The challenge could not be verified. Please try again.",
	"CAPTCHA_UNAVAILABLE":         "Verification is temporarily unavailable. Please try again.",
	"ACCESS_DENIED":               "Sign-in was cancelled.",
	"STATE_MISMATCH":              "Your sign-in link expired. Please try again.",
	"ACCOUNT_NOT_LINKED":          "This email is registered with a password. Sign in with it first.",
	"SERVICE_UNAVAILABLE":         "We could not reach the server. Please try again.",
}

// ErrorMessage returns the display text for an auth error code; unknown
// non-empty codes get a generic message.
func ErrorMessage(code string) string {
	if code == "" {
		return ""
	}
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return "Something went wrong. Please try again."
}

func (h *Handler) form(r *http.Request, title string) formData {
	return formData{
		BaseVM:    viewdata.NewBaseVM(r, title, "/"),
		Options:   h.Opts,
		Error:     ErrorMessage(query.Get(r, "error")),
		ReturnURL: auth.SafeLocalPath(query.Get(r, "return"), h.Opts.DefaultReturn),
		Email:     query.Get(r, "email"),
	}
}

// redirectIfSignedIn sends a signed-in visitor on to their return URL.
func (h *Handler) redirectIfSignedIn(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := auth.CurrentUser(r); !ok {
		return false
	}
	http.Redirect(w, r, auth.SafeLocalPath(query.Get(r, "return"), h.Opts.DefaultReturn), http.StatusSeeOther)
	return true
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/login                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfSignedIn(w, r) {
		return
	}
	templates.Render(w, r, "auth_login", h.form(r, "Sign in"))
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/register                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	if h.redirectIfSignedIn(w, r) {
		return
	}
	templates.Render(w, r, "auth_register", h.form(r, "Create an account"))
}
