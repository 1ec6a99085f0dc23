// Package i18n resolves the visitor's locale from the locale cookie.
package i18n

import (
	"fmt"
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
)

// Resolver reads and writes the <appPrefix>_i18n cookie.
type Resolver struct {
	cfg siteconfig.Config
}

// NewResolver returns a resolver for cfg.
func NewResolver(cfg siteconfig.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// CookieName is the locale cookie name.
func (res *Resolver) CookieName() string { return res.cfg.LocaleCookieName() }

// DefaultLocale is the locale used when the cookie is absent or unknown.
func (res *Resolver) DefaultLocale() string { return res.cfg.DefaultLocale() }

// UserLocale returns the cookie's locale when it names a configured locale,
// otherwise the default locale.
func (res *Resolver) UserLocale(r *http.Request) string {
	c, err := r.Cookie(res.CookieName())
	if err != nil || c.Value == "" || !res.cfg.HasLocale(c.Value) {
		return res.DefaultLocale()
	}
	return c.Value
}

// SetUserLocale stores code in the locale cookie. The cookie has no
// explicit expiry.
func (res *Resolver) SetUserLocale(w http.ResponseWriter, code string) error {
	if !res.cfg.HasLocale(code) {
		return fmt.Errorf("unknown locale %q", code)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     res.CookieName(),
		Value:    code,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
