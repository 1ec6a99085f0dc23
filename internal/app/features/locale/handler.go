// internal/app/features/locale/handler.go
package locale

import (
	"net/http"
	"net/url"

	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/i18n"
	"github.com/dalemusser/scratchstarter/internal/app/system/limits"
	"go.uber.org/zap"
)

type Handler struct {
	Locales *i18n.Resolver
	Log     *zap.Logger
}

func NewHandler(locales *i18n.Resolver, logger *zap.Logger) *Handler {
	return &Handler{Locales: locales, Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /locale – store the visitor's locale and go back                       |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) HandleSet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxLocaleFormSize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	code := r.PostFormValue("locale")

	if err := h.Locales.SetUserLocale(w, code); err != nil {
		h.Log.Debug("locale: rejected", zap.String("locale", code), zap.Error(err))
		http.Error(w, "unknown locale", http.StatusBadRequest)
		return
	}

	dest := auth.SafeLocalPath(r.PostFormValue("return"), "")
	if dest == "" {
		dest = refererPath(r)
	}

	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// refererPath returns the same-host path of the Referer, or "/".
func refererPath(r *http.Request) string {
	u, err := url.Parse(r.Referer())
	if err != nil || u.Host != r.Host {
		return "/"
	}
	return auth.SafeLocalPath(u.RequestURI(), "/")
}
