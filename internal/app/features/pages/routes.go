// internal/app/features/pages/routes.go
package pages

import "github.com/go-chi/chi/v5"

// Routes serves pages by slug. Mount at /page.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/*", h.ServePage)
	return r
}
