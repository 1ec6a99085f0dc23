// internal/app/features/locale/routes.go
package locale

import "github.com/go-chi/chi/v5"

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.HandleSet)
	return r
}
