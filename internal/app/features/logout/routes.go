// internal/app/features/logout/routes.go
package logout

import (
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, facade *auth.Facade) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		// Only allow logged-in users to hit /logout.
		pr.Use(facade.RequireSignedIn)
		pr.Get("/", h.ServeLogout)
		pr.Post("/", h.ServeLogout)
	})

	return r
}
