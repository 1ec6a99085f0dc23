// internal/app/features/account/routes.go
package account

import (
	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler, facade *auth.Facade) chi.Router {
	r := chi.NewRouter()
	r.Use(facade.RequireSignedIn)
	r.Get("/", h.ServeAccount)
	r.Post("/", h.HandleUpdate)
	return r
}
