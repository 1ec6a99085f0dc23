// internal/app/features/authpages/routes.go
package authpages

import "github.com/go-chi/chi/v5"

// Routes serves the sign-in and sign-up pages. Mount at /auth.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/login", h.ServeLogin)
	r.Get("/register", h.ServeRegister)
	return r
}
