// internal/app/features/errors/render.go
package errors

import (
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
)

// RenderUnauthorized shows a friendly "sign in required" page.
// If backURL is empty, it will default to /auth/login.
func RenderUnauthorized(w http.ResponseWriter, r *http.Request, backURL string) {
	if backURL == "" {
		backURL = "/auth/login"
	}
	render(w, r, http.StatusUnauthorized, "Sign in required", "Please sign in to continue.", backURL)
}

// RenderForbidden shows a friendly access error page with a message.
// If backURL is empty, it resolves a safe back URL with a default fallback.
func RenderForbidden(w http.ResponseWriter, r *http.Request, msg, backURL string) {
	if msg == "" {
		msg = "You don't have permission to view this page."
	}
	render(w, r, http.StatusForbidden, "Access denied", msg, backURL)
}

// RenderNotFound shows the "page not found" page with a 404 status.
func RenderNotFound(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusNotFound, "Page not found", "The page you were looking for does not exist.", "/")
}

// RenderUnavailable shows a 503 page for backend outages.
func RenderUnavailable(w http.ResponseWriter, r *http.Request) {
	render(w, r, http.StatusServiceUnavailable, "Temporarily unavailable", "Please try again in a moment.", "")
}

func render(w http.ResponseWriter, r *http.Request, status int, heading, msg, backURL string) {
	data := pageData{
		BaseVM:  viewdata.NewBaseVM(r, heading, "/"),
		Heading: heading,
		Message: msg,
	}
	data.Meta.NoIndex = true
	if backURL != "" {
		data.BackURL = backURL
	}
	w.WriteHeader(status)
	templates.Render(w, r, "error_page", data)
}
