package blog

import "github.com/go-chi/chi/v5"

// Routes serves the blog. Mount at /blog.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Get("/rss.xml", h.ServeRSS)
	r.Get("/{slug}", h.ServePost)
	return r
}
