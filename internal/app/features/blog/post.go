package blog

import (
	"errors"
	"html/template"
	"net/http"

	uierrors "github.com/dalemusser/scratchstarter/internal/app/features/errors"
	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"github.com/dalemusser/scratchstarter/internal/app/system/layout"
	"github.com/dalemusser/scratchstarter/internal/app/system/seo"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type postVM struct {
	viewdata.BaseVM
	Post    postRow
	Locale  string
	Content template.HTML
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /blog/{slug}                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServePost(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	entry, err := h.lookup(slug, layout.FrameFrom(r.Context()).Lang)
	switch {
	case errors.Is(err, content.ErrNotFound):
		uierrors.RenderNotFound(w, r)
		return
	case err != nil:
		h.Log.Error("load post failed", zap.String("slug", slug), zap.Error(err))
		uierrors.RenderUnavailable(w, r)
		return
	}

	templates.Render(w, r, "blog_post", h.postData(r, entry))
}

func (h *Handler) lookup(slug, locale string) (*content.Entry, error) {
	blog, err := h.Content.Blog()
	if err != nil {
		return nil, err
	}
	e, err := blog.Get(slug, locale)
	if err != nil {
		return nil, err
	}
	if e.Draft {
		return nil, content.ErrNotFound
	}
	return e, nil
}

func (h *Handler) postData(r *http.Request, e *content.Entry) postVM {
	meta := seo.Page(viewdata.Site(), e.Title, e.Description, e.URL)
	if e.Image != "" {
		meta.OpenGraph.Image = e.Image
		meta.Twitter.Image = e.Image
	}
	return postVM{
		BaseVM:  viewdata.NewBaseVM(r, e.Title, content.BlogBase).WithMeta(meta),
		Post:    rowFor(e),
		Locale:  e.Locale,
		Content: e.HTML,
	}
}
