// internal/app/features/pages/view.go
package pages

import (
	"errors"
	"html/template"
	"net/http"
	"strings"

	uierrors "github.com/dalemusser/scratchstarter/internal/app/features/errors"
	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"github.com/dalemusser/scratchstarter/internal/app/system/layout"
	"github.com/dalemusser/scratchstarter/internal/app/system/seo"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type pageViewVM struct {
	viewdata.BaseVM
	Slug    string
	Locale  string
	Heading string
	Content template.HTML
}

// ServePage renders /page/{slug...} in the visitor's locale, falling back to
// the default locale.
func (h *Handler) ServePage(w http.ResponseWriter, r *http.Request) {
	slug := strings.Trim(chi.URLParam(r, "*"), "/")
	if slug == "" {
		slug = strings.Trim(chi.URLParam(r, "slug"), "/")
	}

	entry, err := h.lookup(slug, layout.FrameFrom(r.Context()).Lang)
	switch {
	case errors.Is(err, content.ErrNotFound):
		uierrors.RenderNotFound(w, r)
		return
	case err != nil:
		h.Log.Error("load page failed", zap.String("slug", slug), zap.Error(err))
		uierrors.RenderUnavailable(w, r)
		return
	}

	templates.Render(w, r, "page_view", h.viewModel(r, entry))
}

func (h *Handler) lookup(slug, locale string) (*content.Entry, error) {
	if slug == "" {
		return nil, content.ErrNotFound
	}
	pages, err := h.Content.Pages()
	if err != nil {
		return nil, err
	}
	entry, err := pages.Get(slug, locale)
	if err != nil {
		return nil, err
	}
	if entry.Draft {
		return nil, content.ErrNotFound
	}
	return entry, nil
}

func (h *Handler) viewModel(r *http.Request, e *content.Entry) pageViewVM {
	base := viewdata.NewBaseVM(r, e.Title, "/")
	base = base.WithMeta(seo.Page(viewdata.Site(), e.Title, e.Description, e.URL))
	return pageViewVM{
		BaseVM:  base,
		Slug:    e.Slug,
		Locale:  e.Locale,
		Heading: e.Title,
		Content: e.HTML,
	}
}
