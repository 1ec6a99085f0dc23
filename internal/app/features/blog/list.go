package blog

import (
	"net/http"
	"slices"

	uierrors "github.com/dalemusser/scratchstarter/internal/app/features/errors"
	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"github.com/dalemusser/scratchstarter/internal/app/system/layout"
	"github.com/dalemusser/scratchstarter/internal/app/system/seo"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

type postRow struct {
	Title       string
	Description string
	URL         string
	Date        string
	Author      string
	Tags        []string
	Image       string
}

type listVM struct {
	viewdata.BaseVM
	Tag   string
	Posts []postRow
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /blog – post index, optional ?tag= filter                               |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	blog, err := h.Content.Blog()
	if err != nil {
		h.Log.Error("load blog failed", zap.Error(err))
		uierrors.RenderUnavailable(w, r)
		return
	}

	tag := query.Get(r, "tag")
	vm := listVM{
		BaseVM: viewdata.NewBaseVM(r, "Blog", "/"),
		Tag:    tag,
		Posts:  rows(filterByTag(blog.List(layout.FrameFrom(r.Context()).Lang), tag)),
	}
	vm.BaseVM = vm.WithMeta(seo.Page(viewdata.Site(), "Blog", viewdata.Site().SiteDescription(), content.BlogBase))

	templates.Render(w, r, "blog_list", vm)
}

func filterByTag(entries []*content.Entry, tag string) []*content.Entry {
	if tag == "" {
		return entries
	}
	out := entries[:0:0]
	for _, e := range entries {
		if slices.Contains(e.Tags, tag) {
			out = append(out, e)
		}
	}
	return out
}

func rows(entries []*content.Entry) []postRow {
	out := make([]postRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, rowFor(e))
	}
	return out
}

func rowFor(e *content.Entry) postRow {
	row := postRow{
		Title:       e.Title,
		Description: e.Description,
		URL:         e.URL,
		Author:      e.Author,
		Tags:        e.Tags,
		Image:       e.Image,
	}
	if !e.Date.IsZero() {
		row.Date = e.Date.Format("January 2, 2006")
	}
	return row
}
