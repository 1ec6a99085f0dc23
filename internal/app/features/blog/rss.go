package blog

import (
	"bytes"
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| GET /blog/rss.xml – default-locale feed                                     |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRSS(w http.ResponseWriter, r *http.Request) {
	blog, err := h.Content.Blog()
	if err != nil {
		h.Log.Error("load blog failed", zap.Error(err))
		http.Error(w, "feed unavailable", http.StatusServiceUnavailable)
		return
	}

	site := viewdata.Site()
	feed := content.Feed{
		Title:       site.SiteTitle(),
		Description: site.SiteDescription(),
		SiteURL:     site.BaseURL,
		Language:    h.Content.DefaultLocale(),
	}

	var buf bytes.Buffer
	if err := content.WriteRSS(&buf, feed, blog.List(h.Content.DefaultLocale())); err != nil {
		h.Log.Error("render rss failed", zap.Error(err))
		http.Error(w, "feed unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(buf.Bytes())
}
