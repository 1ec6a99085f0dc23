package home

import (
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"github.com/dalemusser/scratchstarter/internal/app/system/layout"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/pantry/templates"
	"go.uber.org/zap"
)

// recentPosts is how many blog entries the landing page shows.
const recentPosts = 3

// Handler holds dependencies needed to serve the home page.
type Handler struct {
	Content *content.Facade // nil when the site has no content
	Log     *zap.Logger
}

func NewHandler(c *content.Facade, logger *zap.Logger) *Handler {
	return &Handler{
		Content: c,
		Log:     logger,
	}
}

type planVM struct {
	Name     string
	Price    string
	Features []string
}

type postVM struct {
	Title       string
	Description string
	URL         string
	Date        string
}

type pageData struct {
	viewdata.BaseVM
	Description string
	Plans       []planVM
	Posts       []postVM
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – landing                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	templates.Render(w, r, "home", h.buildData(r))
}

func (h *Handler) buildData(r *http.Request) pageData {
	site := viewdata.Site()
	data := pageData{
		BaseVM:      viewdata.NewBaseVM(r, "", "/"),
		Description: site.SiteDescription(),
		Plans:       plans(site),
	}

	if h.Content != nil {
		blog, err := h.Content.Blog()
		if err != nil {
			h.Log.Warn("home: blog unavailable", zap.Error(err))
			return data
		}
		for i, e := range blog.List(layout.FrameFrom(r.Context()).Lang) {
			if i == recentPosts {
				break
			}
			p := postVM{Title: e.Title, Description: e.Description, URL: e.URL}
			if !e.Date.IsZero() {
				p.Date = e.Date.Format("January 2, 2006")
			}
			data.Posts = append(data.Posts, p)
		}
	}
	return data
}

func plans(site siteconfig.Config) []planVM {
	if !site.BillingEnabled() {
		return nil
	}
	out := make([]planVM, 0, len(site.Billing.Plans))
	for _, p := range site.Billing.Plans {
		out = append(out, planVM{Name: p.Name, Price: p.Price, Features: p.Features})
	}
	return out
}
