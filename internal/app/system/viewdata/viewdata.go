// internal/app/system/viewdata/viewdata.go
package viewdata

import (
	"net/http"
	"sync"

	"github.com/dalemusser/scratchstarter/internal/app/system/auth"
	"github.com/dalemusser/scratchstarter/internal/app/system/layout"
	"github.com/dalemusser/scratchstarter/internal/app/system/seo"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
	"github.com/dalemusser/waffle/pantry/httpnav"
	"github.com/gorilla/csrf"
)

// BaseVM contains common fields for all view models.
// Embed this struct in your feature-specific view models.
//
// Usage:
//
//	type myPageData struct {
//	    viewdata.BaseVM
//	    // page-specific fields...
//	}
//
//	data := myPageData{
//	    BaseVM: viewdata.NewBaseVM(r, "Page Title", "/default-back"),
//	    // page-specific fields...
//	}
type BaseVM struct {
	// Site record
	SiteName    string
	Theme       string
	HeaderMenus []siteconfig.MenuItem
	FooterMenus []siteconfig.MenuGroup
	SocialLinks []siteconfig.SocialLink
	ShowBlog    bool

	// Page shell (from the layout composer)
	Lang    string
	Frame   layout.Frame
	Locales []siteconfig.Locale

	// User context (from auth middleware)
	IsLoggedIn bool
	UserName   string
	UserEmail  string
	UserImage  string

	// Page context
	Title       string
	Meta        seo.Metadata
	BackURL     string
	CurrentPath string

	// CSRF protection
	CSRFToken string
}

var (
	siteMu sync.RWMutex
	site   = siteconfig.Default()
)

// Init sets the site record used for every page.
// Call this once at startup from bootstrap.
func Init(cfg siteconfig.Config) {
	siteMu.Lock()
	defer siteMu.Unlock()
	site = cfg
}

// Site returns the site record set by Init.
func Site() siteconfig.Config {
	siteMu.RLock()
	defer siteMu.RUnlock()
	return site
}

// NewBaseVM creates a fully populated BaseVM for a page.
//
// Parameters:
//   - r: the HTTP request
//   - title: the page title; empty uses the site title
//   - backDefault: default URL for the back button if none in request
func NewBaseVM(r *http.Request, title, backDefault string) BaseVM {
	cfg := Site()
	frame := layout.FrameFrom(r.Context())

	meta := seo.RootMetadata(cfg)
	if title != "" {
		meta = seo.Page(cfg, title, "", r.URL.Path)
	}

	vm := BaseVM{
		SiteName:    cfg.SiteTitle(),
		Theme:       cfg.DefaultTheme(),
		HeaderMenus: cfg.HeaderMenus,
		FooterMenus: cfg.FooterMenus,
		SocialLinks: cfg.SocialLinks,
		ShowBlog:    cfg.ContentEnabled(),
		Lang:        frame.Lang,
		Frame:       frame,
		Locales:     cfg.Locales(),
		Title:       meta.Render(),
		Meta:        meta,
		BackURL:     httpnav.ResolveBackURL(r, backDefault),
		CurrentPath: httpnav.CurrentPath(r),
		CSRFToken:   csrf.Token(r),
	}

	if u, ok := auth.CurrentUser(r); ok {
		vm.IsLoggedIn = true
		vm.UserName = u.Name
		vm.UserEmail = u.Email
		vm.UserImage = u.Image
	}

	return vm
}

// WithMeta replaces the page metadata, keeping Title in sync.
func (vm BaseVM) WithMeta(m seo.Metadata) BaseVM {
	vm.Meta = m
	vm.Title = m.Render()
	return vm
}
