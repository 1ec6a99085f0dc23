package home

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"go.uber.org/zap"
)

func blogFacade() *content.Facade {
	post := func(title, date string) *fstest.MapFile {
		return &fstest.MapFile{Data: []byte("---\ntitle: " + title + "\ndate: " + date + "\n---\nbody\n")}
	}
	return content.NewFacade(content.Options{
		FS: fstest.MapFS{
			"blog/a.md": post("A", "2024-01-01"),
			"blog/b.md": post("B", "2024-02-01"),
			"blog/c.md": post("C", "2024-03-01"),
			"blog/d.md": post("D", "2024-04-01"),
		},
		DefaultLocale: "en",
	}, zap.NewNop())
}

func TestBuildData_RecentPostsNewestFirst(t *testing.T) {
	viewdata.Init(siteconfig.Default())
	h := NewHandler(blogFacade(), zap.NewNop())

	data := h.buildData(httptest.NewRequest(http.MethodGet, "/", nil))

	if len(data.Posts) != recentPosts {
		t.Fatalf("posts = %d, want %d", len(data.Posts), recentPosts)
	}
	if data.Posts[0].Title != "D" || data.Posts[2].Title != "B" {
		t.Errorf("order = %s, %s, %s", data.Posts[0].Title, data.Posts[1].Title, data.Posts[2].Title)
	}
	if data.Posts[0].Date != "April 1, 2024" {
		t.Errorf("date = %q", data.Posts[0].Date)
	}
}

func TestBuildData_WithoutContent(t *testing.T) {
	viewdata.Init(siteconfig.Default())
	h := NewHandler(nil, zap.NewNop())

	data := h.buildData(httptest.NewRequest(http.MethodGet, "/", nil))
	if data.Posts != nil {
		t.Errorf("posts = %v", data.Posts)
	}
	if data.Description == "" {
		t.Error("expected site description")
	}
}

func TestBuildData_Plans(t *testing.T) {
	cfg := siteconfig.Default()
	cfg.Billing = &siteconfig.Billing{Plans: []siteconfig.Plan{
		{Name: "pro", PriceID: "price_pro", Price: "$10", Features: []string{"Everything"}},
	}}
	viewdata.Init(cfg)
	t.Cleanup(func() { viewdata.Init(siteconfig.Default()) })

	data := NewHandler(nil, zap.NewNop()).buildData(httptest.NewRequest(http.MethodGet, "/", nil))
	if len(data.Plans) != 1 || data.Plans[0].Price != "$10" {
		t.Errorf("plans = %+v", data.Plans)
	}
}

func TestServeRoot_DoesNotPanicWithoutEngine(t *testing.T) {
	h := NewHandler(nil, zap.NewNop())

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()

	// Template rendering may panic without an initialized engine.
	func() {
		defer func() { _ = recover() }()
		h.ServeRoot(rec, req)
	}()
}
