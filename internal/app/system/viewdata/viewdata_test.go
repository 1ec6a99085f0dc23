package viewdata_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/scratchstarter/internal/app/system/layout"
	"github.com/dalemusser/scratchstarter/internal/app/system/seo"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/scratchstarter/internal/testutil"
)

func TestNewBaseVM_Anonymous(t *testing.T) {
	viewdata.Init(siteconfig.Default())

	req := httptest.NewRequest(http.MethodGet, "/blog", nil)
	vm := viewdata.NewBaseVM(req, "", "/")

	if vm.IsLoggedIn {
		t.Error("expected anonymous view")
	}
	if vm.SiteName != "Scratch Starter" || vm.Theme != "system" {
		t.Errorf("site fields = %q, %q", vm.SiteName, vm.Theme)
	}
	if vm.Lang != "en" {
		t.Errorf("Lang = %q", vm.Lang)
	}
	if vm.Title != "Scratch Starter | Scratch Starter" {
		t.Errorf("Title = %q", vm.Title)
	}
	if !vm.ShowBlog || len(vm.HeaderMenus) == 0 {
		t.Error("expected menus and blog link from the default site")
	}
}

func TestNewBaseVM_SignedInAndFrame(t *testing.T) {
	viewdata.Init(siteconfig.Default())

	req := testutil.NewAuthenticatedRequest(http.MethodGet, "/account", testutil.SignedInUser())
	req = req.WithContext(layout.WithFrame(req.Context(), layout.Frame{Lang: "cn"}))
	vm := viewdata.NewBaseVM(req, "Account", "/")

	if !vm.IsLoggedIn || vm.UserName != "Test Reader" {
		t.Errorf("user fields = %v, %q", vm.IsLoggedIn, vm.UserName)
	}
	if vm.Lang != "cn" {
		t.Errorf("Lang = %q", vm.Lang)
	}
	if vm.Title != "Account | Scratch Starter" {
		t.Errorf("Title = %q", vm.Title)
	}
	if vm.Meta.Alternates.Canonical != "http://localhost:3000/account" {
		t.Errorf("canonical = %q", vm.Meta.Alternates.Canonical)
	}
}

func TestWithMeta(t *testing.T) {
	viewdata.Init(siteconfig.Default())
	vm := viewdata.NewBaseVM(httptest.NewRequest(http.MethodGet, "/", nil), "", "/")
	vm = vm.WithMeta(seo.Metadata{Title: seo.Title{Absolute: "Hello"}})
	if vm.Title != "Hello" {
		t.Errorf("Title = %q", vm.Title)
	}
}
