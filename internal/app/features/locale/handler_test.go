package locale_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/dalemusser/scratchstarter/internal/app/features/locale"
	"github.com/dalemusser/scratchstarter/internal/app/system/i18n"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
	"go.uber.org/zap"
)

func newHandler() *locale.Handler {
	cfg := siteconfig.Default()
	cfg.I18n = &siteconfig.I18n{
		DefaultLocale: "en",
		Locales:       []siteconfig.Locale{{Code: "en", Name: "English"}, {Code: "cn", Name: "中文"}},
	}
	return locale.NewHandler(i18n.NewResolver(cfg), zap.NewNop())
}

func post(form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/locale", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleSet_SetsCookieAndRedirects(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler().HandleSet(rec, post(url.Values{"locale": {"cn"}, "return": {"/blog/hello"}}))

	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/blog/hello" {
		t.Errorf("response = %d %q", rec.Code, rec.Header().Get("Location"))
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "cn" {
		t.Errorf("cookies = %+v", cookies)
	}
}

func TestHandleSet_UnknownLocale(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler().HandleSet(rec, post(url.Values{"locale": {"de"}}))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie set for unknown locale")
	}
}

func TestHandleSet_ReturnFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		ret     string
		referer string
		want    string
	}{
		{"external return ignored", "https://evil.example/", "", "/"},
		{"same-host referer", "", "http://example.com/page/about?x=1", "/page/about?x=1"},
		{"foreign referer", "", "https://evil.example/page", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := post(url.Values{"locale": {"en"}, "return": {tt.ret}})
			req.Host = "example.com"
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			rec := httptest.NewRecorder()
			newHandler().HandleSet(rec, req)
			if got := rec.Header().Get("Location"); got != tt.want {
				t.Errorf("Location = %q, want %q", got, tt.want)
			}
		})
	}
}
