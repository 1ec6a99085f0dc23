package siteconfig_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := siteconfig.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if !cfg.I18nEnabled() || !cfg.ContentEnabled() {
		t.Error("expected i18n and content enabled by default")
	}
	if got := cfg.LocaleCookieName(); got != "scratch-starter_i18n" {
		t.Errorf("LocaleCookieName = %q", got)
	}
}

// The default locale must appear in the locale list whenever i18n is present.
// This is the list the content loader and the layout composer consume.
func TestDefaultLocale_InLocaleList(t *testing.T) {
	configs := map[string]siteconfig.Config{
		"default": siteconfig.Default(),
		"multi": func() siteconfig.Config {
			c := siteconfig.Default()
			c.I18n = &siteconfig.I18n{
				DefaultLocale: "cn",
				Locales:       []siteconfig.Locale{{Code: "en", Name: "English"}, {Code: "cn", Name: "中文"}},
			}
			return c
		}(),
	}

	for name, cfg := range configs {
		t.Run(name, func(t *testing.T) {
			if err := cfg.Validate(); err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !cfg.HasLocale(cfg.DefaultLocale()) {
				t.Errorf("default locale %q missing from %v", cfg.DefaultLocale(), cfg.LocaleCodes())
			}
		})
	}
}

func TestValidate_DefaultLocaleNotListed(t *testing.T) {
	cfg := siteconfig.Default()
	cfg.I18n = &siteconfig.I18n{
		DefaultLocale: "fr",
		Locales:       []siteconfig.Locale{{Code: "en", Name: "English"}},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for default locale outside locale list")
	}
	if !strings.Contains(err.Error(), "fr") {
		t.Errorf("error should name the locale, got %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*siteconfig.Config)
	}{
		{"empty prefix", func(c *siteconfig.Config) { c.AppPrefix = " " }},
		{"relative base url", func(c *siteconfig.Config) { c.BaseURL = "/site" }},
		{"no locales", func(c *siteconfig.Config) { c.I18n.Locales = nil }},
		{"duplicate locale", func(c *siteconfig.Config) {
			c.I18n.Locales = append(c.I18n.Locales, siteconfig.Locale{Code: "en"})
		}},
		{"bad theme", func(c *siteconfig.Config) { c.Theme = &siteconfig.Theme{DefaultTheme: "neon"} }},
		{"plan without price", func(c *siteconfig.Config) {
			c.Billing = &siteconfig.Billing{Plans: []siteconfig.Plan{{Name: "Pro"}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := siteconfig.Default()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDefaultLocale_FallbackWithoutI18n(t *testing.T) {
	cfg := siteconfig.Default()
	cfg.I18n = nil
	if cfg.DefaultLocale() != siteconfig.FallbackLocale {
		t.Errorf("DefaultLocale = %q, want %q", cfg.DefaultLocale(), siteconfig.FallbackLocale)
	}
	if len(cfg.LocaleCodes()) != 0 {
		t.Errorf("LocaleCodes = %v, want empty", cfg.LocaleCodes())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate without i18n: %v", err)
	}
}

func TestParse_OverridesAndDisables(t *testing.T) {
	doc := `
app_prefix: acme
base_url: https://acme.example
content: false
i18n: null
seo:
  title: Acme
  description: Rockets
billing:
  plans:
    - name: Pro
      price_id: price_123
      annual_price_id: price_456
`
	cfg, err := siteconfig.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AppPrefix != "acme" || cfg.ContentEnabled() || cfg.I18nEnabled() {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.SiteTitle() != "Acme" {
		t.Errorf("SiteTitle = %q", cfg.SiteTitle())
	}
	if len(cfg.HeaderMenus) == 0 {
		t.Error("expected default header menus to survive")
	}
	if !cfg.BillingEnabled() || cfg.Billing.Plans[0].AnnualPriceID != "price_456" {
		t.Errorf("billing = %+v", cfg.Billing)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := siteconfig.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AppPrefix != siteconfig.Default().AppPrefix {
		t.Errorf("AppPrefix = %q", cfg.AppPrefix)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "site.yaml")
	if err := os.WriteFile(path, []byte("app_prefix: demo\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := siteconfig.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SessionCookieName() != "demo.session_token" {
		t.Errorf("SessionCookieName = %q", cfg.SessionCookieName())
	}
}

func TestURL(t *testing.T) {
	cfg := siteconfig.Default()
	cfg.BaseURL = "https://x.test/"
	if got := cfg.URL("/blog/rss.xml"); got != "https://x.test/blog/rss.xml" {
		t.Errorf("URL = %q", got)
	}
}
