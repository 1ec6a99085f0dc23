// Package siteconfig holds the declarative site record: branding, SEO
// defaults, locales, menus and social links.
//
// The record is loaded once at startup and treated as read-only afterwards.
// Every other component reads from it; it depends on nothing.
package siteconfig

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FallbackLocale is used whenever the i18n block is absent or has no default.
const FallbackLocale = "en"

// Config is the site record.
type Config struct {
	AppPrefix   string       `yaml:"app_prefix"`
	BaseURL     string       `yaml:"base_url"`
	Content     bool         `yaml:"content"`
	Theme       *Theme       `yaml:"theme,omitempty"`
	SEO         *SEO         `yaml:"seo,omitempty"`
	I18n        *I18n        `yaml:"i18n,omitempty"`
	Billing     *Billing     `yaml:"billing,omitempty"`
	HeaderMenus []MenuItem   `yaml:"header_menus,omitempty"`
	FooterMenus []MenuGroup  `yaml:"footer_menus,omitempty"`
	SocialLinks []SocialLink `yaml:"social_links,omitempty"`
}

// Theme selects the initial color scheme.
type Theme struct {
	DefaultTheme string `yaml:"default_theme"` // light, dark or system
}

// SEO carries the site-wide metadata defaults.
type SEO struct {
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Keywords       []string `yaml:"keywords,omitempty"`
	Author         string   `yaml:"author,omitempty"`
	Creator        string   `yaml:"creator,omitempty"`
	Publisher      string   `yaml:"publisher,omitempty"`
	TwitterCreator string   `yaml:"twitter_creator,omitempty"`
}

// I18n lists the supported locales.
type I18n struct {
	DefaultLocale string   `yaml:"default_locale"`
	Locales       []Locale `yaml:"locales"`
}

// Locale is one selectable language.
type Locale struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
	Flag string `yaml:"flag,omitempty"`
}

// Billing lists the subscription plans offered on the pricing section.
type Billing struct {
	Plans []Plan `yaml:"plans"`
}

// Plan maps a display plan onto Stripe prices.
type Plan struct {
	Name          string         `yaml:"name"`
	PriceID       string         `yaml:"price_id"`
	AnnualPriceID string         `yaml:"annual_price_id,omitempty"`
	Price         string         `yaml:"price,omitempty"`
	Features      []string       `yaml:"features,omitempty"`
	Limits        map[string]int `yaml:"limits,omitempty"`
}

// MenuItem is a header link.
type MenuItem struct {
	Name     string `yaml:"name"`
	Href     string `yaml:"href"`
	External bool   `yaml:"external,omitempty"`
}

// MenuGroup is a titled column of footer links.
type MenuGroup struct {
	Group string     `yaml:"group"`
	Items []MenuItem `yaml:"items"`
}

// SocialLink is an icon link in the footer.
type SocialLink struct {
	Name string `yaml:"name"`
	Href string `yaml:"href"`
	Icon string `yaml:"icon"`
}

// Default returns the built-in site record.
func Default() Config {
	return Config{
		AppPrefix: "scratch-starter",
		BaseURL:   "http://localhost:3000",
		Content:   true,
		I18n: &I18n{
			DefaultLocale: "en",
			Locales:       []Locale{{Code: "en", Name: "English", Flag: "🇺🇸"}},
		},
		SEO: &SEO{
			Title:          "Scratch Starter",
			Description:    "The library for building documentation sites",
			TwitterCreator: "@money_is_shark",
		},
		HeaderMenus: []MenuItem{
			{Name: "Features", Href: "/#features"},
			{Name: "Pricing", Href: "/#pricing"},
			{Name: "FAQs", Href: "/#faqs"},
			{Name: "Blog", Href: "/blog"},
		},
		FooterMenus: []MenuGroup{
			{Group: "Features", Items: []MenuItem{{Name: "About", Href: "#link"}}},
			{Group: "Solution", Items: []MenuItem{{Name: "About", Href: "#link"}}},
			{Group: "Company", Items: []MenuItem{{Name: "About", Href: "#link"}}},
			{Group: "Legal", Items: []MenuItem{{Name: "Privacy Policy", Href: "#link"}}},
		},
		SocialLinks: []SocialLink{
			{Name: "Github", Href: "https://github.com/scratchstarterdev", Icon: "IconBrandGithub"},
			{Name: "X", Href: "#link", Icon: "IconBrandX"},
			{Name: "Instagram", Href: "#link", Icon: "IconBrandInstagram"},
		},
	}
}

// Load reads a YAML site file over the defaults. A missing file is not an
// error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read site config %s: %w", path, err)
	}

	return Parse(b)
}

// Parse decodes a YAML document over the defaults. Keys present in the
// document win, lists are replaced whole, and "i18n: null" disables i18n.
func Parse(b []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse site config: %w", err)
	}
	return cfg, nil
}

// Validate checks the record's invariants.
func (c Config) Validate() error {
	if strings.TrimSpace(c.AppPrefix) == "" {
		return errors.New("app_prefix is required")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q must be an absolute URL", c.BaseURL)
	}
	if c.I18n != nil {
		if len(c.I18n.Locales) == 0 {
			return errors.New("i18n.locales must list at least one locale")
		}
		seen := make(map[string]bool, len(c.I18n.Locales))
		for _, l := range c.I18n.Locales {
			if l.Code == "" {
				return errors.New("i18n.locales: code is required")
			}
			if seen[l.Code] {
				return fmt.Errorf("i18n.locales: duplicate code %q", l.Code)
			}
			seen[l.Code] = true
		}
		if !seen[c.DefaultLocale()] {
			return fmt.Errorf("i18n.default_locale %q is not one of the configured locales %v",
				c.DefaultLocale(), c.LocaleCodes())
		}
	}
	if c.Theme != nil {
		switch c.Theme.DefaultTheme {
		case "", "light", "dark", "system":
		default:
			return fmt.Errorf("theme.default_theme %q must be light, dark or system", c.Theme.DefaultTheme)
		}
	}
	if c.Billing != nil {
		for _, p := range c.Billing.Plans {
			if p.Name == "" || p.PriceID == "" {
				return errors.New("billing.plans: name and price_id are required")
			}
		}
	}
	return nil
}

// I18nEnabled reports whether the i18n block is present.
func (c Config) I18nEnabled() bool { return c.I18n != nil }

// ContentEnabled reports whether the documentation/content UI is on.
func (c Config) ContentEnabled() bool { return c.Content }

// BillingEnabled reports whether at least one plan is configured.
func (c Config) BillingEnabled() bool { return c.Billing != nil && len(c.Billing.Plans) > 0 }

// DefaultLocale returns the configured default locale, or FallbackLocale.
func (c Config) DefaultLocale() string {
	if c.I18n != nil && c.I18n.DefaultLocale != "" {
		return c.I18n.DefaultLocale
	}
	return FallbackLocale
}

// LocaleCodes returns the configured locale codes in declaration order.
// Without an i18n block the list is empty.
func (c Config) LocaleCodes() []string {
	if c.I18n == nil {
		return nil
	}
	codes := make([]string, 0, len(c.I18n.Locales))
	for _, l := range c.I18n.Locales {
		codes = append(codes, l.Code)
	}
	return codes
}

// Locales returns a copy of the configured locales.
func (c Config) Locales() []Locale {
	if c.I18n == nil {
		return nil
	}
	return append([]Locale(nil), c.I18n.Locales...)
}

// HasLocale reports whether code is a configured locale.
func (c Config) HasLocale(code string) bool {
	for _, l := range c.LocaleCodes() {
		if l == code {
			return true
		}
	}
	return false
}

// LocaleCookieName is the cookie holding the visitor's chosen locale.
func (c Config) LocaleCookieName() string { return c.AppPrefix + "_i18n" }

// SessionCookieName is the cookie carrying the auth session token.
func (c Config) SessionCookieName() string { return c.AppPrefix + ".session_token" }

// SiteTitle returns the SEO title or "App".
func (c Config) SiteTitle() string {
	if c.SEO != nil && c.SEO.Title != "" {
		return c.SEO.Title
	}
	return "App"
}

// SiteDescription returns the SEO description, if any.
func (c Config) SiteDescription() string {
	if c.SEO != nil {
		return c.SEO.Description
	}
	return ""
}

// DefaultTheme returns the theme default or "system".
func (c Config) DefaultTheme() string {
	if c.Theme != nil && c.Theme.DefaultTheme != "" {
		return c.Theme.DefaultTheme
	}
	return "system"
}

// URL joins a path onto the base URL.
func (c Config) URL(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
