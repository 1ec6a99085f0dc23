// Package seo builds page metadata (title, OpenGraph, Twitter card and
// alternate links) from the site record.
package seo

import (
	"fmt"
	"strings"

	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
)

// DefaultImage is the social preview image served from the site root.
const DefaultImage = "/og.png"

// Title is a page title. Absolute ignores Template; otherwise a page title
// is rendered through Template and Default is used when the page has none.
type Title struct {
	Default  string
	Template string
	Absolute string
}

type OpenGraph struct {
	Title       string
	Description string
	URL         string
	Image       string
	SiteName    string
	Type        string
}

type Twitter struct {
	Card        string
	Title       string
	Description string
	Image       string
	Creator     string
}

// Alternates are canonical and alternate-format links.
type Alternates struct {
	Canonical string
	RSS       string
	Languages map[string]string
}

// Metadata is what templates render into <head>.
type Metadata struct {
	Title       Title
	Description string
	Keywords    []string
	Authors     []string
	Creator     string
	Publisher   string
	OpenGraph   OpenGraph
	Twitter     Twitter
	Alternates  Alternates
	NoIndex     bool
}

// CreateMetadata returns the site defaults with every non-empty field of
// override laid over them.
func CreateMetadata(cfg siteconfig.Config, override Metadata) Metadata {
	seo := cfg.SEO
	if seo == nil {
		seo = &siteconfig.SEO{}
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	title := override.Title.Absolute
	if title == "" {
		title = override.Title.Default
	}
	if title == "" {
		title = cfg.SiteTitle()
	}
	desc := firstNonEmpty(override.Description, cfg.SiteDescription())

	m := Metadata{
		Title:       Title{Default: cfg.SiteTitle()},
		Description: desc,
		Keywords:    seo.Keywords,
		Creator:     seo.Creator,
		Publisher:   seo.Publisher,
		OpenGraph: OpenGraph{
			Title:       title,
			Description: desc,
			URL:         base,
			Image:       cfg.URL(DefaultImage),
			SiteName:    cfg.SiteTitle(),
			Type:        "website",
		},
		Twitter: Twitter{
			Card:        "summary_large_image",
			Title:       title,
			Description: desc,
			Image:       cfg.URL(DefaultImage),
			Creator:     seo.TwitterCreator,
		},
		Alternates: Alternates{
			Canonical: base,
			RSS:       cfg.URL("/blog/rss.xml"),
		},
	}
	if seo.Author != "" {
		m.Authors = []string{seo.Author}
	}
	if cfg.I18nEnabled() {
		m.Alternates.Languages = make(map[string]string)
		for _, code := range cfg.LocaleCodes() {
			m.Alternates.Languages[code] = base
		}
	}

	return merge(m, override)
}

// RootMetadata is the metadata of the site shell: page titles render as
// "<page> | <site title>".
func RootMetadata(cfg siteconfig.Config) Metadata {
	return CreateMetadata(cfg, Metadata{
		Title: Title{
			Default:  cfg.SiteTitle(),
			Template: "%s | " + cfg.SiteTitle(),
		},
	})
}

// Page returns metadata for a single page at path.
func Page(cfg siteconfig.Config, title, description, path string) Metadata {
	root := RootMetadata(cfg)
	m := CreateMetadata(cfg, Metadata{
		Title:       Title{Default: title, Template: root.Title.Template},
		Description: description,
		OpenGraph:   OpenGraph{URL: cfg.URL(path), Type: "article"},
		Alternates:  Alternates{Canonical: cfg.URL(path)},
	})
	return m
}

// Render returns the <title> text for m.
func (m Metadata) Render() string {
	if m.Title.Absolute != "" {
		return m.Title.Absolute
	}
	if m.Title.Template != "" && m.Title.Default != "" && strings.Contains(m.Title.Template, "%s") {
		return fmt.Sprintf(m.Title.Template, m.Title.Default)
	}
	return m.Title.Default
}

func merge(m, o Metadata) Metadata {
	if o.Title != (Title{}) {
		m.Title.Default = firstNonEmpty(o.Title.Default, m.Title.Default)
		m.Title.Template = o.Title.Template
		m.Title.Absolute = o.Title.Absolute
	}
	m.Description = firstNonEmpty(o.Description, m.Description)
	if len(o.Keywords) > 0 {
		m.Keywords = o.Keywords
	}
	if len(o.Authors) > 0 {
		m.Authors = o.Authors
	}
	m.Creator = firstNonEmpty(o.Creator, m.Creator)
	m.Publisher = firstNonEmpty(o.Publisher, m.Publisher)
	m.NoIndex = m.NoIndex || o.NoIndex

	og := &m.OpenGraph
	og.Title = firstNonEmpty(o.OpenGraph.Title, og.Title)
	og.Description = firstNonEmpty(o.OpenGraph.Description, og.Description)
	og.URL = firstNonEmpty(o.OpenGraph.URL, og.URL)
	og.Image = firstNonEmpty(o.OpenGraph.Image, og.Image)
	og.SiteName = firstNonEmpty(o.OpenGraph.SiteName, og.SiteName)
	og.Type = firstNonEmpty(o.OpenGraph.Type, og.Type)

	tw := &m.Twitter
	tw.Card = firstNonEmpty(o.Twitter.Card, tw.Card)
	tw.Title = firstNonEmpty(o.Twitter.Title, tw.Title)
	tw.Description = firstNonEmpty(o.Twitter.Description, tw.Description)
	tw.Image = firstNonEmpty(o.Twitter.Image, tw.Image)
	tw.Creator = firstNonEmpty(o.Twitter.Creator, tw.Creator)

	alt := &m.Alternates
	alt.Canonical = firstNonEmpty(o.Alternates.Canonical, alt.Canonical)
	alt.RSS = firstNonEmpty(o.Alternates.RSS, alt.RSS)
	if len(o.Alternates.Languages) > 0 {
		alt.Languages = o.Alternates.Languages
	}
	return m
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
