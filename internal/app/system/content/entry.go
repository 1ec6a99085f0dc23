// Package content loads the markdown blog and pages from disk.
//
// Files live under <root>/blog and <root>/page. The first directory below a
// collection names the locale when it is a configured locale code; anything
// else belongs to the default locale. URLs never carry the locale:
//
//	content/blog/hello.md        -> /blog/hello (default locale)
//	content/blog/fr/hello.md     -> /blog/hello (fr)
//	content/page/about/index.md  -> /page/about
package content

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/htmlsanitize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no entry matches a slug in any locale.
var ErrNotFound = errors.New("content: entry not found")

// Entry is one rendered markdown document.
type Entry struct {
	Slug        string
	Locale      string
	URL         string
	Title       string
	Description string
	Date        time.Time
	Author      string
	Tags        []string
	Draft       bool
	Image       string
	HTML        template.HTML
	Path        string // source path relative to the collection root
}

type frontMatter struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Date        string   `yaml:"date"`
	Author      string   `yaml:"author"`
	Tags        []string `yaml:"tags"`
	Draft       bool     `yaml:"draft"`
	Image       string   `yaml:"image"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// splitFrontMatter separates a leading "---" YAML block from the body.
func splitFrontMatter(src []byte) (meta, body []byte) {
	src = bytes.TrimPrefix(src, []byte("\ufeff"))
	normalized := bytes.ReplaceAll(src, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return nil, normalized
	}
	rest := normalized[4:]
	if end := bytes.Index(rest, []byte("\n---")); end >= 0 {
		meta = rest[:end]
		body = rest[end+4:]
		body = bytes.TrimPrefix(body, []byte("\n"))
		return meta, body
	}
	return nil, normalized
}

// parseEntry renders src into an Entry. Slug, locale and URL are filled in
// by the caller.
func parseEntry(src []byte) (*Entry, error) {
	meta, body := splitFrontMatter(src)

	var fm frontMatter
	if len(meta) > 0 {
		if err := yaml.Unmarshal(meta, &fm); err != nil {
			return nil, fmt.Errorf("front matter: %w", err)
		}
	}
	date, err := parseDate(fm.Date)
	if err != nil {
		return nil, fmt.Errorf("front matter: %w", err)
	}

	var buf bytes.Buffer
	if err := md.Convert(body, &buf); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	return &Entry{
		Title:       fm.Title,
		Description: fm.Description,
		Date:        date,
		Author:      fm.Author,
		Tags:        fm.Tags,
		Draft:       fm.Draft,
		Image:       fm.Image,
		HTML:        template.HTML(htmlsanitize.SanitizeBytes(buf.Bytes())),
	}, nil
}
