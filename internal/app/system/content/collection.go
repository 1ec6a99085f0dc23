package content

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Collection is one content tree (blog or pages) indexed by locale and slug.
type Collection struct {
	name    string
	baseURL string
	locales []string
	def     string

	mu      sync.RWMutex
	entries map[string]map[string]*Entry // locale -> slug -> entry
}

func newCollection(name, baseURL string, locales []string, defaultLocale string) *Collection {
	return &Collection{
		name:    name,
		baseURL: baseURL,
		locales: locales,
		def:     defaultLocale,
		entries: map[string]map[string]*Entry{},
	}
}

// Name is the collection's directory name ("blog" or "page").
func (c *Collection) Name() string { return c.name }

// BaseURL is the URL prefix entries are served under.
func (c *Collection) BaseURL() string { return c.baseURL }

// load replaces the index with the files under dir in fsys. A missing dir
// yields an empty collection.
func (c *Collection) load(fsys fs.FS, dir string) (int, error) {
	entries := map[string]map[string]*Entry{}
	count := 0

	err := fs.WalkDir(fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		if d.IsDir() || !isMarkdown(p) {
			return nil
		}

		rel := strings.TrimPrefix(p, dir+"/")
		locale, slug := c.splitPath(rel)

		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		e, err := parseEntry(src)
		if err != nil {
			return fmt.Errorf("%s/%s: %w", c.name, rel, err)
		}
		e.Slug = slug
		e.Locale = locale
		e.URL = c.url(slug)
		e.Path = rel
		if e.Title == "" {
			e.Title = titleFromSlug(slug)
		}

		if entries[locale] == nil {
			entries[locale] = map[string]*Entry{}
		}
		entries[locale][slug] = e
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()
	return count, nil
}

// splitPath maps a path relative to the collection to (locale, slug).
func (c *Collection) splitPath(rel string) (string, string) {
	locale := c.def
	if first, rest, ok := strings.Cut(rel, "/"); ok && c.isLocale(first) {
		locale, rel = first, rest
	}
	slug := strings.TrimSuffix(rel, path.Ext(rel))
	if slug == "index" {
		slug = ""
	} else {
		slug = strings.TrimSuffix(slug, "/index")
	}
	return locale, slug
}

func (c *Collection) isLocale(code string) bool {
	for _, l := range c.locales {
		if l == code {
			return true
		}
	}
	return false
}

func (c *Collection) url(slug string) string {
	if slug == "" {
		return c.baseURL
	}
	return c.baseURL + "/" + slug
}

// Get returns the entry for slug in locale, falling back to the default
// locale when there is no translation.
func (c *Collection) Get(slug, locale string) (*Entry, error) {
	slug = strings.Trim(slug, "/")

	c.mu.RLock()
	defer c.mu.RUnlock()

	if e, ok := c.entries[locale][slug]; ok {
		return e, nil
	}
	if e, ok := c.entries[c.def][slug]; ok {
		return e, nil
	}
	return nil, ErrNotFound
}

// List returns the published entries visible in locale, newest first.
// Untranslated entries appear in their default-locale version.
func (c *Collection) List(locale string) []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := map[string]*Entry{}
	for slug, e := range c.entries[c.def] {
		seen[slug] = e
	}
	if locale != c.def {
		for slug, e := range c.entries[locale] {
			seen[slug] = e
		}
	}

	out := make([]*Entry, 0, len(seen))
	for _, e := range seen {
		if !e.Draft {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

// Slugs returns every slug across locales, sorted.
func (c *Collection) Slugs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set := map[string]bool{}
	for _, bySlug := range c.entries {
		for slug := range bySlug {
			set[slug] = true
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of loaded files.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, bySlug := range c.entries {
		n += len(bySlug)
	}
	return n
}

func isMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".mdx", ".markdown":
		return true
	}
	return false
}

func titleFromSlug(slug string) string {
	base := path.Base(slug)
	if slug == "" || base == "." {
		return "Home"
	}
	words := strings.FieldsFunc(base, func(r rune) bool { return r == '-' || r == '_' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
