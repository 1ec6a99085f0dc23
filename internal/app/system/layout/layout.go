// Package layout composes the per-request page frame from the site's
// enabled capabilities.
//
// Two optional stages exist and always run in this order when enabled:
//
//	i18n  (outer)  decides the page language and the locale switcher data
//	docs  (inner)  attaches the documentation UI provider, which reads the
//	               language decided by the i18n stage
//
// Stages only add data to the request's Frame; they hold no state.
package layout

import (
	"context"
	"net/http"

	"github.com/dalemusser/scratchstarter/internal/app/system/i18n"
	"github.com/dalemusser/scratchstarter/internal/app/system/siteconfig"
)

// Capability is a feature flag derived from the site config.
type Capability uint8

const (
	CapI18n Capability = 1 << iota // i18n block present
	CapDocs                        // content flag set
)

// Has reports whether every bit of c is in set.
func (set Capability) Has(c Capability) bool { return set&c == c }

// CapabilitiesFrom derives the capability set from cfg.
func CapabilitiesFrom(cfg siteconfig.Config) Capability {
	var caps Capability
	if cfg.I18nEnabled() {
		caps |= CapI18n
	}
	if cfg.ContentEnabled() {
		caps |= CapDocs
	}
	return caps
}

// LocaleOption is one entry of a locale switcher.
type LocaleOption struct {
	Locale string
	Name   string
	Flag   string
}

// I18nProvider carries the visitor's locale and the available locales.
type I18nProvider struct {
	Locale  string
	Locales []LocaleOption
}

// DocsI18n is the documentation UI's locale data.
type DocsI18n struct {
	Locale       string
	Locales      []LocaleOption
	Translations map[string]string
}

// DocsProvider enables the documentation UI. I18n is nil on sites without
// locales.
type DocsProvider struct {
	I18n *DocsI18n
}

// Frame is what templates read to build the page shell.
type Frame struct {
	Lang string
	I18n *I18nProvider
	Docs *DocsProvider
}

type ctxKey struct{}

// FrameFrom returns the frame stored by Wrap. Without any stage the frame
// has Lang set to the fallback locale and no providers.
func FrameFrom(ctx context.Context) Frame {
	if f, ok := ctx.Value(ctxKey{}).(Frame); ok {
		return f
	}
	return Frame{Lang: siteconfig.FallbackLocale}
}

// WithFrame stores f in ctx.
func WithFrame(ctx context.Context, f Frame) context.Context {
	return context.WithValue(ctx, ctxKey{}, f)
}

// Stage is one optional middleware of the composer.
type Stage struct {
	Name     string
	Requires Capability
	Wrap     func(http.Handler) http.Handler
}

// Composer applies the stages enabled by the capability set.
type Composer struct {
	caps   Capability
	stages []Stage // declared order, outermost first
}

// New builds the composer for cfg with the standard i18n and docs stages.
func New(cfg siteconfig.Config, locales *i18n.Resolver) *Composer {
	return NewWithStages(CapabilitiesFrom(cfg),
		i18nStage(cfg, locales),
		docsStage(cfg),
	)
}

// NewWithStages builds a composer over explicit stages, outermost first.
func NewWithStages(caps Capability, stages ...Stage) *Composer {
	return &Composer{caps: caps, stages: stages}
}

// Capabilities returns the set the composer was built with.
func (c *Composer) Capabilities() Capability { return c.caps }

// Active lists the names of enabled stages in application order.
func (c *Composer) Active() []string {
	var names []string
	for _, s := range c.enabled() {
		names = append(names, s.Name)
	}
	return names
}

func (c *Composer) enabled() []Stage {
	var out []Stage
	for _, s := range c.stages {
		if c.caps.Has(s.Requires) {
			out = append(out, s)
		}
	}
	return out
}

// Wrap threads h through the enabled stages, first stage outermost.
func (c *Composer) Wrap(h http.Handler) http.Handler {
	stages := c.enabled()
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i].Wrap(h)
	}
	return h
}

func localeOptions(cfg siteconfig.Config) []LocaleOption {
	var out []LocaleOption
	for _, l := range cfg.Locales() {
		out = append(out, LocaleOption{Locale: l.Code, Name: l.Name, Flag: l.Flag})
	}
	return out
}

func i18nStage(cfg siteconfig.Config, locales *i18n.Resolver) Stage {
	options := localeOptions(cfg)
	return Stage{
		Name:     "i18n",
		Requires: CapI18n,
		Wrap: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				f := FrameFrom(r.Context())
				f.Lang = locales.UserLocale(r)
				f.I18n = &I18nProvider{Locale: f.Lang, Locales: options}
				next.ServeHTTP(w, r.WithContext(WithFrame(r.Context(), f)))
			})
		},
	}
}

// docsTranslations holds the documentation UI strings per locale.
var docsTranslations = map[string]map[string]string{
	"cn": {"search": "Translated Content"},
}

func docsStage(cfg siteconfig.Config) Stage {
	options := localeOptions(cfg)
	i18nOn := cfg.I18nEnabled()
	return Stage{
		Name:     "docs",
		Requires: CapDocs,
		Wrap: func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				f := FrameFrom(r.Context())
				f.Docs = &DocsProvider{}
				if i18nOn {
					f.Docs.I18n = &DocsI18n{
						Locale:       f.Lang,
						Locales:      options,
						Translations: docsTranslations[f.Lang],
					}
				}
				next.ServeHTTP(w, r.WithContext(WithFrame(r.Context(), f)))
			})
		},
	}
}
