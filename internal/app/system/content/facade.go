package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/system/metrics"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Collection directory names and their URL prefixes.
const (
	BlogDir  = "blog"
	PageDir  = "page"
	BlogBase = "/blog"
	PageBase = "/page"
)

// Options configure a Facade.
type Options struct {
	// Dir is the content root on disk. Required for Watch.
	Dir string
	// FS overrides Dir as the source of files (tests, embedded content).
	FS fs.FS
	// Locales lists the configured locale codes; empty means a single
	// default locale.
	Locales       []string
	DefaultLocale string
}

// Facade gives handlers the blog and page collections. Each collection is
// loaded on first use and kept for the process lifetime. Reload replaces the
// entries and the error a collection reports.
type Facade struct {
	opts Options
	fsys fs.FS
	log  *zap.Logger

	blog  *Collection
	pages *Collection

	blogOnce sync.Once
	pageOnce sync.Once

	mu      sync.RWMutex // guards blogErr, pageErr
	blogErr error
	pageErr error

	reloadMu sync.Mutex
}

// NewFacade builds a facade over opts. Nothing is read until a collection
// is requested.
func NewFacade(opts Options, logger *zap.Logger) *Facade {
	if opts.DefaultLocale == "" {
		opts.DefaultLocale = "en"
	}
	if len(opts.Locales) == 0 {
		opts.Locales = []string{opts.DefaultLocale}
	}
	fsys := opts.FS
	if fsys == nil {
		fsys = os.DirFS(opts.Dir)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Facade{
		opts:  opts,
		fsys:  fsys,
		log:   logger,
		blog:  newCollection(BlogDir, BlogBase, opts.Locales, opts.DefaultLocale),
		pages: newCollection(PageDir, PageBase, opts.Locales, opts.DefaultLocale),
	}
}

// Blog returns the blog collection served under /blog.
func (f *Facade) Blog() (*Collection, error) {
	f.blogOnce.Do(func() { f.setErr(&f.blogErr, f.loadCollection(f.blog)) })
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.blog, f.blogErr
}

// Pages returns the page collection served under /page.
func (f *Facade) Pages() (*Collection, error) {
	f.pageOnce.Do(func() { f.setErr(&f.pageErr, f.loadCollection(f.pages)) })
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.pages, f.pageErr
}

func (f *Facade) setErr(dst *error, err error) {
	f.mu.Lock()
	*dst = err
	f.mu.Unlock()
}

// DefaultLocale is the locale entries fall back to.
func (f *Facade) DefaultLocale() string { return f.opts.DefaultLocale }

func (f *Facade) loadCollection(c *Collection) error {
	start := time.Now()
	n, err := c.load(f.fsys, c.name)
	if err != nil {
		f.log.Error("content load failed", zap.String("collection", c.name), zap.Error(err))
		return fmt.Errorf("load %s: %w", c.name, err)
	}
	metrics.ContentEntries.WithLabelValues(c.name).Set(float64(n))
	f.log.Info("content loaded",
		zap.String("collection", c.name),
		zap.Int("entries", n),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Reload re-reads both collections. A collection that fails to load keeps
// its previous entries and reports the error until a later reload succeeds.
func (f *Facade) Reload() error {
	f.reloadMu.Lock()
	defer f.reloadMu.Unlock()

	// Consume the first-use loads so they cannot overwrite this result.
	f.blogOnce.Do(func() {})
	f.pageOnce.Do(func() {})

	blogErr := f.loadCollection(f.blog)
	pageErr := f.loadCollection(f.pages)
	f.setErr(&f.blogErr, blogErr)
	f.setErr(&f.pageErr, pageErr)
	return errors.Join(blogErr, pageErr)
}

// Watch reloads content when files under Dir change, until ctx is done.
// Bursts of events within debounce trigger one reload.
func (f *Facade) Watch(ctx context.Context, debounce time.Duration) error {
	if f.opts.Dir == "" {
		return errors.New("content: Watch needs Options.Dir")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := addTree(w, f.opts.Dir); err != nil {
		w.Close()
		return err
	}
	f.log.Info("watching content", zap.String("dir", f.opts.Dir))

	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&fsnotify.Create != 0 {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
						_ = addTree(w, ev.Name)
					}
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.log.Warn("content watcher error", zap.Error(err))
			case <-fire:
				fire = nil
				if err := f.Reload(); err != nil {
					f.log.Warn("content reload failed", zap.Error(err))
				}
			}
		}
	}()
	return nil
}

// addTree watches dir and every directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.Add(p); err != nil {
				return fmt.Errorf("watch %s: %w", p, err)
			}
		}
		return nil
	})
}
