// Package timeouts provides the deadlines used around database and outbound
// calls. Values are process-wide and set once at startup.
//
//   - Ping: health checks
//   - Short: single-row reads, session lookups
//   - Medium: list queries, multi-statement writes
//   - Long: migrations and content reloads
//   - Outbound: calls to third parties (captcha, OAuth, Stripe)
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config holds timeout values. Zero fields keep the current value.
type Config struct {
	Ping     time.Duration
	Short    time.Duration
	Medium   time.Duration
	Long     time.Duration
	Outbound time.Duration
}

// Defaults are the values in effect until Configure is called.
var Defaults = Config{
	Ping:     2 * time.Second,
	Short:    5 * time.Second,
	Medium:   10 * time.Second,
	Long:     30 * time.Second,
	Outbound: 8 * time.Second,
}

var (
	mu  sync.RWMutex
	cur = Defaults
)

func get(f func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return f(cur)
}

func Ping() time.Duration     { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration    { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration   { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration     { return get(func(c Config) time.Duration { return c.Long }) }
func Outbound() time.Duration { return get(func(c Config) time.Duration { return c.Outbound }) }

// Configure applies the non-zero fields of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	set := func(dst *time.Duration, v time.Duration) {
		if v > 0 {
			*dst = v
		}
	}
	set(&cur.Ping, cfg.Ping)
	set(&cur.Short, cfg.Short)
	set(&cur.Medium, cfg.Medium)
	set(&cur.Long, cfg.Long)
	set(&cur.Outbound, cfg.Outbound)
}

// Reset restores the defaults. Used by tests.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = Defaults
}

// Current returns the values in effect.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return cur
}

// FromLookup reads TIMEOUT_PING, TIMEOUT_SHORT, TIMEOUT_MEDIUM, TIMEOUT_LONG
// and TIMEOUT_OUTBOUND through lookup. Unset or invalid values stay zero.
func FromLookup(lookup func(string) (string, bool)) Config {
	parse := func(key string) time.Duration {
		v, ok := lookup(key)
		if !ok {
			return 0
		}
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return 0
		}
		return d
	}
	return Config{
		Ping:     parse("TIMEOUT_PING"),
		Short:    parse("TIMEOUT_SHORT"),
		Medium:   parse("TIMEOUT_MEDIUM"),
		Long:     parse("TIMEOUT_LONG"),
		Outbound: parse("TIMEOUT_OUTBOUND"),
	}
}

// WithTimeout is context.WithTimeout whose cancel func logs a warning when
// the deadline was hit.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Outbound(), h.Log, "turnstile verify")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
