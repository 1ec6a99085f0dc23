// Package envresolve decides where secrets and connection strings come from.
//
// In development the local secrets file (.dev.vars, dotenv format) is loaded
// into the process environment and the resulting table is returned. In any
// other mode the table comes from the hosting platform.
package envresolve

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Mode is the runtime context the process is running in.
type Mode string

const (
	Development Mode = "development"
	Production  Mode = "production"
)

// DefaultSecretsFile is the dotenv file read in development.
const DefaultSecretsFile = ".dev.vars"

// ModeFromEnv maps the service env flag ("dev", "prod", ...) onto a Mode.
func ModeFromEnv(env string) Mode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development", "local":
		return Development
	default:
		return Production
	}
}

// PlatformSource supplies the variable table when not in development.
type PlatformSource interface {
	Env(ctx context.Context) (map[string]string, error)
}

// ProcessPlatform reads bindings the host injected into the process
// environment.
type ProcessPlatform struct{}

// Env returns the current process environment.
func (ProcessPlatform) Env(context.Context) (map[string]string, error) {
	return environ(), nil
}

// StaticPlatform is a fixed table, used by tests and one-off tools.
type StaticPlatform map[string]string

// Env returns a copy of the table.
func (s StaticPlatform) Env(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// Resolver produces a Snapshot for the configured mode.
type Resolver struct {
	Mode        Mode
	SecretsFile string
	Platform    PlatformSource
	Log         *zap.Logger
}

// New builds a Resolver. An empty secretsFile means DefaultSecretsFile and a
// nil platform means ProcessPlatform.
func New(mode Mode, secretsFile string, platform PlatformSource, logger *zap.Logger) *Resolver {
	if secretsFile == "" {
		secretsFile = DefaultSecretsFile
	}
	if platform == nil {
		platform = ProcessPlatform{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{Mode: mode, SecretsFile: secretsFile, Platform: platform, Log: logger}
}

// Resolve returns the variable table for this process.
//
// Development: every pair in the secrets file is written into the process
// environment, replacing existing values, and the full process table is
// returned. A missing secrets file is an error.
func (r *Resolver) Resolve(ctx context.Context) (Snapshot, error) {
	if r.Mode == Development {
		vars, err := godotenv.Read(r.SecretsFile)
		if err != nil {
			return Snapshot{}, fmt.Errorf("load secrets file %s: %w", r.SecretsFile, err)
		}
		for k, v := range vars {
			if err := os.Setenv(k, v); err != nil {
				return Snapshot{}, fmt.Errorf("set %s from %s: %w", k, r.SecretsFile, err)
			}
		}
		r.Log.Info("loaded development secrets",
			zap.String("file", r.SecretsFile),
			zap.Int("count", len(vars)))
		return NewSnapshot(environ()), nil
	}

	vars, err := r.Platform.Env(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read platform environment: %w", err)
	}
	return NewSnapshot(vars), nil
}

// Snapshot is an immutable variable table.
type Snapshot struct {
	vars map[string]string
}

// NewSnapshot copies vars into a Snapshot.
func NewSnapshot(vars map[string]string) Snapshot {
	cp := make(map[string]string, len(vars))
	for k, v := range vars {
		cp[k] = v
	}
	return Snapshot{vars: cp}
}

// Get returns the value for name, or "".
func (s Snapshot) Get(name string) string {
	return s.vars[name]
}

// Lookup returns the value and whether it is set to a non-empty string.
func (s Snapshot) Lookup(name string) (string, bool) {
	v, ok := s.vars[name]
	return v, ok && v != ""
}

// Len returns the number of variables.
func (s Snapshot) Len() int { return len(s.vars) }

// Require returns a *MissingError naming every absent or empty variable.
func (s Snapshot) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := s.Lookup(n); !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &MissingError{Names: missing}
	}
	return nil
}

// MissingError reports required variables that were not set.
type MissingError struct {
	Names []string
}

func (e *MissingError) Error() string {
	names := append([]string(nil), e.Names...)
	sort.Strings(names)
	return "missing required environment variables: " + strings.Join(names, ", ")
}

func environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			out[k] = v
		}
	}
	return out
}
