// Package database selects and builds the persistence handle.
//
// Two engines are supported: a networked Postgres pool and an embedded
// SQLite/libSQL client (local file or remote replica). The Selector builds
// at most one Handle per kind for its lifetime and hands the same pointer to
// every caller.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Kind names a persistence engine.
type Kind string

const (
	Networked Kind = "networked"
	Embedded  Kind = "embedded"
)

// Dialects understood by the migrations and stores.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ParseKind validates a kind string from configuration.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case Networked, "postgres", "pg":
		return Networked, nil
	case Embedded, "sqlite", "libsql":
		return Embedded, nil
	}
	return "", fmt.Errorf("unknown database kind %q (want %q or %q)", s, Networked, Embedded)
}

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
	sqlx.BindDriver("libsql", sqlx.QUESTION)
}

// Handle is an opened persistence client.
type Handle struct {
	Kind    Kind
	Dialect string
	DB      *sqlx.DB
}

// Rebind rewrites "?" placeholders for the handle's driver.
func (h *Handle) Rebind(query string) string {
	return h.DB.Rebind(query)
}

// Ping verifies the connection.
func (h *Handle) Ping(ctx context.Context) error {
	return h.DB.PingContext(ctx)
}

// Close releases the underlying pool.
func (h *Handle) Close() error {
	return h.DB.Close()
}

// NewHandle wraps an existing *sql.DB; driverName selects the bind style.
func NewHandle(kind Kind, dialect string, db *sql.DB, driverName string) *Handle {
	return &Handle{Kind: kind, Dialect: dialect, DB: sqlx.NewDb(db, driverName)}
}

// ConfigError reports connection fields that were not provided.
type ConfigError struct {
	Kind    Kind
	Missing []string
}

func (e *ConfigError) Error() string {
	names := append([]string(nil), e.Missing...)
	sort.Strings(names)
	return fmt.Sprintf("database %s: missing connection settings: %s", e.Kind, strings.Join(names, ", "))
}
