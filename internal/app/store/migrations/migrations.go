// Package migrations creates the tables used by the auth engine, the
// billing plugin, and the audit log.
//
// The statements are written in the subset of SQL shared by Postgres and
// SQLite, so the same files serve both persistence kinds. Every statement is
// idempotent; Apply runs them all on every start.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var files embed.FS

// Execer is satisfied by *sql.DB, *sql.Tx, and *sqlx.DB.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migration is one ordered schema statement.
type Migration struct {
	Name string
	SQL  string
}

// All returns the migrations in apply order.
func All() ([]Migration, error) {
	names, err := fs.Glob(files, "sql/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]Migration, 0, len(names))
	for _, name := range names {
		b, err := files.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out = append(out, Migration{
			Name: strings.TrimSuffix(strings.TrimPrefix(name, "sql/"), ".sql"),
			SQL:  strings.TrimSpace(string(b)),
		})
	}
	return out, nil
}

// Apply executes every migration in order, stopping at the first failure.
func Apply(ctx context.Context, db Execer) error {
	migs, err := All()
	if err != nil {
		return err
	}
	for _, m := range migs {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}
