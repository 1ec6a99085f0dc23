package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v4/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	"github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite" // registers "sqlite"; serves file: URLs for libsql
)

// ConnInfo is what an Opener needs to build a Handle.
type ConnInfo struct {
	URL       string
	AuthToken string
}

// Opener builds a Handle for one kind.
type Opener func(ctx context.Context, conn ConnInfo) (*Handle, error)

// OpenPostgres opens a pgx-backed pool that closes every connection as soon
// as it is released, so no session state survives from one use to the next.
func OpenPostgres(ctx context.Context, conn ConnInfo) (*Handle, error) {
	db, err := sqlx.Open("pgx", conn.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxIdleConns(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Handle{Kind: Networked, Dialect: DialectPostgres, DB: db}, nil
}

// OpenLibSQL opens an embedded client. Remote URLs (libsql://, https://,
// wss://) go to the replica endpoint with the auth token; file: URLs and
// bare paths are served by the local sqlite driver.
func OpenLibSQL(ctx context.Context, conn ConnInfo) (*Handle, error) {
	dsn := normalizeFileURL(conn.URL)

	var opts []libsql.Option
	if conn.AuthToken != "" {
		opts = append(opts, libsql.WithAuthToken(conn.AuthToken))
	}
	connector, err := libsql.NewConnector(dsn, opts...)
	if err != nil {
		return nil, fmt.Errorf("libsql connector: %w", err)
	}

	db := sqlx.NewDb(sql.OpenDB(connector), "libsql")
	if isFileURL(dsn) {
		// SQLite allows a single writer.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping libsql: %w", err)
	}
	return &Handle{Kind: Embedded, Dialect: DialectSQLite, DB: db}, nil
}

// OpenSQLite opens a local SQLite database directly through modernc.
// Used for tests and local tooling.
func OpenSQLite(ctx context.Context, dsn string) (*Handle, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Handle{Kind: Embedded, Dialect: DialectSQLite, DB: db}, nil
}

func normalizeFileURL(raw string) string {
	if strings.Contains(raw, "://") || strings.HasPrefix(raw, "file:") {
		return raw
	}
	return "file:" + raw
}

func isFileURL(raw string) bool {
	return strings.HasPrefix(raw, "file:")
}

func isRemoteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch u.Scheme {
	case "libsql", "https", "http", "wss", "ws":
		return true
	}
	return false
}
