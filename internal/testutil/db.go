package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/store/migrations"
	"github.com/dalemusser/scratchstarter/internal/app/system/database"
)

// SetupTestDB opens a private in-memory SQLite database with every
// migration applied. It is closed when the test finishes.
func SetupTestDB(t *testing.T) *database.Handle {
	t.Helper()

	ctx, cancel := TestContext()
	defer cancel()

	h, err := database.OpenSQLite(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	if err := migrations.Apply(ctx, h.DB); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return h
}

// TestContext returns a context bounded for a single test step.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}
