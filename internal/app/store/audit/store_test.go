package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/store/audit"
	"github.com/dalemusser/scratchstarter/internal/testutil"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	event := audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    "user-1",
		IP:        "192.168.1.1",
		UserAgent: "TestBrowser/1.0",
		Success:   true,
		Details:   map[string]string{"method": "email"},
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByUser(ctx, "user-1", 10)
	if err != nil {
		t.Fatalf("GetByUser failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID == "" {
		t.Error("expected ID to be generated")
	}
	if events[0].Details["method"] != "email" {
		t.Errorf("details = %v", events[0].Details)
	}
	if !events[0].Success {
		t.Error("expected success")
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	old := time.Now().Add(-48 * time.Hour)
	_ = store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLogout, Timestamp: old, Success: true})
	_ = store.Log(ctx, audit.Event{Category: audit.CategoryAuth, EventType: audit.EventLoginFailedWrongPassword, FailureReason: "bad password"})
	_ = store.Log(ctx, audit.Event{Category: audit.CategoryBilling, EventType: audit.EventSubscriptionUpdated, Success: true})

	auth, err := store.Query(ctx, audit.QueryFilter{Category: audit.CategoryAuth})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(auth) != 2 {
		t.Errorf("auth events = %d, want 2", len(auth))
	}
	if auth[0].EventType != audit.EventLoginFailedWrongPassword {
		t.Errorf("expected newest first, got %s", auth[0].EventType)
	}

	since := time.Now().Add(-time.Hour)
	recent, _ := store.Query(ctx, audit.QueryFilter{StartTime: &since})
	if len(recent) != 2 {
		t.Errorf("recent events = %d, want 2", len(recent))
	}

	limited, _ := store.Query(ctx, audit.QueryFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("limited events = %d, want 1", len(limited))
	}
}
