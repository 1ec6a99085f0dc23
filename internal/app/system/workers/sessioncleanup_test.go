package workers_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/store/sessions"
	"github.com/dalemusser/scratchstarter/internal/app/system/workers"
	"github.com/dalemusser/scratchstarter/internal/testutil"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type countingPruner struct {
	calls atomic.Int32
	err   error
}

func (p *countingPruner) DeleteExpired(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, p.err
}

type countingSweeper struct{ calls atomic.Int32 }

func (s *countingSweeper) Sweep() int { s.calls.Add(1); return 0 }

func TestSessionCleanup_StopLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := &countingPruner{}
	sw := &countingSweeper{}
	w := workers.NewSessionCleanup(map[string]workers.Pruner{"sessions": p}, zap.NewNop(), 5*time.Millisecond, sw)
	w.Start()

	deadline := time.Now().Add(2 * time.Second)
	for p.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	w.Stop()
	w.Stop()

	if p.calls.Load() == 0 {
		t.Error("pruner never ran")
	}
	if sw.calls.Load() == 0 {
		t.Error("sweeper never ran")
	}
}

func TestSessionCleanup_RunOnceContinuesAfterError(t *testing.T) {
	failing := &countingPruner{err: errors.New("db down")}
	ok := &countingPruner{}
	w := workers.NewSessionCleanup(map[string]workers.Pruner{"a": failing, "b": ok}, nil, time.Hour)

	w.RunOnce(context.Background())

	if failing.calls.Load() != 1 || ok.calls.Load() != 1 {
		t.Errorf("calls = %d, %d", failing.calls.Load(), ok.calls.Load())
	}
}

func TestSessionCleanup_DeletesExpiredSessions(t *testing.T) {
	h := testutil.SetupTestDB(t)
	fx := testutil.NewFixtures(t, h)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	u := fx.CreateUser(ctx, "Ada", "ada@example.com")
	live := fx.CreateSession(ctx, u.ID, time.Hour)
	dead := fx.CreateSession(ctx, u.ID, -time.Hour)

	store := sessions.New(h)
	w := workers.NewSessionCleanup(map[string]workers.Pruner{"sessions": store}, nil, time.Hour)
	w.RunOnce(ctx)

	if _, err := store.GetValid(ctx, live.Token); err != nil {
		t.Errorf("live session: %v", err)
	}
	var n int
	if err := h.DB.GetContext(ctx, &n, h.Rebind("SELECT COUNT(*) FROM sessions WHERE token = ?"), dead.Token); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Error("expired session not deleted")
	}
}
