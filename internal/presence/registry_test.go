package presence

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTestStore(t *testing.T) (PresenceStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisStoreWithClient(client)
	t.Cleanup(func() { st.Close() })
	return st, mr
}

func TestJoinReturnsCount(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)
	reg := NewRegistry(st, nil, Config{HeartbeatTTL: time.Minute})

	n, err := reg.Join(ctx, "s1", "v1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected count 1, got %d", n)
	}

	n, err = reg.Join(ctx, "s1", "v2")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected count 2, got %d", n)
	}
}

// A duplicate join refreshes liveness instead of inflating the count.
func TestDuplicateJoinIsIdempotent(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)
	reg := NewRegistry(st, nil, Config{HeartbeatTTL: time.Minute})

	if _, err := reg.Join(ctx, "s1", "v1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	n, err := reg.Join(ctx, "s1", "v1")
	if err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if n != 1 {
		t.Fatalf("duplicate join inflated count to %d", n)
	}
}

// Joining a new session while still live in another detaches the viewer
// from the old one; its count must not keep a ghost member that the sweep
// can never evict.
func TestJoinMovesViewerBetweenSessions(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)
	reg := NewRegistry(st, nil, Config{HeartbeatTTL: time.Minute})

	if _, err := reg.Join(ctx, "sessA", "v1"); err != nil {
		t.Fatalf("join sessA: %v", err)
	}
	n, err := reg.Join(ctx, "sessB", "v1")
	if err != nil {
		t.Fatalf("join sessB: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected count 1 in sessB, got %d", n)
	}

	if n, _ := reg.Count(ctx, "sessA"); n != 0 {
		t.Fatalf("viewer still counted in sessA: %d", n)
	}
	if _, err := st.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n, _ := reg.Count(ctx, "sessA"); n != 0 {
		t.Fatalf("ghost member in sessA after sweep: %d", n)
	}
	sessionID, ok, err := reg.Heartbeat(ctx, "v1")
	if err != nil || !ok || sessionID != "sessB" {
		t.Fatalf("heartbeat: session=%q ok=%v err=%v", sessionID, ok, err)
	}
}

func TestHeartbeatUnknownViewer(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)
	reg := NewRegistry(st, nil, Config{HeartbeatTTL: time.Minute})

	_, ok, err := reg.Heartbeat(ctx, "ghost")
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if ok {
		t.Fatal("heartbeat for unknown viewer reported ok")
	}
}

func TestLeaveTwiceIsNoop(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)
	reg := NewRegistry(st, nil, Config{HeartbeatTTL: time.Minute})

	if _, err := reg.Join(ctx, "s1", "v1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := reg.Leave(ctx, "v1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if err := reg.Leave(ctx, "v1"); err != nil {
		t.Fatalf("second leave: %v", err)
	}
	n, _ := reg.Count(ctx, "s1")
	if n != 0 {
		t.Fatalf("expected empty session, got %d", n)
	}
}

// A viewer whose liveness key expires is pruned by the sweep.
func TestSweepEvictsExpiredViewers(t *testing.T) {
	ctx := context.Background()
	st, mr := newRedisTestStore(t)
	reg := NewRegistry(st, nil, Config{HeartbeatTTL: 10 * time.Second})

	if _, err := reg.Join(ctx, "s1", "v1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := reg.Join(ctx, "s1", "v2"); err != nil {
		t.Fatalf("join: %v", err)
	}

	mr.FastForward(11 * time.Second)

	changed, err := st.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(changed) != 1 || changed[0] != "s1" {
		t.Fatalf("expected s1 swept, got %v", changed)
	}
	n, _ := reg.Count(ctx, "s1")
	if n != 0 {
		t.Fatalf("expected 0 viewers after sweep, got %d", n)
	}
}

func TestHeartbeatKeepsViewerAlive(t *testing.T) {
	ctx := context.Background()
	st, mr := newRedisTestStore(t)
	reg := NewRegistry(st, nil, Config{HeartbeatTTL: 10 * time.Second})

	if _, err := reg.Join(ctx, "s1", "v1"); err != nil {
		t.Fatalf("join: %v", err)
	}

	mr.FastForward(6 * time.Second)
	sessionID, ok, err := reg.Heartbeat(ctx, "v1")
	if err != nil || !ok {
		t.Fatalf("heartbeat: ok=%v err=%v", ok, err)
	}
	if sessionID != "s1" {
		t.Fatalf("expected session s1, got %q", sessionID)
	}

	mr.FastForward(6 * time.Second)
	if _, err := st.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	n, _ := reg.Count(ctx, "s1")
	if n != 1 {
		t.Fatalf("heartbeated viewer was evicted, count %d", n)
	}
}

func TestEvictSession(t *testing.T) {
	ctx := context.Background()
	st, _ := newRedisTestStore(t)
	reg := NewRegistry(st, nil, Config{HeartbeatTTL: time.Minute})

	for _, v := range []string{"v1", "v2", "v3"} {
		if _, err := reg.Join(ctx, "s1", v); err != nil {
			t.Fatalf("join %s: %v", v, err)
		}
	}
	if err := reg.EvictSession(ctx, "s1"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	n, _ := reg.Count(ctx, "s1")
	if n != 0 {
		t.Fatalf("expected 0 after eviction, got %d", n)
	}
	if _, ok, _ := reg.Heartbeat(ctx, "v1"); ok {
		t.Fatal("evicted viewer still heartbeats")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	ms := st.(*memoryStore)

	base := time.Now()
	ms.now = func() time.Time { return base }

	if err := st.Add(ctx, "s1", "v1", 10*time.Second); err != nil {
		t.Fatalf("add: %v", err)
	}

	ms.now = func() time.Time { return base.Add(11 * time.Second) }
	changed, err := st.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(changed) != 1 || changed[0] != "s1" {
		t.Fatalf("expected s1 swept, got %v", changed)
	}
	n, _ := st.Count(ctx, "s1")
	if n != 0 {
		t.Fatalf("expected empty session, got %d", n)
	}
}
