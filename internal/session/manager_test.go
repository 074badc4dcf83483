package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/store"
)

type stubStock struct {
	mu    sync.Mutex
	stock map[string]int
}

func (s *stubStock) Stock(_ context.Context, productID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stock[productID], nil
}

func (s *stubStock) set(productID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = n
}

type recordingBus struct {
	mu        sync.Mutex
	snapshots []domain.StateSnapshot
	ended     []string
}

func (b *recordingBus) StateDelta(_ context.Context, snap domain.StateSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, snap)
}

func (b *recordingBus) SessionEnded(_ context.Context, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ended = append(b.ended, sessionID)
}

func (b *recordingBus) last(t *testing.T) domain.StateSnapshot {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.snapshots) == 0 {
		t.Fatal("no snapshots broadcast")
	}
	return b.snapshots[len(b.snapshots)-1]
}

type recordingEvictor struct {
	mu      sync.Mutex
	evicted []string
}

func (e *recordingEvictor) EvictSession(_ context.Context, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evicted = append(e.evicted, sessionID)
	return nil
}

func newTestManager(t *testing.T, stock map[string]int) (*Manager, *stubStock, *recordingBus, *recordingEvictor) {
	t.Helper()
	if stock == nil {
		stock = make(map[string]int)
	}
	st := store.NewMemoryStore()
	stocks := &stubStock{stock: stock}
	bus := &recordingBus{}
	evictor := &recordingEvictor{}
	m := NewManager(st, stocks, bus, evictor)
	return m, stocks, bus, evictor
}

// forceTick runs one countdown step on the actor goroutine, standing in
// for the once-per-second timer.
func forceTick(t *testing.T, m *Manager, sessionID string) {
	t.Helper()
	ctx := context.Background()
	err := m.do(ctx, sessionID, func(sess *domain.Session) error {
		m.tick(ctx, sess)
		return nil
	})
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
}

func TestOpenCreatesIdleSession(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, nil)

	sess, err := m.Open(ctx, "bcast-1", true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sess.State != domain.SessionStateIdle {
		t.Fatalf("expected idle, got %s", sess.State)
	}
	if snap := bus.last(t); snap.State != domain.SessionStateIdle || snap.RotationActive {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
}

func TestStartRotationSelectsHeadOfQueue(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 3, "B": 3})
	m.Open(ctx, "s1", true)

	if err := m.StartRotation(ctx, "s1", []string{"A", "B"}, 15, true); err != nil {
		t.Fatalf("start rotation: %v", err)
	}

	snap := bus.last(t)
	if snap.CurrentProductID != "A" {
		t.Fatalf("expected current A, got %q", snap.CurrentProductID)
	}
	if snap.Countdown == nil || *snap.Countdown != 15 {
		t.Fatalf("expected countdown 15, got %v", snap.Countdown)
	}
	if !snap.RotationActive {
		t.Fatal("expected rotation active")
	}
}

func TestStartRotationInvalidStates(t *testing.T) {
	ctx := context.Background()
	m, _, _, _ := newTestManager(t, map[string]int{"A": 1})
	m.Open(ctx, "s1", true)

	if err := m.StartRotation(ctx, "s1", nil, 15, true); !errors.Is(err, domain.ErrInvalidCommand) {
		t.Fatalf("empty queue: expected ErrInvalidCommand, got %v", err)
	}
	if err := m.StartRotation(ctx, "s1", []string{"A"}, 15, true); err != nil {
		t.Fatalf("start rotation: %v", err)
	}
	if err := m.StartRotation(ctx, "s1", []string{"A"}, 15, true); !errors.Is(err, domain.ErrInvalidCommand) {
		t.Fatalf("start while rotating: expected ErrInvalidCommand, got %v", err)
	}
}

func TestTickCountsDownAndAdvances(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 3, "B": 3})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B"}, 2, true)

	forceTick(t, m, "s1")
	if snap := bus.last(t); snap.Countdown == nil || *snap.Countdown != 1 {
		t.Fatalf("expected countdown 1, got %v", snap.Countdown)
	}

	forceTick(t, m, "s1")
	snap := bus.last(t)
	if snap.CurrentProductID != "B" {
		t.Fatalf("expected advance to B, got %q", snap.CurrentProductID)
	}
	if snap.Countdown == nil || *snap.Countdown != 2 {
		t.Fatalf("expected countdown reset to 2, got %v", snap.Countdown)
	}
}

// queue = [A(stock=1), B(stock=5)], interval 15, autoRestart. When A sells
// out mid-countdown, the depletion notice advances to B and resets the
// countdown to 15.
func TestDepletionAdvancesLikeTick(t *testing.T) {
	ctx := context.Background()
	m, stocks, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 5})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B"}, 15, true)

	forceTick(t, m, "s1")
	forceTick(t, m, "s1") // mid-countdown

	stocks.set("A", 0)
	if err := m.NotifyStockDepleted(ctx, "s1", "A"); err != nil {
		t.Fatalf("depletion notice: %v", err)
	}

	snap := bus.last(t)
	if snap.CurrentProductID != "B" {
		t.Fatalf("expected advance to B, got %q", snap.CurrentProductID)
	}
	if snap.Countdown == nil || *snap.Countdown != 15 {
		t.Fatalf("expected countdown reset to 15, got %v", snap.Countdown)
	}
	if !snap.RotationActive {
		t.Fatal("rotation should continue after depletion advance")
	}
}

func TestDepletionOfNonCurrentProductIsIgnored(t *testing.T) {
	ctx := context.Background()
	m, stocks, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 5})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B"}, 15, true)
	before := bus.last(t)

	stocks.set("B", 0)
	if err := m.NotifyStockDepleted(ctx, "s1", "B"); err != nil {
		t.Fatalf("depletion notice: %v", err)
	}
	after := bus.last(t)
	if after.Version != before.Version || after.CurrentProductID != "A" {
		t.Fatalf("non-current depletion changed state: %+v", after)
	}
}

func TestAdvanceSkipsSoldOutProducts(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 0, "C": 2})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B", "C"}, 1, true)

	forceTick(t, m, "s1")
	if snap := bus.last(t); snap.CurrentProductID != "C" {
		t.Fatalf("expected sold-out B skipped, got %q", snap.CurrentProductID)
	}
}

func TestAdvancePausesWhenEverythingSoldOut(t *testing.T) {
	ctx := context.Background()
	m, stocks, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 1})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B"}, 1, true)

	stocks.set("A", 0)
	stocks.set("B", 0)
	forceTick(t, m, "s1")

	snap := bus.last(t)
	if snap.State != domain.SessionStatePaused || snap.Countdown != nil {
		t.Fatalf("expected paused with no countdown, got %+v", snap)
	}
}

func TestNoAutoRestartPausesAfterAdvance(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 1})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B"}, 1, false)

	forceTick(t, m, "s1")
	snap := bus.last(t)
	if snap.CurrentProductID != "B" {
		t.Fatalf("expected advance to B, got %q", snap.CurrentProductID)
	}
	if snap.State != domain.SessionStatePaused || snap.Countdown != nil {
		t.Fatalf("expected paused with no countdown, got %+v", snap)
	}
}

func TestPauseAndResumePreserveProductAndCountdown(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 1})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A"}, 10, true)
	forceTick(t, m, "s1")

	if err := m.PauseRotation(ctx, "s1"); err != nil {
		t.Fatalf("pause: %v", err)
	}
	snap := bus.last(t)
	if snap.RotationActive || snap.CurrentProductID != "A" {
		t.Fatalf("pause altered selection: %+v", snap)
	}
	if snap.Countdown == nil || *snap.Countdown != 9 {
		t.Fatalf("pause should freeze countdown at 9, got %v", snap.Countdown)
	}

	// Ticks while paused do nothing.
	forceTick(t, m, "s1")
	if again := bus.last(t); again.Version != snap.Version {
		t.Fatal("tick while paused changed state")
	}

	if err := m.ResumeRotation(ctx, "s1"); err != nil {
		t.Fatalf("resume: %v", err)
	}
	resumed := bus.last(t)
	if !resumed.RotationActive || resumed.Countdown == nil || *resumed.Countdown != 9 {
		t.Fatalf("resume should continue countdown at 9, got %+v", resumed)
	}

	if err := m.ResumeRotation(ctx, "s1"); !errors.Is(err, domain.ErrInvalidCommand) {
		t.Fatalf("resume while rotating: expected ErrInvalidCommand, got %v", err)
	}
}

func TestSelectProductRestartsCountdownWhileRotating(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 1})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B"}, 10, true)
	forceTick(t, m, "s1")

	if err := m.SelectProduct(ctx, "s1", "B"); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap := bus.last(t)
	if snap.CurrentProductID != "B" {
		t.Fatalf("expected B, got %q", snap.CurrentProductID)
	}
	if snap.Countdown == nil || *snap.Countdown != 10 {
		t.Fatalf("expected countdown restart to 10, got %v", snap.Countdown)
	}
}

func TestSelectProductCancelsCountdownWhenNotRotating(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 1})
	m.Open(ctx, "s1", true)

	if err := m.SelectProduct(ctx, "s1", "B"); err != nil {
		t.Fatalf("select: %v", err)
	}
	snap := bus.last(t)
	if snap.CurrentProductID != "B" || snap.Countdown != nil || snap.RotationActive {
		t.Fatalf("manual select from idle: %+v", snap)
	}
}

func TestReorderQueueKeepsCurrentSelection(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 1, "C": 1})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B", "C"}, 5, true)

	if err := m.ReorderQueue(ctx, "s1", []string{"C", "B"}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if snap := bus.last(t); snap.CurrentProductID != "A" {
		t.Fatalf("reorder changed current product to %q", snap.CurrentProductID)
	}

	sess, err := m.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(sess.Queue) != 2 || sess.Queue[0] != "C" || sess.Queue[1] != "B" {
		t.Fatalf("queue not replaced: %v", sess.Queue)
	}
}

func TestEndSessionIsTerminal(t *testing.T) {
	ctx := context.Background()
	m, _, bus, evictor := newTestManager(t, map[string]int{"A": 1})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A"}, 5, true)

	var endedHook []string
	m.OnEnded(func(sessionID string) { endedHook = append(endedHook, sessionID) })

	if err := m.EndSession(ctx, "s1"); err != nil {
		t.Fatalf("end: %v", err)
	}

	snap := bus.last(t)
	if snap.State != domain.SessionStateEnded || snap.Countdown != nil {
		t.Fatalf("final snapshot: %+v", snap)
	}
	if len(evictor.evicted) != 1 || evictor.evicted[0] != "s1" {
		t.Fatalf("viewers not evicted: %v", evictor.evicted)
	}
	if len(bus.ended) != 1 || bus.ended[0] != "s1" {
		t.Fatalf("session end not broadcast: %v", bus.ended)
	}
	if len(endedHook) != 1 || endedHook[0] != "s1" {
		t.Fatalf("OnEnded hook not fired: %v", endedHook)
	}

	if err := m.PauseRotation(ctx, "s1"); !errors.Is(err, domain.ErrSessionNotActive) {
		t.Fatalf("command on ended session: expected ErrSessionNotActive, got %v", err)
	}
}

func TestSnapshotVersionsAreStrictlyIncreasing(t *testing.T) {
	ctx := context.Background()
	m, _, bus, _ := newTestManager(t, map[string]int{"A": 1, "B": 1})
	m.Open(ctx, "s1", true)
	m.StartRotation(ctx, "s1", []string{"A", "B"}, 3, true)
	forceTick(t, m, "s1")
	m.PauseRotation(ctx, "s1")
	m.ResumeRotation(ctx, "s1")
	m.SelectProduct(ctx, "s1", "B")
	m.EndSession(ctx, "s1")

	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i := 1; i < len(bus.snapshots); i++ {
		if bus.snapshots[i].Version <= bus.snapshots[i-1].Version {
			t.Fatalf("versions not strictly increasing: %d then %d",
				bus.snapshots[i-1].Version, bus.snapshots[i].Version)
		}
	}
}

// A manager restarted after a crash revives the session from the store,
// parked in Paused rather than mid-countdown.
func TestActorRevivalFromStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	stocks := &stubStock{stock: map[string]int{"A": 1}}

	m1 := NewManager(st, stocks, &recordingBus{}, nil)
	m1.Open(ctx, "s1", true)
	if err := m1.StartRotation(ctx, "s1", []string{"A"}, 10, true); err != nil {
		t.Fatalf("start rotation: %v", err)
	}

	m2 := NewManager(st, stocks, &recordingBus{}, nil)
	sess, err := m2.Session(ctx, "s1")
	if err != nil {
		t.Fatalf("revive: %v", err)
	}
	if sess.State != domain.SessionStatePaused || sess.Countdown != nil {
		t.Fatalf("revived session should be paused, got %+v", sess)
	}
	if sess.CurrentProductID != "A" {
		t.Fatalf("revived session lost selection: %q", sess.CurrentProductID)
	}
}
