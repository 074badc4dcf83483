package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/store"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// StockChecker answers optimistic stock queries during rotation advance.
type StockChecker interface {
	Stock(ctx context.Context, productID string) (int, error)
}

// Broadcaster pushes state snapshots and session-end notices to watchers.
type Broadcaster interface {
	StateDelta(ctx context.Context, snapshot domain.StateSnapshot)
	SessionEnded(ctx context.Context, sessionID string)
}

// Evictor drops every viewer of a session, used on EndSession.
type Evictor interface {
	EvictSession(ctx context.Context, sessionID string) error
}

// Manager owns every live session. Each session is mutated by exactly one
// actor goroutine; commands from handlers are closures executed on that
// goroutine, so session state needs no locking of its own.
type Manager struct {
	store    store.Store
	stock    StockChecker
	bus      Broadcaster
	presence Evictor
	onEnded  func(sessionID string)

	mu     sync.Mutex
	actors map[string]*actor
}

type actor struct {
	session  *domain.Session
	commands chan func()
	done     chan struct{}
	once     sync.Once
}

// NewManager creates a session manager. bus and presence may be nil in tests.
func NewManager(st store.Store, stock StockChecker, bus Broadcaster, presence Evictor) *Manager {
	return &Manager{
		store:    st,
		stock:    stock,
		bus:      bus,
		presence: presence,
		actors:   make(map[string]*actor),
	}
}

// OnEnded registers a hook fired after a session ends, for tearing down
// chat and streak state. Call before the manager starts serving requests.
func (m *Manager) OnEnded(fn func(sessionID string)) {
	m.onEnded = fn
}

// Open creates an idle session for a broadcaster. The session ID is the
// broadcaster identity; a broadcaster runs at most one session at a time.
func (m *Manager) Open(ctx context.Context, broadcasterID string, discountsEnabled bool) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.actors[broadcasterID]; ok && a.session.Active() {
		return nil, fmt.Errorf("%w: session already open", domain.ErrInvalidCommand)
	}

	sess := &domain.Session{
		ID:               broadcasterID,
		BroadcasterID:    broadcasterID,
		State:            domain.SessionStateIdle,
		AutoRestart:      false,
		Queue:            nil,
		DiscountsEnabled: discountsEnabled,
		Version:          1,
		CreatedAt:        time.Now().UTC(),
	}
	if err := m.store.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	m.spawnLocked(sess)
	snapshot := sess.Snapshot()
	if m.bus != nil {
		m.bus.StateDelta(ctx, snapshot)
	}
	return sess, nil
}

func (m *Manager) spawnLocked(sess *domain.Session) *actor {
	a := &actor{
		session:  sess,
		commands: make(chan func(), 16),
		done:     make(chan struct{}),
	}
	m.actors[sess.ID] = a
	go m.run(a)
	return a
}

// actorFor returns the live actor for a session, reviving it from the
// store after a restart. Ended sessions get no actor.
func (m *Manager) actorFor(ctx context.Context, sessionID string) (*actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a, ok := m.actors[sessionID]; ok {
		return a, nil
	}

	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return nil, domain.ErrSessionNotActive
		}
		return nil, err
	}
	if !sess.Active() {
		return nil, domain.ErrSessionNotActive
	}
	// A revived session never resumes mid-countdown; rotation restarts on
	// the broadcaster's next command.
	if sess.State == domain.SessionStateRotating {
		sess.State = domain.SessionStatePaused
		sess.Countdown = nil
	}
	return m.spawnLocked(sess), nil
}

func (m *Manager) run(a *actor) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-a.done:
			return
		case cmd := <-a.commands:
			cmd()
		case <-ticker.C:
			m.applyTick(a)
		}
	}
}

// do executes fn on the session's actor goroutine and waits for the result.
func (m *Manager) do(ctx context.Context, sessionID string, fn func(sess *domain.Session) error) error {
	a, err := m.actorFor(ctx, sessionID)
	if err != nil {
		return err
	}

	reply := make(chan error, 1)
	cmd := func() { reply <- fn(a.session) }

	select {
	case a.commands <- cmd:
	case <-a.done:
		return domain.ErrSessionNotActive
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// commit bumps the version, persists, and broadcasts. Called on the actor
// goroutine after every state transition.
func (m *Manager) commit(ctx context.Context, sess *domain.Session) {
	sess.Version++
	if err := m.store.SaveSession(ctx, sess); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str(log.FieldSessionID, sess.ID).
			Uint64(log.FieldVersion, sess.Version).
			Msg("session persist failed")
	}
	if m.bus != nil {
		m.bus.StateDelta(ctx, sess.Snapshot())
	}
}

// StartRotation begins automatic product cycling. Valid from Idle or Paused.
func (m *Manager) StartRotation(ctx context.Context, sessionID string, queue []string, intervalSeconds int, autoRestart bool) error {
	return m.do(ctx, sessionID, func(sess *domain.Session) error {
		if sess.State != domain.SessionStateIdle && sess.State != domain.SessionStatePaused {
			return fmt.Errorf("%w: cannot start rotation from %s", domain.ErrInvalidCommand, sess.State)
		}
		if len(queue) == 0 {
			return fmt.Errorf("%w: empty queue", domain.ErrInvalidCommand)
		}
		if intervalSeconds < 1 {
			return fmt.Errorf("%w: interval %d", domain.ErrInvalidCommand, intervalSeconds)
		}

		sess.State = domain.SessionStateRotating
		sess.Queue = append([]string(nil), queue...)
		sess.RotationInterval = intervalSeconds
		sess.AutoRestart = autoRestart
		sess.CurrentProductID = queue[0]
		countdown := intervalSeconds
		sess.Countdown = &countdown

		m.commit(ctx, sess)
		return nil
	})
}

// PauseRotation freezes the countdown without changing the current product.
func (m *Manager) PauseRotation(ctx context.Context, sessionID string) error {
	return m.do(ctx, sessionID, func(sess *domain.Session) error {
		if sess.State != domain.SessionStateRotating {
			return fmt.Errorf("%w: cannot pause from %s", domain.ErrInvalidCommand, sess.State)
		}
		sess.State = domain.SessionStatePaused
		m.commit(ctx, sess)
		return nil
	})
}

// ResumeRotation continues a paused rotation where it left off.
func (m *Manager) ResumeRotation(ctx context.Context, sessionID string) error {
	return m.do(ctx, sessionID, func(sess *domain.Session) error {
		if sess.State != domain.SessionStatePaused {
			return fmt.Errorf("%w: cannot resume from %s", domain.ErrInvalidCommand, sess.State)
		}
		sess.State = domain.SessionStateRotating
		if sess.Countdown == nil {
			countdown := sess.RotationInterval
			sess.Countdown = &countdown
		}
		m.commit(ctx, sess)
		return nil
	})
}

// SelectProduct manually overrides the current product. While rotating the
// countdown restarts for the new product; otherwise any countdown is
// cancelled.
func (m *Manager) SelectProduct(ctx context.Context, sessionID, productID string) error {
	return m.do(ctx, sessionID, func(sess *domain.Session) error {
		sess.CurrentProductID = productID
		if sess.State == domain.SessionStateRotating {
			countdown := sess.RotationInterval
			sess.Countdown = &countdown
		} else {
			sess.Countdown = nil
		}
		m.commit(ctx, sess)
		return nil
	})
}

// ReorderQueue replaces the rotation queue. The current selection is left
// alone even when it is absent from the new queue.
func (m *Manager) ReorderQueue(ctx context.Context, sessionID string, productIDs []string) error {
	return m.do(ctx, sessionID, func(sess *domain.Session) error {
		sess.Queue = append([]string(nil), productIDs...)
		m.commit(ctx, sess)
		return nil
	})
}

// NotifyStockDepleted is pushed by the inventory ledger when a product
// drains to zero. If it is the current product the session advances as if
// the countdown had expired.
func (m *Manager) NotifyStockDepleted(ctx context.Context, sessionID, productID string) error {
	return m.do(ctx, sessionID, func(sess *domain.Session) error {
		if sess.CurrentProductID != productID {
			return nil
		}
		m.advance(ctx, sess)
		m.commit(ctx, sess)
		return nil
	})
}

// NotifyDepletedEverywhere fans a sold-out product to every live session.
// Only the sessions currently presenting the product react.
func (m *Manager) NotifyDepletedEverywhere(ctx context.Context, productID string) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.actors))
	for id := range m.actors {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		if err := m.NotifyStockDepleted(ctx, id, productID); err != nil && !errors.Is(err, domain.ErrSessionNotActive) {
			log.Ctx(ctx).Warn().Err(err).
				Str(log.FieldSessionID, id).
				Str(log.FieldProductID, productID).
				Msg("depletion notice failed")
		}
	}
}

// EndSession is terminal: timers stop, the final snapshot goes out, and
// every viewer is evicted.
func (m *Manager) EndSession(ctx context.Context, sessionID string) error {
	err := m.do(ctx, sessionID, func(sess *domain.Session) error {
		now := time.Now().UTC()
		sess.State = domain.SessionStateEnded
		sess.Countdown = nil
		sess.EndedAt = &now
		m.commit(ctx, sess)
		return nil
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	a, ok := m.actors[sessionID]
	if ok {
		delete(m.actors, sessionID)
	}
	m.mu.Unlock()
	if ok {
		a.once.Do(func() { close(a.done) })
	}

	if m.bus != nil {
		m.bus.SessionEnded(ctx, sessionID)
	}
	if m.presence != nil {
		if err := m.presence.EvictSession(ctx, sessionID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("presence eviction failed")
		}
	}
	if m.onEnded != nil {
		m.onEnded(sessionID)
	}
	return nil
}

// Snapshot returns the session's current versioned snapshot.
func (m *Manager) Snapshot(ctx context.Context, sessionID string) (domain.StateSnapshot, error) {
	var snap domain.StateSnapshot
	err := m.do(ctx, sessionID, func(sess *domain.Session) error {
		snap = sess.Snapshot()
		return nil
	})
	return snap, err
}

// Session returns a copy of the session for read-only inspection.
func (m *Manager) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	var out domain.Session
	err := m.do(ctx, sessionID, func(sess *domain.Session) error {
		out = *sess
		out.Queue = append([]string(nil), sess.Queue...)
		return nil
	})
	return out, err
}

// applyTick runs the once-per-second countdown step on the actor goroutine.
func (m *Manager) applyTick(a *actor) {
	reply := make(chan struct{})
	cmd := func() {
		m.tick(context.Background(), a.session)
		close(reply)
	}
	select {
	case a.commands <- cmd:
		<-reply
	case <-a.done:
	}
}

func (m *Manager) tick(ctx context.Context, sess *domain.Session) {
	if sess.State != domain.SessionStateRotating || sess.Countdown == nil {
		return
	}
	*sess.Countdown--
	if *sess.Countdown > 0 {
		m.commit(ctx, sess)
		return
	}
	m.advance(ctx, sess)
	m.commit(ctx, sess)
}

// advance moves to the next in-stock product in queue order, skipping
// sold-out entries. Without autoRestart, or with nothing left in stock,
// rotation pauses.
func (m *Manager) advance(ctx context.Context, sess *domain.Session) {
	next, ok := m.nextInStock(ctx, sess)
	if !ok {
		sess.State = domain.SessionStatePaused
		sess.Countdown = nil
		return
	}

	sess.CurrentProductID = next
	if sess.State == domain.SessionStateRotating && sess.AutoRestart {
		countdown := sess.RotationInterval
		sess.Countdown = &countdown
	} else {
		sess.State = domain.SessionStatePaused
		sess.Countdown = nil
	}
}

func (m *Manager) nextInStock(ctx context.Context, sess *domain.Session) (string, bool) {
	if len(sess.Queue) == 0 {
		return "", false
	}

	start := 0
	for i, id := range sess.Queue {
		if id == sess.CurrentProductID {
			start = i + 1
			break
		}
	}

	for offset := 0; offset < len(sess.Queue); offset++ {
		candidate := sess.Queue[(start+offset)%len(sess.Queue)]
		if candidate == sess.CurrentProductID {
			continue
		}
		if m.inStock(ctx, candidate) {
			return candidate, true
		}
	}
	// Wrapped all the way around; the current product counts if it still
	// has stock.
	if m.inStock(ctx, sess.CurrentProductID) {
		return sess.CurrentProductID, true
	}
	return "", false
}

func (m *Manager) inStock(ctx context.Context, productID string) bool {
	if m.stock == nil {
		return true
	}
	stock, err := m.stock.Stock(ctx, productID)
	if err != nil {
		// Unknown stock must not stall the rotation.
		log.Ctx(ctx).Warn().Err(err).Str(log.FieldProductID, productID).Msg("stock check failed during advance")
		return true
	}
	return stock > 0
}
