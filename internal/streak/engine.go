package streak

import (
	"sync"
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
)

// maxDiscountPercent caps the gamified discount.
const maxDiscountPercent = 50

// Engine holds per-viewer purchase streaks within a session. Pricing is a
// pure function of the streak count at read time; the count moves only on
// captured orders and is dropped when the session ends.
type Engine struct {
	mu     sync.RWMutex
	states map[string]*domain.StreakState // sessionID:viewerID
}

// NewEngine creates an empty streak engine.
func NewEngine() *Engine {
	return &Engine{states: make(map[string]*domain.StreakState)}
}

func key(sessionID, viewerID string) string {
	return sessionID + ":" + viewerID
}

// Count returns the viewer's captured-purchase count in the session.
func (e *Engine) Count(sessionID, viewerID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if st, ok := e.states[key(sessionID, viewerID)]; ok {
		return st.PurchaseCount
	}
	return 0
}

// DiscountPercent computes the discount for the viewer's next purchase:
// (streak+1) * 10, capped at 50. Zero when the session has gamified
// discounts disabled.
func (e *Engine) DiscountPercent(sessionID, viewerID string, enabled bool) int {
	if !enabled {
		return 0
	}
	d := (e.Count(sessionID, viewerID) + 1) * 10
	if d > maxDiscountPercent {
		d = maxDiscountPercent
	}
	return d
}

// UnitPriceCents applies a percent discount to a full price in cents using
// integer arithmetic.
func UnitPriceCents(fullPriceCents int64, discountPercent int) int64 {
	return fullPriceCents * int64(100-discountPercent) / 100
}

// RecordCapture increments the viewer's streak after a captured order.
func (e *Engine) RecordCapture(sessionID, viewerID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	k := key(sessionID, viewerID)
	st, ok := e.states[k]
	if !ok {
		st = &domain.StreakState{SessionID: sessionID, ViewerID: viewerID}
		e.states[k] = st
	}
	st.PurchaseCount++
	st.LastPurchaseAt = time.Now()
}

// ResetSession drops every streak for a session. Streaks do not persist
// across sessions.
func (e *Engine) ResetSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for k, st := range e.states {
		if st.SessionID == sessionID {
			delete(e.states, k)
		}
	}
}
