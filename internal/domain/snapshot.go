package domain

import "sync"

// SnapshotTracker gates snapshot application by version. Deliveries are
// at-least-once and unordered; only a snapshot with a version greater than
// the last applied one changes visible state.
type SnapshotTracker struct {
	mu      sync.Mutex
	current StateSnapshot
	applied bool
}

// Apply applies the snapshot if it is newer than the current one and
// reports whether visible state changed.
func (t *SnapshotTracker) Apply(snap StateSnapshot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.applied && snap.Version <= t.current.Version {
		return false
	}
	t.current = snap
	t.applied = true
	return true
}

// Current returns the last applied snapshot.
func (t *SnapshotTracker) Current() (StateSnapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current, t.applied
}
