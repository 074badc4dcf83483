package domain

import "time"

// SessionState is the lifecycle state of a live commerce session.
type SessionState string

const (
	SessionStateIdle     SessionState = "idle"
	SessionStateRotating SessionState = "rotating"
	SessionStatePaused   SessionState = "paused"
	SessionStateEnded    SessionState = "ended"
)

// Session is one broadcaster's active live-commerce stream instance.
// It is mutated only by the session manager's actor goroutine; everyone
// else consumes versioned StateSnapshots.
type Session struct {
	ID               string       `json:"id"` // equals the broadcaster identity
	BroadcasterID    string       `json:"broadcaster_id"`
	State            SessionState `json:"state"`
	CurrentProductID string       `json:"current_product_id,omitempty"`
	RotationInterval int          `json:"rotation_interval_seconds,omitempty"`
	Countdown        *int         `json:"countdown_remaining,omitempty"`
	AutoRestart      bool         `json:"auto_restart"`
	Queue            []string     `json:"queue"`
	DiscountsEnabled bool         `json:"discounts_enabled"`
	Version          uint64       `json:"version"`
	CreatedAt        time.Time    `json:"created_at"`
	EndedAt          *time.Time   `json:"ended_at,omitempty"`
}

// Active reports whether the session still accepts viewer operations.
func (s *Session) Active() bool {
	return s.State != SessionStateEnded
}

// StateSnapshot is the versioned view of session state broadcast to every
// attached viewer after each transition. Viewers apply snapshots strictly
// by version; stale and duplicate deliveries are discarded.
type StateSnapshot struct {
	SessionID        string       `json:"session_id"`
	Version          uint64       `json:"version"`
	State            SessionState `json:"state"`
	CurrentProductID string       `json:"current_product_id,omitempty"`
	Countdown        *int         `json:"countdown_remaining,omitempty"`
	RotationActive   bool         `json:"rotation_active"`
}

// Snapshot captures the session's broadcastable state.
func (s *Session) Snapshot() StateSnapshot {
	var countdown *int
	if s.Countdown != nil {
		v := *s.Countdown
		countdown = &v
	}
	return StateSnapshot{
		SessionID:        s.ID,
		Version:          s.Version,
		State:            s.State,
		CurrentProductID: s.CurrentProductID,
		Countdown:        countdown,
		RotationActive:   s.State == SessionStateRotating,
	}
}
