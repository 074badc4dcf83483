package domain

import "time"

// ViewerPresence tracks one viewer's attachment to a session. The presence
// registry is the single owner; entries are removed on explicit leave or
// when LastSeenAt exceeds the liveness timeout.
type ViewerPresence struct {
	ViewerID   string    `json:"viewer_id"`
	SessionID  string    `json:"session_id"`
	JoinedAt   time.Time `json:"joined_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
}
