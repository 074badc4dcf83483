package presence

import (
	"context"
	"time"
)

// PresenceStore tracks which viewers are attached to which session.
// Implementations must keep the viewer → session mapping authoritative:
// Heartbeat and Leave are addressed by viewer only.
type PresenceStore interface {
	// Add attaches a viewer to a session (or refreshes an existing
	// attachment) with the given liveness TTL.
	Add(ctx context.Context, sessionID, viewerID string, ttl time.Duration) error

	// Refresh extends a viewer's liveness and returns the session they are
	// attached to. ok is false when the viewer is unknown (timed out).
	Refresh(ctx context.Context, viewerID string, ttl time.Duration) (sessionID string, ok bool, err error)

	// Remove detaches a viewer immediately, returning the session they
	// were attached to.
	Remove(ctx context.Context, viewerID string) (sessionID string, ok bool, err error)

	// Count returns the live cardinality of a session's member set.
	Count(ctx context.Context, sessionID string) (int, error)

	// Members returns the viewer IDs currently attached to a session.
	Members(ctx context.Context, sessionID string) ([]string, error)

	// Sessions returns the sessions with at least one attached viewer.
	Sessions(ctx context.Context) ([]string, error)

	// Sweep evicts viewers whose liveness expired and returns the sessions
	// whose member set changed.
	Sweep(ctx context.Context) ([]string, error)

	// RemoveSession evicts every viewer of a session (EndSession).
	RemoveSession(ctx context.Context, sessionID string) error

	Close() error
}
