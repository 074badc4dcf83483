package presence

import (
	"context"
	"time"

	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// CountBroadcaster pushes viewer-count updates to session watchers.
type CountBroadcaster interface {
	PresenceCount(ctx context.Context, sessionID string, count int)
}

// Config controls presence liveness and broadcast cadence.
type Config struct {
	// HeartbeatTTL is how long a viewer stays live without a heartbeat.
	HeartbeatTTL time.Duration
	// SweepInterval is how often expired viewers are evicted.
	SweepInterval time.Duration
	// BroadcastInterval is how often counts are pushed to watchers.
	// Counts are throttled to this cadence rather than pushed per join.
	BroadcastInterval time.Duration
}

// Registry is the authoritative record of which viewers are watching which
// session. Membership is ephemeral; a viewer that stops heartbeating falls
// out after HeartbeatTTL without any explicit leave.
type Registry struct {
	store PresenceStore
	bus   CountBroadcaster
	cfg   Config
}

// NewRegistry creates a presence registry on top of a store.
func NewRegistry(store PresenceStore, bus CountBroadcaster, cfg Config) *Registry {
	if cfg.HeartbeatTTL <= 0 {
		cfg.HeartbeatTTL = 30 * time.Second
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = 10 * time.Second
	}
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = 5 * time.Second
	}
	return &Registry{store: store, bus: bus, cfg: cfg}
}

// Join registers a viewer in a session and returns the resulting viewer
// count. Joining twice refreshes liveness instead of double-counting;
// joining a second session moves the viewer.
func (r *Registry) Join(ctx context.Context, sessionID, viewerID string) (int, error) {
	if err := r.store.Add(ctx, sessionID, viewerID, r.cfg.HeartbeatTTL); err != nil {
		return 0, err
	}
	return r.store.Count(ctx, sessionID)
}

// Heartbeat extends a viewer's liveness window. ok is false when the viewer
// already timed out or never joined; the caller should tell them to rejoin.
func (r *Registry) Heartbeat(ctx context.Context, viewerID string) (string, bool, error) {
	return r.store.Refresh(ctx, viewerID, r.cfg.HeartbeatTTL)
}

// Leave removes a viewer immediately. Leaving twice is a no-op.
func (r *Registry) Leave(ctx context.Context, viewerID string) error {
	_, _, err := r.store.Remove(ctx, viewerID)
	return err
}

// Count returns the current viewer count for a session.
func (r *Registry) Count(ctx context.Context, sessionID string) (int, error) {
	return r.store.Count(ctx, sessionID)
}

// EvictSession drops every viewer of a session, used when a session ends.
func (r *Registry) EvictSession(ctx context.Context, sessionID string) error {
	return r.store.RemoveSession(ctx, sessionID)
}

// Run drives the eviction sweep and the periodic count broadcast until the
// context is cancelled.
func (r *Registry) Run(ctx context.Context) {
	sweep := time.NewTicker(r.cfg.SweepInterval)
	broadcast := time.NewTicker(r.cfg.BroadcastInterval)
	defer sweep.Stop()
	defer broadcast.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweep.C:
			r.sweep(ctx)
		case <-broadcast.C:
			r.broadcastCounts(ctx)
		}
	}
}

func (r *Registry) sweep(ctx context.Context) {
	changed, err := r.store.Sweep(ctx)
	if err != nil {
		log.L().Error().Err(err).Msg("presence sweep failed")
		return
	}
	// Sessions that lost viewers get a fresh count right away.
	for _, sessionID := range changed {
		r.publishCount(ctx, sessionID)
	}
}

func (r *Registry) broadcastCounts(ctx context.Context) {
	sessions, err := r.store.Sessions(ctx)
	if err != nil {
		log.L().Error().Err(err).Msg("presence session listing failed")
		return
	}
	for _, sessionID := range sessions {
		r.publishCount(ctx, sessionID)
	}
}

func (r *Registry) publishCount(ctx context.Context, sessionID string) {
	if r.bus == nil {
		return
	}
	count, err := r.store.Count(ctx, sessionID)
	if err != nil {
		log.L().Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("presence count failed")
		return
	}
	r.bus.PresenceCount(ctx, sessionID, count)
}
