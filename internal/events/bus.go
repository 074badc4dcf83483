package events

import (
	"context"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/hub"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/pubsub"
)

// Bus is the single fan-out point for session events. Every event goes to
// the websocket hub for attached viewers and, when a publisher is wired,
// to the event bus for downstream consumers (history, analytics,
// moderation). Delivery to either leg is at-least-once at best; consumers
// rely on snapshot versions and chat sequences, not transport ordering.
type Bus struct {
	hub       *hub.Hub
	publisher pubsub.Publisher
}

// NewBus creates an event bus. publisher may be nil for single-node runs.
func NewBus(h *hub.Hub, publisher pubsub.Publisher) *Bus {
	return &Bus{hub: h, publisher: publisher}
}

// StateDelta pushes a versioned session snapshot to all attached viewers.
func (b *Bus) StateDelta(ctx context.Context, snapshot domain.StateSnapshot) {
	b.toSession(ctx, snapshot.SessionID, map[string]interface{}{
		"type":     pubsub.EventStateDelta,
		"snapshot": snapshot,
	})
	b.publish(ctx, pubsub.EventStateDelta, snapshot.SessionID, pubsub.CommerceEventsChannel(snapshot.SessionID), snapshot)
}

// ChatPosted fans an admitted chat message out to the session.
func (b *Bus) ChatPosted(ctx context.Context, msg domain.ChatMessage) {
	b.toSession(ctx, msg.SessionID, map[string]interface{}{
		"type":    pubsub.EventChatPosted,
		"message": msg,
	})
	b.publish(ctx, pubsub.EventChatPosted, msg.SessionID, pubsub.ChatMessagesChannel(msg.SessionID), msg)
}

// PresenceCount pushes the current viewer count to the session.
func (b *Bus) PresenceCount(ctx context.Context, sessionID string, count int) {
	payload := pubsub.PresenceCountPayload{SessionID: sessionID, Count: count}
	b.toSession(ctx, sessionID, map[string]interface{}{
		"type":  pubsub.EventPresenceCount,
		"count": count,
	})
	b.publish(ctx, pubsub.EventPresenceCount, sessionID, pubsub.CommerceEventsChannel(sessionID), payload)
}

// PurchaseCompleted pushes the display-only purchase banner.
func (b *Bus) PurchaseCompleted(ctx context.Context, sessionID, viewerDisplayName, productTitle string) {
	payload := pubsub.PurchaseCompletedPayload{
		SessionID:         sessionID,
		ViewerDisplayName: viewerDisplayName,
		ProductTitle:      productTitle,
	}
	b.toSession(ctx, sessionID, map[string]interface{}{
		"type":                pubsub.EventPurchaseCompleted,
		"viewer_display_name": viewerDisplayName,
		"product_title":       productTitle,
	})
	b.publish(ctx, pubsub.EventPurchaseCompleted, sessionID, pubsub.CommerceEventsChannel(sessionID), payload)
}

// SessionEnded announces the terminal state to viewers and downstream.
func (b *Bus) SessionEnded(ctx context.Context, sessionID string) {
	b.toSession(ctx, sessionID, map[string]interface{}{
		"type":       pubsub.EventSessionEnded,
		"session_id": sessionID,
	})
	b.publish(ctx, pubsub.EventSessionEnded, sessionID, pubsub.CommerceEventsChannel(sessionID), pubsub.SessionEndedPayload{SessionID: sessionID})
}

func (b *Bus) toSession(ctx context.Context, sessionID string, message interface{}) {
	if b.hub == nil {
		return
	}
	if err := b.hub.BroadcastToSession(sessionID, message, ""); err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("hub broadcast failed")
	}
}

func (b *Bus) publish(ctx context.Context, eventType, sessionID, channel string, payload interface{}) {
	if b.publisher == nil {
		return
	}
	event, err := pubsub.NewEvent(eventType, sessionID, payload)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("event marshal failed")
		return
	}
	if err := b.publisher.Publish(ctx, channel, event); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str(log.FieldSessionID, sessionID).
			Str("channel", channel).
			Msg("event publish failed")
	}
}
