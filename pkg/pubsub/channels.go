package pubsub

import "fmt"

// Channel naming conventions for the live commerce engine.
const (
	// Session lifecycle and commerce events fanned out to downstream
	// consumers (history, analytics, moderation).
	ChannelCommerceEvents = "commerce:session:%s:events"

	// Chat messages, after sequencing and filtering.
	ChannelChatMessages = "chat:session:%s:messages"
)

// Event types published on the commerce channel.
const (
	EventStateDelta        = "state_delta"
	EventPresenceCount     = "presence_count"
	EventPurchaseCompleted = "purchase_completed"
	EventSessionEnded      = "session_ended"
)

// Event types published on the chat channel.
const (
	EventChatPosted = "chat_posted"
)

// CommerceEventsChannel returns the channel name for a session's commerce events.
func CommerceEventsChannel(sessionID string) string {
	return fmt.Sprintf(ChannelCommerceEvents, sessionID)
}

// ChatMessagesChannel returns the channel name for a session's chat messages.
func ChatMessagesChannel(sessionID string) string {
	return fmt.Sprintf(ChannelChatMessages, sessionID)
}

// PresenceCountPayload carries the live viewer count for a session.
type PresenceCountPayload struct {
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

// PurchaseCompletedPayload is display-only: the broadcaster UI uses it for
// banners and confetti. Nothing in the engine depends on its delivery.
type PurchaseCompletedPayload struct {
	SessionID         string `json:"session_id"`
	ViewerDisplayName string `json:"viewer_display_name"`
	ProductTitle      string `json:"product_title"`
}

// SessionEndedPayload is sent once when a broadcaster ends a stream.
type SessionEndedPayload struct {
	SessionID string `json:"session_id"`
}
