package domain

// WebSocket message types from client.
const (
	MsgTypeAuth         = "auth"
	MsgTypeJoinSession  = "join_session"
	MsgTypeLeaveSession = "leave_session"
	MsgTypePing         = "ping"
)

// WebSocket message types to client.
const (
	MsgTypeAuthResult        = "auth_result"
	MsgTypeSessionJoined     = "session_joined"
	MsgTypeStateDelta        = "state_delta"
	MsgTypeChatPosted        = "chat_posted"
	MsgTypePresenceCount     = "presence_count"
	MsgTypePurchaseCompleted = "purchase_completed"
	MsgTypeError             = "error"
	MsgTypePong              = "pong"
)

// Error codes
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeNotInSession  = "NOT_IN_SESSION"
)

// BaseMessage is the base structure for all WebSocket messages.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server messages

type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type JoinSessionMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// Server -> Client messages

type AuthResultMessage struct {
	Type        string `json:"type"`
	Success     bool   `json:"success"`
	ViewerID    string `json:"viewer_id,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Message     string `json:"message,omitempty"`
}

type SessionJoinedMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	Snapshot  StateSnapshot `json:"snapshot"`
	Count     int           `json:"count"`
}

type StateDeltaMessage struct {
	Type     string        `json:"type"`
	Snapshot StateSnapshot `json:"snapshot"`
}

type ChatPostedMessage struct {
	Type    string       `json:"type"`
	Message *ChatMessage `json:"message"`
}

type PresenceCountMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

// PurchaseCompletedMessage is display-only (banner, confetti); clients
// must not derive state from it.
type PurchaseCompletedMessage struct {
	Type              string `json:"type"`
	SessionID         string `json:"session_id"`
	ViewerDisplayName string `json:"viewer_display_name"`
	ProductTitle      string `json:"product_title"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
