package domain

import "time"

// ChatMessage is immutable once created. Sequence is assigned by the chat
// channel at ingestion and is the sole ordering key; CreatedAt is advisory.
type ChatMessage struct {
	ID                string    `json:"id"`
	SessionID         string    `json:"session_id"`
	SenderID          string    `json:"sender_id"`
	SenderDisplayName string    `json:"sender_display_name"`
	Text              string    `json:"text"`
	Sequence          uint64    `json:"sequence"`
	CreatedAt         time.Time `json:"created_at"`
}
