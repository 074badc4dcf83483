package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
	"github.com/ChrisIntorcia/roundtwo-live-engine/pkg/log"
)

// MaxMessageLength bounds chat text in runes.
const MaxMessageLength = 500

var (
	// ErrMessageEmpty is returned for blank or whitespace-only text.
	ErrMessageEmpty = errors.New("message empty")

	// ErrMessageTooLong is returned when text exceeds MaxMessageLength.
	ErrMessageTooLong = errors.New("message too long")
)

// Broadcaster fans an admitted message out to session watchers.
type Broadcaster interface {
	ChatPosted(ctx context.Context, msg domain.ChatMessage)
}

// Channel admits chat messages into sessions. Each session carries its own
// monotonically increasing sequence counter; the sequence a message gets at
// admission is its ordering for every consumer.
type Channel struct {
	filter Filter
	tail   MessageLog
	bus    Broadcaster

	mu        sync.Mutex
	sequences map[string]uint64
}

// NewChannel creates a chat channel. filter and bus may be nil.
func NewChannel(filter Filter, tail MessageLog, bus Broadcaster) *Channel {
	return &Channel{
		filter:    filter,
		tail:      tail,
		bus:       bus,
		sequences: make(map[string]uint64),
	}
}

// Post validates, filters, sequences, and fans out a message. The returned
// message carries the assigned sequence and ID.
func (c *Channel) Post(ctx context.Context, sessionID, senderID, displayName, text string) (domain.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return domain.ChatMessage{}, ErrMessageEmpty
	}
	if len([]rune(text)) > MaxMessageLength {
		return domain.ChatMessage{}, ErrMessageTooLong
	}
	if c.filter != nil {
		if err := c.filter.Check(text); err != nil {
			// Filter failures reject the message rather than letting
			// unscreened text through.
			if !errors.Is(err, ErrMessageRejected) {
				log.Ctx(ctx).Warn().Err(err).Str(log.FieldSessionID, sessionID).Msg("chat filter error")
			}
			return domain.ChatMessage{}, ErrMessageRejected
		}
	}

	msg := domain.ChatMessage{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		SenderID:          senderID,
		SenderDisplayName: displayName,
		Text:              text,
		Sequence:          c.nextSequence(sessionID),
		CreatedAt:         time.Now().UTC(),
	}

	if c.tail != nil {
		if err := c.tail.Append(ctx, msg); err != nil {
			// The message is still delivered live; only backfill suffers.
			log.Ctx(ctx).Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("chat tail append failed")
		}
	}
	if c.bus != nil {
		c.bus.ChatPosted(ctx, msg)
	}
	return msg, nil
}

// Recent returns the session's recent tail in ascending sequence order.
func (c *Channel) Recent(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if c.tail == nil {
		return nil, nil
	}
	return c.tail.Recent(ctx, sessionID, limit)
}

// CloseSession drops the session's sequence counter and recent tail.
func (c *Channel) CloseSession(ctx context.Context, sessionID string) {
	c.mu.Lock()
	delete(c.sequences, sessionID)
	c.mu.Unlock()

	if c.tail != nil {
		if err := c.tail.Drop(ctx, sessionID); err != nil {
			log.Ctx(ctx).Error().Err(err).Str(log.FieldSessionID, sessionID).Msg("chat tail drop failed")
		}
	}
}

func (c *Channel) nextSequence(sessionID string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sequences[sessionID]++
	return c.sequences[sessionID]
}
