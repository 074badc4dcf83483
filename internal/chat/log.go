package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ChrisIntorcia/roundtwo-live-engine/internal/domain"
)

// MessageLog keeps the recent tail of each session's chat so late joiners
// can backfill. Older messages fall off; durable chat history is out of
// scope for the coordinator.
type MessageLog interface {
	Append(ctx context.Context, msg domain.ChatMessage) error
	// Recent returns up to limit messages in ascending sequence order.
	Recent(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error)
	// Drop discards a session's log when the session ends.
	Drop(ctx context.Context, sessionID string) error
	Close() error
}

// redisLog stores each session's tail in a capped Redis list at
// chat:session:{session_id}:log, newest first.
type redisLog struct {
	client   *redis.Client
	capacity int
	ttl      time.Duration
}

// NewRedisLog creates a Redis-backed message log capped at capacity
// messages per session. Keys expire after ttl of inactivity.
func NewRedisLog(client *redis.Client, capacity int, ttl time.Duration) MessageLog {
	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisLog{client: client, capacity: capacity, ttl: ttl}
}

func logKey(sessionID string) string {
	return fmt.Sprintf("chat:session:%s:log", sessionID)
}

func (l *redisLog) Append(ctx context.Context, msg domain.ChatMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := logKey(msg.SessionID)
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, int64(l.capacity-1))
	pipe.Expire(ctx, key, l.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (l *redisLog) Recent(ctx context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 || limit > l.capacity {
		limit = l.capacity
	}
	raw, err := l.client.LRange(ctx, logKey(sessionID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	// List is newest first; reverse into ascending sequence order.
	messages := make([]domain.ChatMessage, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(raw[i]), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (l *redisLog) Drop(ctx context.Context, sessionID string) error {
	return l.client.Del(ctx, logKey(sessionID)).Err()
}

func (l *redisLog) Close() error {
	return l.client.Close()
}

// memoryLog is an in-memory MessageLog for tests and single-node runs.
type memoryLog struct {
	mu       sync.Mutex
	capacity int
	tails    map[string][]domain.ChatMessage
}

// NewMemoryLog creates an in-memory message log capped at capacity
// messages per session.
func NewMemoryLog(capacity int) MessageLog {
	if capacity <= 0 {
		capacity = 100
	}
	return &memoryLog{capacity: capacity, tails: make(map[string][]domain.ChatMessage)}
}

func (l *memoryLog) Append(_ context.Context, msg domain.ChatMessage) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail := append(l.tails[msg.SessionID], msg)
	if len(tail) > l.capacity {
		tail = tail[len(tail)-l.capacity:]
	}
	l.tails[msg.SessionID] = tail
	return nil
}

func (l *memoryLog) Recent(_ context.Context, sessionID string, limit int) ([]domain.ChatMessage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	tail := l.tails[sessionID]
	if limit > 0 && limit < len(tail) {
		tail = tail[len(tail)-limit:]
	}
	out := make([]domain.ChatMessage, len(tail))
	copy(out, tail)
	return out, nil
}

func (l *memoryLog) Drop(_ context.Context, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tails, sessionID)
	return nil
}

func (l *memoryLog) Close() error {
	return nil
}
