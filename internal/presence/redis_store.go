package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// redisStore implements PresenceStore using Redis.
//
// Key patterns:
//
//	presence:sessions                       SET<session_id>  - sessions with viewers
//	presence:session:{session_id}:viewers   SET<viewer_id>   - viewers in session
//	presence:viewer:{viewer_id}             STRING<session_id> with TTL - liveness
type redisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed presence store.
func NewRedisStore(cfg RedisConfig) (PresenceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisStore{client: client}, nil
}

// NewRedisStoreWithClient wraps an existing client (used in tests).
func NewRedisStoreWithClient(client *redis.Client) PresenceStore {
	return &redisStore{client: client}
}

const sessionsKey = "presence:sessions"

func sessionViewersKey(sessionID string) string {
	return fmt.Sprintf("presence:session:%s:viewers", sessionID)
}

func viewerKey(viewerID string) string {
	return fmt.Sprintf("presence:viewer:%s", viewerID)
}

func (s *redisStore) Add(ctx context.Context, sessionID, viewerID string, ttl time.Duration) error {
	prev, err := s.client.Get(ctx, viewerKey(viewerID)).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	pipe := s.client.TxPipeline()
	if err == nil && prev != sessionID {
		// Moving between sessions; the old membership must not survive as a
		// ghost the sweep can never prune.
		pipe.SRem(ctx, sessionViewersKey(prev), viewerID)
	}
	pipe.SAdd(ctx, sessionsKey, sessionID)
	pipe.SAdd(ctx, sessionViewersKey(sessionID), viewerID)
	pipe.Set(ctx, viewerKey(viewerID), sessionID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) Refresh(ctx context.Context, viewerID string, ttl time.Duration) (string, bool, error) {
	sessionID, err := s.client.Get(ctx, viewerKey(viewerID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := s.client.Expire(ctx, viewerKey(viewerID), ttl).Err(); err != nil {
		return "", false, err
	}
	return sessionID, true, nil
}

func (s *redisStore) Remove(ctx context.Context, viewerID string) (string, bool, error) {
	sessionID, err := s.client.Get(ctx, viewerKey(viewerID)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	pipe := s.client.TxPipeline()
	pipe.SRem(ctx, sessionViewersKey(sessionID), viewerID)
	pipe.Del(ctx, viewerKey(viewerID))
	_, err = pipe.Exec(ctx)
	if err != nil {
		return "", false, err
	}
	return sessionID, true, nil
}

func (s *redisStore) Count(ctx context.Context, sessionID string) (int, error) {
	n, err := s.client.SCard(ctx, sessionViewersKey(sessionID)).Result()
	return int(n), err
}

func (s *redisStore) Members(ctx context.Context, sessionID string) ([]string, error) {
	return s.client.SMembers(ctx, sessionViewersKey(sessionID)).Result()
}

func (s *redisStore) Sessions(ctx context.Context) ([]string, error) {
	return s.client.SMembers(ctx, sessionsKey).Result()
}

// Sweep prunes set members whose viewer liveness key has expired. The TTL
// on the viewer key is the only liveness signal; this reconciles the sets.
func (s *redisStore) Sweep(ctx context.Context) ([]string, error) {
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, err
	}

	var changed []string
	for _, sessionID := range sessions {
		members, err := s.Members(ctx, sessionID)
		if err != nil {
			return changed, err
		}

		var dead []interface{}
		for _, viewerID := range members {
			exists, err := s.client.Exists(ctx, viewerKey(viewerID)).Result()
			if err != nil {
				return changed, err
			}
			if exists == 0 {
				dead = append(dead, viewerID)
			}
		}
		if len(dead) == 0 {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.SRem(ctx, sessionViewersKey(sessionID), dead...)
		if _, err := pipe.Exec(ctx); err != nil {
			return changed, err
		}
		changed = append(changed, sessionID)

		remaining, err := s.Count(ctx, sessionID)
		if err == nil && remaining == 0 {
			s.client.SRem(ctx, sessionsKey, sessionID)
		}
	}
	return changed, nil
}

func (s *redisStore) RemoveSession(ctx context.Context, sessionID string) error {
	members, err := s.Members(ctx, sessionID)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	for _, viewerID := range members {
		pipe.Del(ctx, viewerKey(viewerID))
	}
	pipe.Del(ctx, sessionViewersKey(sessionID))
	pipe.SRem(ctx, sessionsKey, sessionID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
