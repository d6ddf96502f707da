package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "relay:session:"

// SessionStore tracks issued moderator sessions so tokens can be revoked.
type SessionStore interface {
	Register(ctx context.Context, sessionID, moderatorID string, ttl time.Duration) error
	Active(ctx context.Context, sessionID string) (bool, error)
	Revoke(ctx context.Context, sessionID string) error
}

// RedisSessionStore keeps one expiring key per session.
type RedisSessionStore struct {
	client redis.UniversalClient
}

// NewRedisSessionStore wraps a redis client.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) Register(ctx context.Context, sessionID, moderatorID string, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKeyPrefix+sessionID, moderatorID, ttl).Err()
}

func (s *RedisSessionStore) Active(ctx context.Context, sessionID string) (bool, error) {
	err := s.client.Get(ctx, sessionKeyPrefix+sessionID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

// StatelessSessions accepts every signed token; logout is a no-op.
type StatelessSessions struct{}

func (StatelessSessions) Register(context.Context, string, string, time.Duration) error { return nil }

func (StatelessSessions) Active(context.Context, string) (bool, error) { return true, nil }

func (StatelessSessions) Revoke(context.Context, string) error { return nil }
