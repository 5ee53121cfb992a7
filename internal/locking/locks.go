package locking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// UserLocker serializes review work per user: the batch loop and the
// single-user entry point must never process the same user concurrently.
type UserLocker interface {
	// Acquire takes the per-user lease. It returns false when another worker
	// already holds it.
	Acquire(ctx context.Context, userID uuid.UUID) (bool, error)
	Release(ctx context.Context, userID uuid.UUID)
}

// RedisLocker implements UserLocker with a SET NX lease. The TTL bounds how
// long a crashed worker can block a user's reviews.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, userID uuid.UUID) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(userID), 1, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire review lock: %w", err)
	}
	return ok, nil
}

func (l *RedisLocker) Release(ctx context.Context, userID uuid.UUID) {
	// Best effort; an unreleased lock expires with the TTL.
	l.client.Del(ctx, lockKey(userID))
}

func lockKey(userID uuid.UUID) string {
	return "review:lock:" + userID.String()
}
