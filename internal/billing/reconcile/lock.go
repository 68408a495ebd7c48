package reconcile

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventLocker serialises concurrent deliveries of one provider event.
type EventLocker interface {
	Acquire(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type RedisEventLocker struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisEventLocker(client redis.Cmdable, ttl time.Duration) *RedisEventLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisEventLocker{client: client, ttl: ttl}
}

func EventLockKey(eventID string) string {
	return "stripe:event:" + eventID
}

func (l *RedisEventLocker) Acquire(ctx context.Context, eventID string) (bool, error) {
	return l.client.SetNX(ctx, EventLockKey(eventID), "1", l.ttl).Result()
}

func (l *RedisEventLocker) Release(ctx context.Context, eventID string) error {
	return l.client.Del(ctx, EventLockKey(eventID)).Err()
}
