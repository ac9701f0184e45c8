package push

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisDeduper arbitrates delivery paths through a shared SETNX key per
// message ID. The first path to claim the key presents; the other becomes a
// no-op.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper. ttl bounds how long a delivery claim is
// remembered; zero defaults to 24 hours.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{client: client, ttl: ttl}
}

// FirstDelivery claims the delivery key for messageID and reports whether
// this caller won it.
func (d *RedisDeduper) FirstDelivery(ctx context.Context, messageID string) (bool, error) {
	return d.client.SetNX(ctx, "push:delivered:"+messageID, "1", d.ttl).Result()
}
