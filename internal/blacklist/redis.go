package blacklist

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "blacklist:"

// Redis is a Store backed by a Redis instance. The key TTL matches the
// token's remaining lifetime, so expired entries vanish on their own.
type Redis struct {
	client *redis.Client
}

// NewRedis creates a redis-backed blacklist and verifies connectivity
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, err
	}

	return &Redis{client: client}, nil
}

// Add records a token as revoked until expiresAt
func (r *Redis) Add(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		// Already past its expiry; verification will reject it anyway
		return nil
	}
	return r.client.Set(ctx, keyPrefix+token, "1", ttl).Err()
}

// Contains reports whether a token has been revoked and is not yet expired
func (r *Redis) Contains(ctx context.Context, token string) (bool, error) {
	err := r.client.Get(ctx, keyPrefix+token).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close releases the underlying redis connection
func (r *Redis) Close() error {
	return r.client.Close()
}
