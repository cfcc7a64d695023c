package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gifticon:session:"

// RedisTokens keeps tokens in Redis with a TTL so sessions survive restarts
// and are shared between instances.
type RedisTokens struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisTokens(rdb *redis.Client, ttl time.Duration) *RedisTokens {
	return &RedisTokens{rdb: rdb, ttl: ttl}
}

func redisKey(subject string) string {
	return redisKeyPrefix + subject
}

func (r *RedisTokens) Get(ctx context.Context, subject string) (string, bool, error) {
	token, err := r.rdb.Get(ctx, redisKey(subject)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading session: %w", err)
	}
	return token, true, nil
}

func (r *RedisTokens) Set(ctx context.Context, subject, token string) error {
	if err := r.rdb.Set(ctx, redisKey(subject), token, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

func (r *RedisTokens) Delete(ctx context.Context, subject string) error {
	if err := r.rdb.Del(ctx, redisKey(subject)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}
