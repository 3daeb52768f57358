package codestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-user-registration/internal/domain"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "verification_code:"

// Redis stores codes with a native key expiry, so API replicas share codes.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func key(email string) string {
	return keyPrefix + domain.NormalizeEmail(email)
}

func (r *Redis) Save(ctx context.Context, email, code string) error {
	if err := r.client.Set(ctx, key(email), code, r.ttl).Err(); err != nil {
		return fmt.Errorf("save code: %v: %w", err, domain.ErrStoreUnavailable)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, email string) (string, bool, error) {
	code, err := r.client.Get(ctx, key(email)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get code: %v: %w", err, domain.ErrStoreUnavailable)
	}
	return code, true, nil
}

func (r *Redis) Delete(ctx context.Context, email string) error {
	if err := r.client.Del(ctx, key(email)).Err(); err != nil {
		return fmt.Errorf("delete code: %v: %w", err, domain.ErrStoreUnavailable)
	}
	return nil
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
