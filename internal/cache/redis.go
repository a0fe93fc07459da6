package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is a Redis-backed primary tier, shared across collector
// processes pointing at the same instance.
type RedisTier struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisTier connects to Redis and verifies the connection.
func NewRedisTier(cfg RedisConfig) (*RedisTier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisTier{client: client}, nil
}

func (t *RedisTier) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := t.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}

		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	return val, nil
}

func (t *RedisTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := t.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}

	return nil
}

func (t *RedisTier) Delete(ctx context.Context, key string) error {
	if err := t.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

// Clear removes every key with the prefix using incremental SCAN, so a
// large keyspace never blocks the server.
func (t *RedisTier) Clear(ctx context.Context, prefix string) error {
	var (
		cursor uint64
		keys   []string
	)

	for {
		var (
			scanKeys []string
			err      error
		)

		scanKeys, cursor, err = t.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("redis scan failed: %w", err)
		}

		keys = append(keys, scanKeys...)

		if cursor == 0 {
			break
		}
	}

	if len(keys) > 0 {
		if err := t.client.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis clear failed: %w", err)
		}
	}

	return nil
}

func (t *RedisTier) Close() error {
	return t.client.Close()
}
