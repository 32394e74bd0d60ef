package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // key prefix, defaults to "news:seen:"
	TTL      time.Duration // how long a URL stays claimed
}

// RedisSeenSet keeps one key per canonical URL, claimed with SETNX.
type RedisSeenSet struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSeenSet(cfg RedisConfig) (*RedisSeenSet, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "news:seen:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}

	return &RedisSeenSet{client: client, prefix: prefix, ttl: ttl}, nil
}

func (r *RedisSeenSet) key(url string) string {
	h := sha256.Sum256([]byte(url))
	return r.prefix + hex.EncodeToString(h[:])
}

func (r *RedisSeenSet) Seen(ctx context.Context, url string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(url)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *RedisSeenSet) Claim(ctx context.Context, url string) (bool, error) {
	return r.client.SetNX(ctx, r.key(url), time.Now().Unix(), r.ttl).Result()
}

func (r *RedisSeenSet) Release(ctx context.Context, url string) error {
	return r.client.Del(ctx, r.key(url)).Err()
}

func (r *RedisSeenSet) Close() error {
	return r.client.Close()
}
