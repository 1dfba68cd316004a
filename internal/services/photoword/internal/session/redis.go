package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hiroshi75/photoword/internal/services/photoword/internal/dedup"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "photoword:session:"

type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Redis{
		rdb: rdb,
		ttl: cfg.TTL,
	}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *Redis) LastDigest(ctx context.Context, sessionID string) (dedup.Digest, error) {
	val, err := r.rdb.Get(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("read session marker from redis: %w", err)
	}

	return dedup.Digest(val), nil
}

func (r *Redis) Remember(ctx context.Context, sessionID string, d dedup.Digest) error {
	if err := r.rdb.Set(ctx, redisKeyPrefix+sessionID, string(d), r.ttl).Err(); err != nil {
		return fmt.Errorf("store session marker in redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
