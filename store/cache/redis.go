package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SharedCache is an optional cross-process cache tier sitting between the
// in-memory tier and the persistent store. It is only needed for
// multi-instance deployments; the tiered cache works fine without it.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, time.Time, bool)
	Set(ctx context.Context, key string, payload []byte, writtenAt time.Time) error
	Close() error
}

// RedisConfig holds the Redis connection configuration.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisCache implements SharedCache on Redis. Entries carry their own write
// timestamp so the tiered cache can enforce its TTL contract independently of
// Redis key expiry (the Redis expiry is just housekeeping).
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

type redisEnvelope struct {
	Payload   []byte `json:"payload"`
	WrittenTs int64  `json:"written_ts"`
}

// NewRedisCache creates a new Redis-backed shared cache tier.
func NewRedisCache(ctx context.Context, config *RedisConfig) (*RedisCache, error) {
	if config == nil || config.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "placesense:place:"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to ping redis")
	}

	return &RedisCache{
		client: client,
		prefix: config.KeyPrefix,
		ttl:    config.TTL,
	}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, time.Time, bool) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		return nil, time.Time{}, false
	}

	var envelope redisEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, time.Time{}, false
	}
	return envelope.Payload, time.Unix(envelope.WrittenTs, 0), true
}

func (r *RedisCache) Set(ctx context.Context, key string, payload []byte, writtenAt time.Time) error {
	raw, err := json.Marshal(redisEnvelope{
		Payload:   payload,
		WrittenTs: writtenAt.Unix(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal redis cache envelope")
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to set redis cache entry")
	}
	return nil
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
