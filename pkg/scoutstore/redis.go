package scoutstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisFastTierConfig holds configuration for the Redis-backed fast tier.
type RedisFastTierConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long fast-tier entries outlive their last write. Zero
	// means no expiry.
	TTL time.Duration
	// OpTimeout bounds each synchronous Get/Set call so the fast tier stays
	// responsive when Redis is unreachable.
	OpTimeout time.Duration
}

// RedisFastTier is a FastTier backed by Redis. A slow or failed lookup is
// reported as a miss, keeping the synchronous contract of the interface.
type RedisFastTier struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	ttl         time.Duration
	opTimeout   time.Duration
}

// NewRedisFastTier creates and connects a new RedisFastTier. It pings the
// Redis server to ensure connectivity before returning.
func NewRedisFastTier(ctx context.Context, cfg *RedisFastTierConfig, logger zerolog.Logger) (*RedisFastTier, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis for fast tier: %w", err)
	}

	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 250 * time.Millisecond
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis for fast tier.")

	return &RedisFastTier{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisFastTier").Logger(),
		ttl:         cfg.TTL,
		opTimeout:   opTimeout,
	}, nil
}

// Get returns the stored JSON string for key, or false on a miss. Redis
// errors other than a plain miss are logged and reported as misses.
func (t *RedisFastTier) Get(key string) (string, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), t.opTimeout)
	defer cancel()

	raw, err := t.redisClient.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.logger.Debug().Err(err).Str("key", key).Msg("Redis fast-tier read failed; treating as miss.")
		}
		return "", false
	}
	return raw, true
}

// Set stores a JSON string under key with the configured TTL.
func (t *RedisFastTier) Set(key string, raw string) error {
	ctx, cancel := context.WithTimeout(context.Background(), t.opTimeout)
	defer cancel()

	if err := t.redisClient.Set(ctx, key, raw, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set fast-tier key %s in redis: %w", key, err)
	}
	return nil
}

// Close closes the Redis client connection.
func (t *RedisFastTier) Close() error {
	if t.redisClient != nil {
		t.logger.Info().Msg("Closing Redis fast-tier client connection...")
		return t.redisClient.Close()
	}
	return nil
}
