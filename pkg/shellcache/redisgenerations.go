package shellcache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisGenerationsConfig holds configuration for the Redis generation store.
type RedisGenerationsConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix namespaces this app's generations within a shared Redis.
	KeyPrefix string
}

// RedisGenerations is a GenerationStore backed by Redis: one hash per
// generation plus an index set of version tags, so activation can sweep
// stale generations without scanning the keyspace.
type RedisGenerations struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	prefix      string
}

// NewRedisGenerations creates and connects a new RedisGenerations. It pings
// the Redis server to ensure connectivity before returning.
func NewRedisGenerations(ctx context.Context, cfg *RedisGenerationsConfig, logger zerolog.Logger) (*RedisGenerations, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis for generation store: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "shellcache:"
	}

	logger.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis for generation store.")

	return &RedisGenerations{
		redisClient: rdb,
		logger:      logger.With().Str("component", "RedisGenerations").Logger(),
		prefix:      prefix,
	}, nil
}

func (g *RedisGenerations) generationKey(version string) string {
	return g.prefix + "gen:" + version
}

func (g *RedisGenerations) indexKey() string {
	return g.prefix + "generations"
}

// Put stores a snapshot under key in the generation tagged version.
func (g *RedisGenerations) Put(ctx context.Context, version string, key string, snapshot Snapshot) error {
	pipe := g.redisClient.TxPipeline()
	pipe.HSet(ctx, g.generationKey(version), key, []byte(snapshot))
	pipe.SAdd(ctx, g.indexKey(), version)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store snapshot for generation %s: %w", version, err)
	}
	return nil
}

// Match returns the snapshot stored under key, or ErrNoSnapshot.
func (g *RedisGenerations) Match(ctx context.Context, version string, key string) (Snapshot, error) {
	raw, err := g.redisClient.HGet(ctx, g.generationKey(version), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("generation %s: %w", version, ErrNoSnapshot)
		}
		return nil, fmt.Errorf("redis hget failed for generation %s: %w", version, err)
	}
	return Snapshot(raw), nil
}

// Versions lists the version tags of every existing generation.
func (g *RedisGenerations) Versions(ctx context.Context) ([]string, error) {
	versions, err := g.redisClient.SMembers(ctx, g.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list generations: %w", err)
	}
	return versions, nil
}

// Delete removes an entire generation and its index entry.
func (g *RedisGenerations) Delete(ctx context.Context, version string) error {
	pipe := g.redisClient.TxPipeline()
	pipe.Del(ctx, g.generationKey(version))
	pipe.SRem(ctx, g.indexKey(), version)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete generation %s: %w", version, err)
	}
	return nil
}

// Close closes the Redis client connection.
func (g *RedisGenerations) Close() error {
	if g.redisClient != nil {
		g.logger.Info().Msg("Closing Redis generation-store client connection...")
		return g.redisClient.Close()
	}
	return nil
}
