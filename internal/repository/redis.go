package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	globalBlocksKey = "blocks:global"
	blocksByPrefix  = "blocks:by:"
)

// RedisOptions configures the Redis block store.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
}

// RedisBlocks keeps block lists in Redis sets: a system-wide ban set and one set per blocking user.
type RedisBlocks struct {
	client *redis.Client
}

// NewRedisClient builds a client with conservative timeouts.
func NewRedisClient(opts RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})
}

func NewRedisBlocks(client *redis.Client) *RedisBlocks {
	return &RedisBlocks{client: client}
}

// Ping tests the Redis connection.
func (r *RedisBlocks) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisBlocks) Close() error {
	return r.client.Close()
}

func (r *RedisBlocks) IsBlocked(ctx context.Context, target, by string) (bool, error) {
	setKey := globalBlocksKey
	if by = key(by); by != "" {
		setKey = blocksByPrefix + by
	}

	found, err := r.client.SIsMember(ctx, setKey, key(target)).Result()
	if err != nil {
		return false, fmt.Errorf("redis block lookup: %w", err)
	}
	return found, nil
}

// Ban hides id system-wide.
func (r *RedisBlocks) Ban(ctx context.Context, id string) error {
	return r.client.SAdd(ctx, globalBlocksKey, key(id)).Err()
}

// Block records that by has blocked target.
func (r *RedisBlocks) Block(ctx context.Context, target, by string) error {
	return r.client.SAdd(ctx, blocksByPrefix+key(by), key(target)).Err()
}
