package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eventplace/internal/config"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix = "booking_confirm_lock:"

	redisDialTimeout = 3 * time.Second
	redisIOTimeout   = 2 * time.Second
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisConfirmationLocker holds per-booking locks as SET NX keys with a TTL.
type RedisConfirmationLocker struct {
	client *redis.Client
	tokens sync.Map // bookingID -> token
}

// NewRedisClient builds a client for the lock store and the recovery queue.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
	})
}

func NewRedisConfirmationLocker(client *redis.Client) *RedisConfirmationLocker {
	return &RedisConfirmationLocker{client: client}
}

func (r *RedisConfirmationLocker) Acquire(ctx context.Context, bookingID string, ttl time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+bookingID, token, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire confirmation lock: %w", err)
	}
	if ok {
		r.tokens.Store(bookingID, token)
	}
	return ok, nil
}

func (r *RedisConfirmationLocker) Release(ctx context.Context, bookingID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	val, ok := r.tokens.LoadAndDelete(bookingID)
	if !ok {
		return nil
	}
	if err := releaseScript.Run(ctx, r.client, []string{lockKeyPrefix + bookingID}, val.(string)).Err(); err != nil {
		return fmt.Errorf("failed to release confirmation lock: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
	}
	return nil
}
