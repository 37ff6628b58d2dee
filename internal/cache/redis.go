package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/staybooking/config"
	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisCache backs the abuse guard counters, the dynamic blocklist, the
// decision stats and the bookings listing cache.
type RedisCache struct {
	client   *redis.Client
	listTTL  time.Duration
	statsTTL time.Duration
	prefix   string
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
}

func NewRedisCache(client *redis.Client, listTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:   client,
		listTTL:  listTTL,
		statsTTL: 24 * time.Hour,
		prefix:   "guard:stats",
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Increment bumps key inside MULTI/EXEC so the counter and its expiry are set
// together.
func (c *RedisCache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

func (c *RedisCache) Block(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Set(ctx, key, "1", ttl).Err()
}

// BlockRemaining returns zero when key is not blocked.
func (c *RedisCache) BlockRemaining(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// RecordDecision counts decisions per rule in a per-minute hash.
func (c *RedisCache) RecordDecision(ctx context.Context, rule, outcome string, at time.Time) error {
	bucket := fmt.Sprintf("%s:minute:%s", c.prefix, at.UTC().Format("200601021504"))
	field := rule + ":" + outcome

	pipe := c.client.Pipeline()
	pipe.HIncrBy(ctx, bucket, field, 1)
	pipe.Expire(ctx, bucket, c.statsTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *RedisCache) GetBookings(ctx context.Context) ([]domain.Booking, error) {
	data, err := c.client.Get(ctx, bookingsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var bookings []domain.Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (c *RedisCache) SetBookings(ctx context.Context, bookings []domain.Booking) error {
	if bookings == nil {
		bookings = []domain.Booking{}
	}
	payload, err := json.Marshal(bookings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, bookingsKey(), payload, c.listTTL).Err()
}

func (c *RedisCache) InvalidateBookings(ctx context.Context) error {
	return c.client.Del(ctx, bookingsKey()).Err()
}

func bookingsKey() string {
	return "cache:bookings"
}
