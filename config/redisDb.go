package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Cache is a thin JSON wrapper over redis. A nil *Cache (or one with a nil
// client) is a no-op, so callers do not need to care whether redis is set up.
type Cache struct {
	client *redis.Client
	locker *redislock.Client
}

func NewCache(client *redis.Client) *Cache {
	if client == nil {
		return nil
	}
	return &Cache{client: client, locker: redislock.New(client)}
}

func (c *Cache) Client() *redis.Client {
	if c == nil {
		return nil
	}
	return c.client
}

func (c *Cache) Locker() *redislock.Client {
	if c == nil {
		return nil
	}
	return c.locker
}

func (c *Cache) GetObject(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) SetObject(ctx context.Context, key string, obj interface{}, exp time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	objInByte, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, objInByte, exp).Err()
}

func (c *Cache) RemoveKey(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ConnectRedisWithRetry pings addr until it answers or ctx is done.
func ConnectRedisWithRetry(ctx context.Context, addr string, logg *logrus.Logger) (*Cache, error) {
	var attempt int
	for {
		attempt++
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: "",
			DB:       0,
			PoolSize: 100,
		})
		err := rdb.Ping(ctx).Err()
		if err == nil {
			logg.WithFields(logrus.Fields{"field": "redis", "attempt": attempt, "addr": addr}).Info("connected to redis")
			return NewCache(rdb), nil
		}
		_ = rdb.Close()

		sleep := backoff(attempt)
		logg.WithFields(logrus.Fields{
			"field":   "redis",
			"attempt": attempt,
			"addr":    addr,
		}).Warn("failed to connect redis; retrying in " + sleep.String() + ": " + err.Error())

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect redis: %w", ctx.Err())
		case <-time.After(sleep):
		}
	}
}
