// Package cache wraps the Redis client used for the unread-badge cache and
// request rate limiting. Redis is optional: every caller degrades to the
// source of truth when the client is absent.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/treehole/backend/internal/logger"
	"go.uber.org/zap"
)

// RedisClient wraps redis.Client with centralized connection pooling.
type RedisClient struct {
	client *redis.Client
}

var globalRedis *RedisClient

const unreadCountTTL = 5 * time.Minute

// NewRedisClient creates and pings a Redis client.
func NewRedisClient(host, port, password string) (*RedisClient, error) {
	if host == "" {
		host = "localhost"
	}
	if port == "" {
		port = "6379"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%s", host, port),
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	rc := &RedisClient{client: client}
	globalRedis = rc

	logger.Log.Info("Redis connected", zap.String("addr", client.Options().Addr))
	return rc, nil
}

// Get returns the global Redis client, or nil when Redis is not configured.
func Get() *RedisClient {
	return globalRedis
}

// Close closes the Redis connection.
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Raw exposes the underlying client for middleware that needs pipelines.
func (rc *RedisClient) Raw() *redis.Client {
	return rc.client
}

func unreadKey(recipientID string) string {
	return "notif:unread:" + recipientID
}

// GetUnreadCount returns the cached unread badge count for a recipient.
// The second return value is false on a miss or any Redis error.
func (rc *RedisClient) GetUnreadCount(ctx context.Context, recipientID string) (int64, bool) {
	val, err := rc.client.Get(ctx, unreadKey(recipientID)).Result()
	if err != nil {
		return 0, false
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return count, true
}

// SetUnreadCount caches the unread badge count for a recipient.
func (rc *RedisClient) SetUnreadCount(ctx context.Context, recipientID string, count int64) {
	if err := rc.client.Set(ctx, unreadKey(recipientID), count, unreadCountTTL).Err(); err != nil {
		logger.Log.Debug("Failed to cache unread count", zap.Error(err))
	}
}

// InvalidateUnreadCount drops the cached badge count after any write that
// changes it (new notification, mark read, clear).
func (rc *RedisClient) InvalidateUnreadCount(ctx context.Context, recipientID string) {
	if err := rc.client.Del(ctx, unreadKey(recipientID)).Err(); err != nil {
		logger.Log.Debug("Failed to invalidate unread count", zap.Error(err))
	}
}
