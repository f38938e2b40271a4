package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/treehole/backend/internal/cache"
	apierrors "github.com/treehole/backend/internal/errors"
	"github.com/treehole/backend/internal/logger"
	"github.com/treehole/backend/internal/metrics"
	"go.uber.org/zap"
)

// RateLimit is a fixed-window per-IP limiter backed by Redis so the limit
// holds across instances. Without Redis requests pass through.
func RateLimit(endpoint string, maxRequests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		redisClient := cache.Get()
		if redisClient == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate:%s:%s", endpoint, c.ClientIP())
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		count, err := redisClient.Raw().Incr(ctx, key).Result()
		if err != nil {
			// A broken limiter should not take the API down with it.
			logger.Log.Warn("Rate limit check failed, allowing request",
				logger.WithIP(c.ClientIP()), zap.Error(err))
			c.Next()
			return
		}

		if count == 1 {
			if err := redisClient.Raw().Expire(ctx, key, window).Err(); err != nil {
				logger.Log.Warn("Failed to set rate limit window", zap.Error(err))
			}
		}

		if count > int64(maxRequests) {
			metrics.Get().RateLimitExceededTotal.WithLabelValues(endpoint).Inc()
			logger.Log.Warn("Rate limit exceeded",
				logger.WithIP(c.ClientIP()),
				zap.String("endpoint", endpoint),
				zap.Int64("count", count))

			apiErr := apierrors.RateLimited("")
			c.Header("Retry-After", fmt.Sprintf("%.0f", window.Seconds()))
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
			return
		}

		c.Next()
	}
}
