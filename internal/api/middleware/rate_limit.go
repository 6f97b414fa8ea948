package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type RateLimitMiddleware struct {
	redis *redis.Client
}

func NewRateLimitMiddleware(redisClient *redis.Client) *RateLimitMiddleware {
	return &RateLimitMiddleware{redis: redisClient}
}

// RateLimit limits authenticated requests per user and endpoint using a
// fixed redis counter window.
func (rm *RateLimitMiddleware) RateLimit(requests int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		key := fmt.Sprintf("rate_limit:%v:%s", userID, c.Request.URL.Path)
		allowed, err := rm.allow(c, key, requests, window)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "rate limit check failed"})
			c.Abort()
			return
		}
		if !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate limit exceeded",
				"message": fmt.Sprintf("too many requests, limit: %d per %v", requests, window),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (rm *RateLimitMiddleware) allow(c *gin.Context, key string, requests int, window time.Duration) (bool, error) {
	ctx := c.Request.Context()

	count, err := rm.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := rm.redis.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(requests), nil
}
