package middlewares

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/mmdatafocus/clearview_backend/utils"
)

const rateLimitPrefix = "ratelimit:"

// RateLimiter is a fixed window counter per client IP, kept in Redis so all
// instances share it.
type RateLimiter struct {
	client redis.UniversalClient
	limit  int64
	window time.Duration
}

func NewRateLimiter(client redis.UniversalClient, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := rateLimitPrefix + c.ClientIP()
	ctx := c.Request.Context()

	// INCR and EXPIRE NX go out in one MULTI so the key always carries a TTL.
	// NX keeps the window anchored at the first hit.
	var incr *redis.IntCmd
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, rl.window)
		return nil
	})
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	count := incr.Val()

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, utils.ErrorResponse{
			Error: fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}
	c.Next()
}
