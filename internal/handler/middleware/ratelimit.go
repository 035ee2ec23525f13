package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"merchant-backend/internal/handler/httperr"
	"merchant-backend/internal/infra/ratelimit"
	"merchant-backend/internal/pkg/clock"
	"merchant-backend/internal/pkg/config"
	"merchant-backend/internal/pkg/errs"

	"github.com/gin-gonic/gin"
)

const defaultThrottler = "default"

var errRateLimited = errs.New("rate limit exceeded")

type Limiter interface {
	Increment(ctx context.Context, key string, window time.Duration, limit int, block time.Duration, throttlerName string) ratelimit.Result
}

// RateLimiter is the admission control in front of the route groups. Every
// named throttler counts independently in the shared storage.
type RateLimiter struct {
	storage    Limiter
	throttlers map[string]config.ThrottlerConfig
	clock      clock.Clock
}

func NewRateLimiter(storage Limiter, cfg config.ThrottleConfig, clk clock.Clock) *RateLimiter {
	return &RateLimiter{
		storage:    storage,
		throttlers: cfg.Throttlers(),
		clock:      clk,
	}
}

// Limit returns the middleware for the named throttler. An unknown name is a
// wiring mistake and panics at route setup.
func (r *RateLimiter) Limit(name string) gin.HandlerFunc {
	t, ok := r.throttlers[name]
	if !ok {
		panic(fmt.Sprintf("ratelimit: unknown throttler %q", name))
	}
	suffix := ""
	if name != defaultThrottler {
		suffix = "-" + name
	}

	return func(c *gin.Context) {
		res := r.storage.Increment(c.Request.Context(), clientKey(c), t.TTL, t.Limit, t.Block, name)
		now := r.clock.Now().UnixMilli()

		remaining := t.Limit - res.TotalHits
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit"+suffix, strconv.Itoa(t.Limit))
		c.Header("X-RateLimit-Remaining"+suffix, strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset"+suffix, strconv.FormatInt(secondsUntil(now, res.TimeToExpire), 10))

		if res.IsBlocked {
			c.Header("Retry-After"+suffix, strconv.FormatInt(secondsUntil(now, res.TimeToBlockExpire), 10))
			httperr.AbortWithError(c, http.StatusTooManyRequests, errRateLimited, "Too many requests", nil)
			return
		}
		c.Next()
	}
}

// clientKey prefers the authenticated merchant so one merchant behind many
// addresses shares a budget.
func clientKey(c *gin.Context) string {
	if merchantID, ok := GetMerchantID(c); ok {
		return "merchant:" + merchantID.String()
	}
	return "ip:" + c.ClientIP()
}

func secondsUntil(nowMs, atMs int64) int64 {
	if atMs <= nowMs {
		return 0
	}
	return (atMs - nowMs + 999) / 1000
}
