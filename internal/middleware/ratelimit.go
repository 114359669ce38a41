package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/devlog-hq/devlog/internal/modules/serializer"
)

const tokenBucketLua = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
end
if ts == nil then
  ts = now
end

local delta = math.max(0, now - ts)
tokens = math.min(burst, tokens + (delta * rate) / 1000.0)

local allowed = tokens >= 1
local wait_ms = 0
if allowed then
  tokens = tokens - 1
else
  wait_ms = math.ceil((1 - tokens) * 1000.0 / rate)
end

redis.call("HMSET", key, "tokens", tokens, "ts", now)
redis.call("PEXPIRE", key, math.ceil((burst / rate) * 1000.0 * 2))

return {allowed and 1 or 0, wait_ms}
`

// RateLimiter is a per-client token bucket kept in Redis so every API
// instance shares the same budget.
type RateLimiter struct {
	rdb    redis.UniversalClient
	prefix string
	rate   float64
	burst  float64
	log    *zap.Logger
	script *redis.Script
	now    func() time.Time
}

func NewRateLimiter(rdb redis.UniversalClient, prefix string, rate, burst float64, log *zap.Logger) *RateLimiter {
	return &RateLimiter{
		rdb:    rdb,
		prefix: prefix,
		rate:   rate,
		burst:  burst,
		log:    log,
		script: redis.NewScript(tokenBucketLua),
		now:    time.Now,
	}
}

// Allow takes one token for key. wait is how long until the next token.
func (r *RateLimiter) Allow(ctx context.Context, key string) (ok bool, wait time.Duration, err error) {
	if r == nil || r.rate <= 0 || r.burst <= 0 {
		return true, 0, nil
	}
	res, err := r.script.Run(ctx, r.rdb, []string{r.prefix + ":" + key}, r.rate, r.burst, r.now().UnixMilli()).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("ratelimit eval: %w", err)
	}
	if len(res) < 2 {
		return false, 0, fmt.Errorf("ratelimit invalid result")
	}
	return res[0] == 1, time.Duration(res[1]) * time.Millisecond, nil
}

// Middleware limits by client IP. Redis failures let the request through.
func (r *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, wait, err := r.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			r.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			secs := int((wait + time.Second - 1) / time.Second)
			c.Header("Retry-After", strconv.Itoa(max(secs, 1)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				serializer.Err(http.StatusTooManyRequests, "too many attempts, try again later", nil))
			return
		}
		c.Next()
	}
}
