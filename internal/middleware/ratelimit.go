package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/taskflo/taskflo/internal/config"
)

// tokenBucketScript refills and drains one bucket atomically.  Bucket state
// lives in a Redis hash per key; the script returns
// {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_s = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'refilled_ms')
local tokens = tonumber(state[1])
local refilled_ms = tonumber(state[2])
if tokens == nil or refilled_ms == nil then
  tokens = capacity
  refilled_ms = now_ms
end

local steps = math.floor(math.max(0, now_ms - refilled_ms) / interval_ms)
if steps > 0 then
  tokens = math.min(capacity, tokens + steps * refill)
  refilled_ms = refilled_ms + steps * interval_ms
end

local allowed = 0
local retry_ms = 0
if tokens > 0 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.max(0, interval_ms - (now_ms - refilled_ms))
end

redis.call('HMSET', key, 'tokens', tokens, 'refilled_ms', refilled_ms)
redis.call('EXPIRE', key, ttl_s)
return {allowed, tokens, retry_ms}
`)

// NewTokenBucket rate limits by client IP and route.  It sits on the public
// auth endpoints, which are hit before any principal exists, so the
// caller's IP is the only stable identity there.  A nil Redis client or a
// script error degrades to a pass-through: losing the limiter must not
// take login and password recovery down with it.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			key := cfg.Prefix + ":" + ip + ":" + c.Request().Method + ":" + c.Path()

			res, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL/time.Second),
			).Int64Slice()
			if err != nil || len(res) != 3 {
				return next(c)
			}

			c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))

			if res[0] != 1 {
				secs := int(math.Ceil(float64(res[2]) / 1000))
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too many requests",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}
