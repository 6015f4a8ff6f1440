package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit implements a sliding-window counter as one atomic Redis call.
// KEYS[1] = window key, ARGV = now, window start, window seconds, member, limit.
// Returns the request count within the window, or -1 when over the limit.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RateLimit throttles payment and checkout endpoints per authenticated user,
// falling back to the client IP for anonymous calls. Redis failures let the
// request through.
func RateLimit(rdb *rd.Client, limit int, window time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rdb == nil {
			return c.Next()
		}

		var key string
		if userID, ok := GetCurrentUserID(c); ok {
			key = fmt.Sprintf("velora:rate:user:%s", userID)
		} else {
			key = fmt.Sprintf("velora:rate:ip:%s", c.IP())
		}

		now := time.Now().Unix()
		windowSec := int64(window.Seconds())
		windowStart := now - windowSec
		member := fmt.Sprintf("%d-%d", now, time.Now().UnixNano())

		res, err := rdb.Eval(c.Context(), luaRateLimit, []string{key},
			now, windowStart, windowSec, member, limit).Int()
		if err != nil {
			return c.Next()
		}

		if res < 0 {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, slow down")
		}

		return c.Next()
	}
}
