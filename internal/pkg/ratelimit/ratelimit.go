package ratelimit

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/seat-booking-backend/internal/auth"
	"github.com/redis/go-redis/v9"
)

// The bucket state lives in one Redis hash per key. Refill happens in whole
// intervals so the script is deterministic for a given now_ms.
var tokenBucket = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local refill_tokens = tonumber(ARGV[3])
local interval_ms = tonumber(ARGV[4])
local ttl_seconds = tonumber(ARGV[5])

local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
local tokens = tonumber(state[1])
local last_refill = tonumber(state[2])

if tokens == nil or last_refill == nil then
    tokens = capacity
    last_refill = now_ms
end

if interval_ms > 0 and refill_tokens > 0 then
    local elapsed = math.max(0, now_ms - last_refill)
    local intervals = math.floor(elapsed / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + (intervals * refill_tokens))
        last_refill = last_refill + (intervals * interval_ms)
    end
end

local allowed = 0
local retry_after_ms = 0
if tokens > 0 then
    allowed = 1
    tokens = tokens - 1
else
    retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, tokens, retry_after_ms }
`)

// Config describes one token bucket.
type Config struct {
	Capacity       int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
}

// Limiter applies a Redis-backed token bucket per caller and route.
type Limiter struct {
	cfg Config
	rdb redis.Scripter
	now func() time.Time
}

// New creates a Limiter. A nil client disables limiting.
func New(cfg Config, rdb redis.Scripter) *Limiter {
	return &Limiter{cfg: cfg, rdb: rdb, now: time.Now}
}

// Decision is the result of taking one token.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Take consumes one token from the bucket identified by key.
func (l *Limiter) Take(c *gin.Context, key string) (Decision, error) {
	vals, err := tokenBucket.Run(c.Request.Context(), l.rdb, []string{key}, l.args()...).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("run token bucket script: %w", err)
	}

	arr, ok := vals.([]any)
	if !ok || len(arr) != 3 {
		return Decision{}, fmt.Errorf("unexpected token bucket result %#v", vals)
	}

	return Decision{
		Allowed:    asInt64(arr[0]) == 1,
		Remaining:  asInt64(arr[1]),
		RetryAfter: time.Duration(asInt64(arr[2])) * time.Millisecond,
	}, nil
}

func (l *Limiter) args() []any {
	return []any{
		l.now().UnixMilli(),
		l.cfg.Capacity,
		1,
		l.cfg.RefillInterval.Milliseconds(),
		int64(l.cfg.TTL / time.Second),
	}
}

// Middleware rejects requests with 429 once the caller's bucket is empty.
// Redis failures let the request through.
func (l *Limiter) Middleware() gin.HandlerFunc {
	if l == nil || l.rdb == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		key := l.key(c)

		d, err := l.Take(c, key)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rate limiter unavailable", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))

		if !d.Allowed {
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": secs,
			})
			return
		}

		c.Next()
	}
}

// key identifies the caller by authenticated user when present, else by client IP.
func (l *Limiter) key(c *gin.Context) string {
	parts := []string{l.cfg.Prefix}
	if uid := auth.GetUserID(c); uid != "" {
		parts = append(parts, "user", uid)
	} else {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		parts = append(parts, "ip", ip)
	}
	parts = append(parts, "route", c.Request.Method+" "+c.FullPath())
	return strings.Join(parts, ":")
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
