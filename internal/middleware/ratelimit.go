package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/iliyamo/estate-portal/internal/config"
)

// tokenBucket refills in whole intervals and returns {allowed, remaining,
// retry_after_ms}.
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

local elapsed = math.max(0, now_ms - last_refill)
local intervals = math.floor(elapsed / interval_ms)
if intervals > 0 then
	tokens = math.min(capacity, tokens + intervals * refill_tokens)
	last_refill = last_refill + intervals * interval_ms
end

local allowed = 0
local retry_ms = 0
if tokens > 0 then
	allowed = 1
	tokens = tokens - 1
else
	retry_ms = math.max(0, interval_ms - (now_ms - last_refill))
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, tokens, retry_ms }
`)

// RateLimiter throttles by key.  It uses the Redis token bucket when a
// client is configured and an in-process x/time/rate limiter otherwise, or
// when Redis errors.
type RateLimiter struct {
	cfg config.RateLimitConfig
	rdb redis.UniversalClient
	log *zap.Logger

	mu    sync.Mutex
	local map[string]*localBucket
}

type localBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(cfg config.RateLimitConfig, rdb redis.UniversalClient, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{cfg: cfg, rdb: rdb, log: log, local: map[string]*localBucket{}}
}

// Handler returns the echo middleware.  A disabled limiter passes through.
func (l *RateLimiter) Handler() echo.MiddlewareFunc {
	if l == nil || !l.cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(l.cfg, c)
			allowed, remaining, retry := l.take(c, key)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if l.cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if !allowed {
				secs := int(math.Ceil(retry.Seconds()))
				h.Set("Retry-After", strconv.Itoa(secs))
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":       "too many requests",
					"retry_after": secs,
				})
			}
			return next(c)
		}
	}
}

func (l *RateLimiter) take(c echo.Context, key string) (bool, int64, time.Duration) {
	if l.rdb != nil {
		vals, err := tokenBucket.Run(c.Request().Context(), l.rdb, []string{key},
			time.Now().UnixMilli(), l.cfg.Capacity, l.cfg.RefillTokens,
			l.cfg.RefillInterval.Milliseconds(), int64(l.cfg.TTL/time.Second)).Int64Slice()
		if err == nil && len(vals) == 3 {
			return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond
		}
		if l.cfg.Debug {
			l.log.Warn("ratelimit: redis unavailable, using local bucket", zap.String("key", key), zap.Error(err))
		}
	}
	return l.takeLocal(key)
}

func (l *RateLimiter) takeLocal(key string) (bool, int64, time.Duration) {
	now := time.Now()
	l.mu.Lock()
	b, ok := l.local[key]
	if !ok {
		b = &localBucket{limiter: rate.NewLimiter(rate.Limit(l.cfg.RefillRate()), l.cfg.Capacity)}
		l.local[key] = b
		l.sweepLocked(now)
	}
	b.lastSeen = now
	l.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}
	return true, int64(b.limiter.TokensAt(now)), 0
}

// sweepLocked drops buckets idle for longer than the configured TTL.
func (l *RateLimiter) sweepLocked(now time.Time) {
	for k, b := range l.local {
		if now.Sub(b.lastSeen) > l.cfg.TTL {
			delete(l.local, k)
		}
	}
}

func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	uid := AppContextFrom(c).IdentityID
	if uid == "" {
		uid = "anon"
	}
	route := c.Request().Method + " " + c.Path()

	parts := []string{cfg.Prefix}
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "user":
		parts = append(parts, "user", uid)
	case "route":
		parts = append(parts, "route", route)
	case "ip_route":
		parts = append(parts, "ip", ip, "route", route)
	case "user_route":
		parts = append(parts, "user", uid, "route", route)
	default:
		parts = append(parts, "ip", ip, "user", uid, "route", route)
	}
	return strings.Join(parts, ":")
}

func (l *RateLimiter) String() string {
	backend := "local"
	if l.rdb != nil {
		backend = "redis"
	}
	return fmt.Sprintf("ratelimit(%s, capacity=%d, refill=%d/%s)", backend, l.cfg.Capacity, l.cfg.RefillTokens, l.cfg.RefillInterval)
}
