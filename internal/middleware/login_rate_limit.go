package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const loginRateKeyPrefix = "rl:login:"

// LoginRateLimit limits login attempts per account or IP. Counters live in
// Redis when a client is given, otherwise in a per-process token bucket.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	local := newLocalLimiter(maxPerMin)

	return func(c *fiber.Ctx) error {
		var req struct {
			Account string `json:"account"`
		}
		_ = c.BodyParser(&req)
		key := strings.TrimSpace(req.Account)
		if key == "" {
			key = c.IP()
		}

		if cache == nil {
			if !local.allow(key) {
				return tooManyAttempts()
			}
			return c.Next()
		}

		redisKey := loginRateKeyPrefix + key
		cnt, err := cache.Incr(c.UserContext(), redisKey).Result()
		if err != nil {
			return c.Next() // fail open on cache errors
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), redisKey, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			return tooManyAttempts()
		}
		return c.Next()
	}
}

func tooManyAttempts() error {
	return fiber.NewError(http.StatusTooManyRequests, "too many login attempts, try again later")
}

type localLimiter struct {
	mu       sync.Mutex
	perMin   int
	limiters map[string]*rate.Limiter
}

func newLocalLimiter(perMin int) *localLimiter {
	return &localLimiter{perMin: perMin, limiters: make(map[string]*rate.Limiter)}
}

func (l *localLimiter) allow(key string) bool {
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(l.perMin)), l.perMin)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
