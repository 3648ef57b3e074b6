package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loginStatus(t *testing.T, app *fiber.App, account string) int {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, "/login", strings.NewReader(`{"account":"`+account+`"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginRateLimitInProcess(t *testing.T) {
	app := fiber.New()
	app.Post("/login", LoginRateLimit(nil, 2), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	assert.Equal(t, fiber.StatusOK, loginStatus(t, app, "acct:a"))
	assert.Equal(t, fiber.StatusOK, loginStatus(t, app, "acct:a"))
	assert.Equal(t, fiber.StatusTooManyRequests, loginStatus(t, app, "acct:a"))
	assert.Equal(t, fiber.StatusOK, loginStatus(t, app, "acct:b"))
}

func TestLoginRateLimitRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	app := fiber.New()
	app.Post("/login", LoginRateLimit(cache, 1), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	assert.Equal(t, fiber.StatusOK, loginStatus(t, app, "acct:a"))
	assert.Equal(t, fiber.StatusTooManyRequests, loginStatus(t, app, "acct:a"))
	assert.True(t, mr.Exists(loginRateKeyPrefix+"acct:a"))
	assert.Greater(t, mr.TTL(loginRateKeyPrefix+"acct:a"), time.Duration(0))
}
