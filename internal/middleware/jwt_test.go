package middleware

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody/internal/auth"
	"github.com/congo-pay/custody/internal/config"
	"github.com/congo-pay/custody/internal/identity"
)

func TestJWTAuthSetsAccount(t *testing.T) {
	ctx := context.Background()
	repo := identity.NewMemoryRepository()
	user, err := identity.NewService(repo).Register(ctx, identity.Credentials{Account: "acct:owner", PIN: "1234"})
	require.NoError(t, err)

	svc := auth.NewService(config.Config{
		AppName:         "custody-test",
		JWTSecret:       "access",
		RefreshSecret:   "refresh",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	}, repo)
	pair, err := svc.Login(user)
	require.NoError(t, err)

	app := fiber.New()
	app.Get("/whoami", JWTAuth(svc), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals(AccountIDKey).(string))
	})

	call := func(authz string) (int, string) {
		req := httptest.NewRequest(fiber.MethodGet, "/whoami", nil)
		if authz != "" {
			req.Header.Set(fiber.HeaderAuthorization, authz)
		}
		resp, err := app.Test(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(body)
	}

	status, body := call("Bearer " + pair.AccessToken)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "acct:owner", body)

	status, _ = call("")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	status, _ = call("Bearer garbage")
	assert.Equal(t, fiber.StatusUnauthorized, status)

	require.NoError(t, svc.Logout(ctx, user.ID))
	status, body = call("Bearer " + pair.AccessToken)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body, "token invalidated")
}
