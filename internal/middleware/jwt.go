package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/auth"
)

// AccountIDKey is the fiber.Locals key holding the authenticated caller.
const AccountIDKey = "account_id"

// JWTAuth validates bearer access tokens and stores the caller's account id.
func JWTAuth(svc *auth.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authz := c.Get(fiber.HeaderAuthorization)
		if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		token := strings.TrimSpace(authz[len("Bearer "):])

		accountID, err := svc.Authorize(c.UserContext(), token)
		switch {
		case errors.Is(err, auth.ErrTokenRevoked):
			return fiber.NewError(http.StatusUnauthorized, "token invalidated")
		case errors.Is(err, auth.ErrInvalidToken):
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		case err != nil:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}

		c.Locals(AccountIDKey, accountID)
		return c.Next()
	}
}
