package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/identity"
)

// RegisterIdentityRoutes wires credential registration.
func RegisterIdentityRoutes(r fiber.Router, ids *identity.Service, logger *slog.Logger) {
	r.Post("/identity/register", func(c *fiber.Ctx) error {
		var req struct {
			Account  string `json:"account"`
			PIN      string `json:"pin"`
			DeviceID string `json:"device_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		user, err := ids.Register(c.UserContext(), identity.Credentials{Account: req.Account, PIN: req.PIN, DeviceID: req.DeviceID})
		if err != nil {
			if errors.Is(err, identity.ErrUserExists) {
				return fiber.NewError(http.StatusConflict, err.Error())
			}
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		logger.Info("identity.register completed",
			slog.String("account_id", user.ID),
			slog.Int("status", http.StatusCreated),
		)
		return c.Status(http.StatusCreated).JSON(fiber.Map{
			"account_id": user.ID,
			"device_id":  user.DeviceID,
			"created_at": user.CreatedAt,
		})
	})
}
