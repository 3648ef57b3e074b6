package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/custody"
)

// RegisterCustodyReadRoutes wires the unauthenticated ledger queries.
func RegisterCustodyReadRoutes(r fiber.Router, h *custody.Handler) {
	r.Get("/owner", h.Owner)
	r.Get("/value", h.Value)
	r.Get("/balances/:account", h.Balance)
	r.Get("/events", h.Events)
}

// RegisterCustodyWriteRoutes wires the mutations; r must authenticate the caller.
func RegisterCustodyWriteRoutes(r fiber.Router, h *custody.Handler) {
	r.Put("/value", h.SetValue)
	r.Post("/deposits", h.Deposit)
	r.Post("/withdrawals", h.Withdraw)
}
