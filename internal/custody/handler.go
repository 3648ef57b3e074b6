package custody

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/metrics"
	"github.com/congo-pay/custody/internal/notification"
)

const maxEventsLimit = 500

// Handler exposes custody HTTP endpoints.
type Handler struct {
	service *Service
	journal notification.Journal
}

// NewHandler constructs a custody handler. journal may be nil, in which case
// the events endpoint returns an empty list.
func NewHandler(service *Service, journal notification.Journal) *Handler {
	return &Handler{service: service, journal: journal}
}

type setValueRequest struct {
	Value int64 `json:"value"`
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type receiptResponse struct {
	TransactionID   string `json:"transaction_id"`
	Account         string `json:"account"`
	Amount          int64  `json:"amount"`
	Balance         int64  `json:"balance"`
	PayoutReference string `json:"payout_reference,omitempty"`
	CompletedAt     string `json:"completed_at"`
}

// Owner returns the ledger owner.
func (h *Handler) Owner(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"owner": h.service.Owner()})
}

// Value returns the configuration value.
func (h *Handler) Value(c *fiber.Ctx) error {
	value, err := h.service.Value(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"value": value})
}

// SetValue replaces the configuration value for the authenticated owner.
func (h *Handler) SetValue(c *fiber.Ctx) error {
	var req setValueRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	err := h.service.SetValue(c.UserContext(), caller(c), req.Value)
	metrics.RecordOperation("set_value", outcome(err), 0)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"value": req.Value})
}

// Balance returns the custody balance of the account in the path.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account := c.Params("account")
	balance, err := h.service.Balance(c.UserContext(), account)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account": account,
		"balance": balance,
	})
}

// Deposit credits the attached amount to the authenticated caller.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.Deposit(c.UserContext(), caller(c), req.Amount)
	metrics.RecordOperation("deposit", outcome(err), req.Amount)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toReceiptResponse(receipt))
}

// Withdraw pays out amount from the owner's balance.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	receipt, err := h.service.Withdraw(c.UserContext(), caller(c), req.Amount)
	metrics.RecordOperation("withdraw", outcome(err), req.Amount)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toReceiptResponse(receipt))
}

// Events lists the most recent notifications, oldest first.
func (h *Handler) Events(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > maxEventsLimit {
		return fiber.NewError(http.StatusBadRequest, "limit must be between 1 and 500")
	}
	events := []notification.Event{}
	if h.journal != nil {
		recent, err := h.journal.Recent(c.UserContext(), limit)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		events = append(events, recent...)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"events": events})
}

func caller(c *fiber.Ctx) string {
	id, _ := c.Locals("account_id").(string)
	return id
}

func toReceiptResponse(r Receipt) receiptResponse {
	return receiptResponse{
		TransactionID:   r.TransactionID,
		Account:         r.Account,
		Amount:          r.Amount,
		Balance:         r.Balance,
		PayoutReference: r.PayoutReference,
		CompletedAt:     r.CompletedAt.Format(time.RFC3339Nano),
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, ErrUnauthorized.Error())
	case errors.Is(err, ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, ErrInvalidAmount.Error())
	case errors.Is(err, ErrInvalidAccount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, ErrInsufficientFunds.Error())
	case errors.Is(err, ErrTransferFailed):
		return fiber.NewError(http.StatusBadGateway, ErrTransferFailed.Error())
	case errors.Is(err, ErrReentrantCall):
		return fiber.NewError(http.StatusConflict, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrInvalidAccount):
		return "invalid_account"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrTransferFailed):
		return "transfer_failed"
	default:
		return "error"
	}
}
