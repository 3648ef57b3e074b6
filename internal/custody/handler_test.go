package custody

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody/internal/ledger"
	"github.com/congo-pay/custody/internal/notification"
	"github.com/congo-pay/custody/internal/payout"
)

func newTestApp(t *testing.T, rail payout.Rail) *fiber.App {
	t.Helper()
	journal := notification.NewMemoryJournal(0)
	svc, err := NewService(context.Background(), owner, ledger.NewInMemory(), rail, journal, nil)
	require.NoError(t, err)
	h := NewHandler(svc, journal)

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("account_id", c.Get("X-Account"))
		return c.Next()
	})
	app.Get("/owner", h.Owner)
	app.Get("/value", h.Value)
	app.Put("/value", h.SetValue)
	app.Get("/balances/:account", h.Balance)
	app.Post("/deposits", h.Deposit)
	app.Post("/withdrawals", h.Withdraw)
	app.Get("/events", h.Events)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, account, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set("X-Account", account)
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else {
		out["message"] = string(raw)
	}
	return resp.StatusCode, out
}

func TestHandlerSetValueForbiddenForStranger(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := doJSON(t, app, fiber.MethodPut, "/value", other, `{"value":7}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Only owner can call this function", body["message"])

	status, _ = doJSON(t, app, fiber.MethodPut, "/value", owner, `{"value":7}`)
	assert.Equal(t, fiber.StatusOK, status)

	status, body = doJSON(t, app, fiber.MethodGet, "/value", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 7, body["value"])
}

func TestHandlerDepositAndBalance(t *testing.T) {
	app := newTestApp(t, nil)

	status, body := doJSON(t, app, fiber.MethodPost, "/deposits", other, `{"amount":120}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.Equal(t, other, body["account"])
	assert.EqualValues(t, 120, body["balance"])
	assert.NotEmpty(t, body["transaction_id"])

	status, body = doJSON(t, app, fiber.MethodGet, "/balances/"+other, "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 120, body["balance"])

	status, body = doJSON(t, app, fiber.MethodPost, "/deposits", other, `{"amount":0}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Must send Coins", body["message"])

	status, body = doJSON(t, app, fiber.MethodGet, "/events?limit=10", "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.Len(t, body["events"], 1)
}

func TestHandlerWithdrawErrors(t *testing.T) {
	app := newTestApp(t, payout.RejectingRail{Refuse: map[string]bool{owner: true}})

	status, _ := doJSON(t, app, fiber.MethodPost, "/deposits", owner, `{"amount":50}`)
	require.Equal(t, fiber.StatusCreated, status)

	status, body := doJSON(t, app, fiber.MethodPost, "/withdrawals", other, `{"amount":1}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Only owner can call this function", body["message"])

	status, body = doJSON(t, app, fiber.MethodPost, "/withdrawals", owner, `{"amount":51}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Insufficient balance", body["message"])

	status, body = doJSON(t, app, fiber.MethodPost, "/withdrawals", owner, `{"amount":10}`)
	assert.Equal(t, fiber.StatusBadGateway, status)
	assert.Equal(t, "Transfer failed", body["message"])

	status, body = doJSON(t, app, fiber.MethodGet, "/balances/"+owner, "", "")
	require.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 50, body["balance"])
}

func TestHandlerWithdrawReturnsReceipt(t *testing.T) {
	app := newTestApp(t, nil)
	_, _ = doJSON(t, app, fiber.MethodPost, "/deposits", owner, `{"amount":100}`)

	status, body := doJSON(t, app, fiber.MethodPost, "/withdrawals", owner, `{"amount":1}`)
	require.Equal(t, fiber.StatusCreated, status)
	assert.EqualValues(t, 99, body["balance"])
	assert.NotEmpty(t, body["payout_reference"])
}

func TestHandlerRejectsBadInput(t *testing.T) {
	app := newTestApp(t, nil)

	status, _ := doJSON(t, app, fiber.MethodGet, "/balances/bad%20account", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = doJSON(t, app, fiber.MethodGet, "/balances/external:native", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = doJSON(t, app, fiber.MethodPost, "/deposits", "external:native", `{"amount":30}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = doJSON(t, app, fiber.MethodGet, "/events?limit=0", "", "")
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := doJSON(t, app, fiber.MethodGet, "/owner", "", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, owner, body["owner"])
}
