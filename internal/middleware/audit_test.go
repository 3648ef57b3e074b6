package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/custody/internal/metrics"
)

func TestAuditLogsAccountAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := fiber.New()
	app.Use(RequestID(), Audit(logger))
	app.Post("/deposits", func(c *fiber.Ctx) error {
		c.Locals(AccountIDKey, "acct:a")
		return c.SendStatus(fiber.StatusCreated)
	})

	req := httptest.NewRequest(fiber.MethodPost, "/deposits", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "request completed", line["msg"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "acct:a", line["account_id"])
	assert.EqualValues(t, fiber.StatusCreated, line["status"])
}

func TestMetricsRecordsRouteTemplate(t *testing.T) {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/balances/:account", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/boom", func(c *fiber.Ctx) error { return fiber.NewError(fiber.StatusBadGateway, "down") })

	for _, path := range []string{"/balances/acct:a", "/balances/acct:b", "/boom"} {
		resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, path, nil))
		require.NoError(t, err)
		resp.Body.Close()
	}

	expected := `
# HELP custody_http_requests_total Total number of HTTP requests handled.
# TYPE custody_http_requests_total counter
custody_http_requests_total{method="GET",route="/balances/:account",status="200"} 2
custody_http_requests_total{method="GET",route="/boom",status="502"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry, bytes.NewBufferString(expected), "custody_http_requests_total"))
}
