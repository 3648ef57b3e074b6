package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/custody/internal/metrics"
)

// Metrics records request counts and latencies by route template.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		done := metrics.TrackInFlight()
		defer done()

		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			}
		}
		route := ""
		if r := c.Route(); r != nil {
			route = r.Path
		}
		metrics.ObserveHTTP(c.Method(), route, status, time.Since(start))
		return err
	}
}
