package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/marketplace-listing/pkg/logger"
)

// StructuredLoggingMiddleware emits one structured completion record per
// proxied request, attributed to the marketplace service it was routed to.
// Trace and span ids come from the request context via the logger package.
func StructuredLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		backend := backendForPath(c.Path())

		logger.Debug(c.UserContext()).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("backend", backend).
			Str("ip", c.IP()).
			Msg("Routing request")

		err := c.Next()

		duration := time.Since(start)
		statusCode := c.Response().StatusCode()

		event := logger.Info(c.UserContext())
		if statusCode >= 500 {
			event = logger.Error(c.UserContext())
		} else if statusCode >= 400 {
			event = logger.Warn(c.UserContext())
		}

		event = event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("backend", backend).
			Int("status", statusCode).
			Dur("duration", duration).
			Int("response_size", len(c.Response().Body())).
			Str("request_id", c.Get("X-Request-Id"))
		if userID, ok := c.Locals("user_id").(string); ok && userID != "" {
			event = event.Str("user_id", userID)
		}
		event.Msg("Request completed")

		if err != nil {
			logger.Error(c.UserContext()).
				Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("backend", backend).
				Msg("Request failed")
		}

		return err
	}
}
