package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"xmlrelay/internal/logging"
)

const (
	RequestIDHeader   = "X-Request-ID"
	RequestIDLocalKey = "request_id"

	maxRequestIDLen = 128
)

// RequestID tags every request with an id: the caller's X-Request-ID when it
// is usable, a fresh UUID otherwise. The id is echoed on the response, kept in
// locals for handlers and attached to the user context for the services.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if id == "" || len(id) > maxRequestIDLen {
			id = uuid.NewString()
		}

		c.Locals(RequestIDLocalKey, id)
		c.SetUserContext(logging.WithRequestID(c.UserContext(), id))
		c.Set(RequestIDHeader, id)

		return c.Next()
	}
}
