package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
)

// APIKeyHeader carries the shared secret between the ingest and storage services.
const APIKeyHeader = "ApiKey"

// APIKey rejects requests whose ApiKey header does not match secret before the
// body is parsed. An empty secret rejects every request.
func APIKey(secret string, onReject fiber.Handler) fiber.Handler {
	want := []byte(secret)
	return func(c *fiber.Ctx) error {
		got := []byte(c.Get(APIKeyHeader))
		if len(want) == 0 || subtle.ConstantTimeCompare(got, want) != 1 {
			return onReject(c)
		}
		return c.Next()
	}
}
