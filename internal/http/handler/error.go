package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"xmlrelay/internal/http/middleware"
)

// errorResponse is the body of every non-2xx answer from both services.
type errorResponse struct {
	RequestID string      `json:"request_id"`
	Error     errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func requestIDFromCtx(c *fiber.Ctx) string {
	id, _ := c.Locals(middleware.RequestIDLocalKey).(string)
	return id
}

// writeError answers with a code and a client-facing message. Callers only pass
// error text that describes the request itself, never internal state.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorResponse{
		RequestID: requestIDFromCtx(c),
		Error:     errorDetail{Code: code, Message: message},
	})
}

// InvalidAPIKey rejects requests that fail middleware.APIKey.
func InvalidAPIKey(c *fiber.Ctx) error {
	return writeError(c, fiber.StatusUnauthorized, "INVALID_API_KEY", "Invalid API Key")
}

var fallbackErrors = map[int]errorDetail{
	fiber.StatusBadRequest:            {"BAD_REQUEST", "bad request"},
	fiber.StatusNotFound:              {"NOT_FOUND", "resource not found"},
	fiber.StatusMethodNotAllowed:      {"METHOD_NOT_ALLOWED", "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {"PAYLOAD_TOO_LARGE", "request body too large"},
}

// ErrorHandler renders errors that escape the handlers (routing misses, body
// limits, panics turned into errors) in the common error envelope.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		d, ok := fallbackErrors[status]
		if !ok {
			d = errorDetail{"INTERNAL_ERROR", "internal server error"}
		}
		return writeError(c, status, d.Code, d.Message)
	}
}
