package middleware

import "github.com/gofiber/fiber/v2"

type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// Metrics counts responses by status code. Errors returned by later handlers
// are resolved through the app's error handler first.
func Metrics(rec StatusRecorder) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				c.Status(fiber.StatusInternalServerError)
			}
		}
		rec.RecordHTTPStatus(c.Response().StatusCode())
		return nil
	}
}
