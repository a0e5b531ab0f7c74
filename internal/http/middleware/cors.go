package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS applies the permissive cross-origin policy the marketing site
// relies on: any origin, credentials, and the full method set. OPTIONS
// preflights are answered immediately with a bare 200.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Access-Control-Allow-Credentials", "true")
		c.Set("Access-Control-Allow-Origin", "*")
		c.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusOK)
		}

		return c.Next()
	}
}
