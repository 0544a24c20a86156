package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/civicpay/civicpay/internal/pkg/usercontext"
)

const keyTokenError = "token_error"

// RequireAuth rejects requests without a valid access token with a JSON 401
func RequireAuth(c *fiber.Ctx) error {
	if usercontext.IsLoggedIn(c) {
		return c.Next()
	}
	if rejected, _ := c.Locals(keyTokenError).(bool); rejected {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"message": "Invalid or expired token",
			"code":    "TOKEN_EXPIRED",
		})
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": "Access token required",
	})
}

// RequireRole allows only callers holding one of roles
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userCtx := usercontext.GetUserContext(c)
		if !userCtx.IsLoggedIn {
			return RequireAuth(c)
		}
		if !userCtx.HasRole(roles...) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"success": false,
				"message": "Access denied. Insufficient permissions.",
			})
		}
		return c.Next()
	}
}
