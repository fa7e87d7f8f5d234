package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/Julfy0228/WebMessenger/internal/auth"
)

const localUserID = "user_id"

// JWTAuth resolves the caller from the Authorization header and stores the
// user id in the request locals.
func JWTAuth(validator *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing authorization"})
		}
		userID, err := validator.Validate(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

// WSAuth authenticates the websocket upgrade from a token query parameter
// (browsers cannot set headers on websocket requests).
func WSAuth(validator *auth.Validator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing token"})
		}
		userID, err := validator.Validate(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
		}
		c.Locals(localUserID, userID)
		return c.Next()
	}
}

func callerID(c *fiber.Ctx) uint {
	id, _ := c.Locals(localUserID).(uint)
	return id
}
