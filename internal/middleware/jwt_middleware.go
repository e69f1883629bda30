package middleware

import (
	"context"
	"errors"
	"strings"

	"dealhub/internal/models"
	"dealhub/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// ClaimsKey is the fiber.Ctx Locals key holding the verified *models.Claims.
const ClaimsKey = "claims"

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*models.Claims, error)
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(auth TokenValidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header is required",
			})
		}

		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if !(len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Authorization header format must be 'Bearer <token>'",
			})
		}

		claims, err := auth.ValidateToken(c.UserContext(), parts[1])
		if err != nil {
			if !errors.Is(err, services.ErrUnauthorized) {
				logrus.WithError(err).Error("Token validation failed")
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"message": "Could not validate token",
				})
			}
			logrus.WithError(err).Debug("JWT validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "Invalid or expired token",
				"error":   err.Error(),
			})
		}

		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// Claims returns the verified claims stored by AuthRequired, or nil.
func Claims(c *fiber.Ctx) *models.Claims {
	claims, _ := c.Locals(ClaimsKey).(*models.Claims)
	return claims
}
