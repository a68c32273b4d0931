package utils

import (
	"errors"

	"orusfx/internal/models"

	"github.com/gofiber/fiber/v2"
)

// ClaimsKey is the fiber.Ctx locals key holding *models.Claims.
const ClaimsKey = "claims"

// GetClaims extracts the principal claims from the Fiber context.
func GetClaims(c *fiber.Ctx) (*models.Claims, error) {
	v := c.Locals(ClaimsKey)
	if v == nil {
		return nil, errors.New("claims not found in context")
	}

	claims, ok := v.(*models.Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
