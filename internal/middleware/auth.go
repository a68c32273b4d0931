// Package middleware provides HTTP middleware for the fiber server.
package middleware

import (
	"errors"
	"strings"

	apperrors "orusfx/internal/errors"
	"orusfx/internal/services/wallet"
	"orusfx/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Auth validates the HS256 bearer token and stores its claims in the
// request locals under utils.ClaimsKey.
func Auth(secret string, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("auth")

	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return utils.Unauthorized(c, "missing authorization header")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return utils.Unauthorized(c, "invalid authorization format")
		}

		claims, err := utils.ParseToken(secret, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			logger.Debug("token rejected", zap.String("path", c.Path()), zap.Error(err))
			return utils.Unauthorized(c, "invalid token")
		}

		c.Locals(utils.ClaimsKey, claims)
		return c.Next()
	}
}

// RequireRole allows the request only when the token carries role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetClaims(c)
		if err != nil {
			return utils.Unauthorized(c, err.Error())
		}
		if !claims.HasRole(role) {
			return utils.Forbidden(c, "insufficient permissions")
		}
		return c.Next()
	}
}

// WalletOwner allows the request only when the wallet named by the :id route
// parameter belongs to the authenticated principal.
func WalletOwner(wallets wallet.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, err := utils.GetClaims(c)
		if err != nil {
			return utils.Unauthorized(c, err.Error())
		}
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return utils.BadRequest(c, "invalid wallet id")
		}

		w, err := wallets.GetWallet(c.UserContext(), id)
		if errors.Is(err, apperrors.ErrWalletNotFound) {
			return utils.Error(c, fiber.StatusNotFound, apperrors.ErrWalletNotFound.Code, err.Error())
		}
		if err != nil {
			return utils.InternalError(c, "failed to load wallet")
		}
		if w.OwnerID != claims.PrincipalID {
			return utils.Forbidden(c, apperrors.ErrUnauthorized.Message)
		}
		return c.Next()
	}
}
