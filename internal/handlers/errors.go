package handlers

import (
	"errors"

	apperrors "orusfx/internal/errors"
	"orusfx/internal/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// statusByCode maps domain error codes to HTTP statuses.
var statusByCode = map[string]int{
	apperrors.ErrInvalidCurrency.Code:     fiber.StatusBadRequest,
	apperrors.ErrSameCurrency.Code:        fiber.StatusBadRequest,
	apperrors.ErrAmountOutOfRange.Code:    fiber.StatusBadRequest,
	apperrors.ErrSameWallet.Code:          fiber.StatusBadRequest,
	apperrors.ErrUnauthorized.Code:        fiber.StatusForbidden,
	apperrors.ErrWalletNotFound.Code:      fiber.StatusNotFound,
	apperrors.ErrDuplicateRequest.Code:    fiber.StatusConflict,
	apperrors.ErrContention.Code:          fiber.StatusConflict,
	apperrors.ErrInsufficientBalance.Code: fiber.StatusUnprocessableEntity,
	apperrors.ErrInsufficientLocked.Code:  fiber.StatusUnprocessableEntity,
	apperrors.ErrWalletInactive.Code:      fiber.StatusUnprocessableEntity,
	apperrors.ErrLedgerMismatch.Code:      fiber.StatusUnprocessableEntity,
	apperrors.ErrRateUnavailable.Code:     fiber.StatusServiceUnavailable,
}

// StatusFor returns the HTTP status for err; unknown errors are 500.
func StatusFor(err error) int {
	if status, ok := statusByCode[apperrors.Code(err)]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// respondError writes err as a JSON error body. Internal errors are logged
// and their message is not exposed.
func respondError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return utils.InternalError(c, "internal error")
	}
	if apperrors.IsRetryable(err) {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return utils.Error(c, StatusFor(err), de.Code, err.Error())
}
