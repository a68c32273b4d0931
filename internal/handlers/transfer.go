package handlers

import (
	"orusfx/internal/services/transfer"
	"orusfx/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferHandler exposes wallet-to-wallet transfer endpoints.
type TransferHandler struct {
	service transfer.Service
	logger  *zap.Logger
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(s transfer.Service, logger *zap.Logger) *TransferHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransferHandler{service: s, logger: logger.Named("http.transfer")}
}

// Transfer handles POST /api/transfers requests.
func (h *TransferHandler) Transfer(c *fiber.Ctx) error {
	claims, err := utils.GetClaims(c)
	if err != nil {
		return utils.Unauthorized(c, err.Error())
	}

	var req struct {
		FromWalletID   uuid.UUID       `json:"from_wallet_id"`
		ToWalletID     uuid.UUID       `json:"to_wallet_id"`
		Currency       string          `json:"currency"`
		Amount         decimal.Decimal `json:"amount"`
		ConvertTo      string          `json:"convert_to"`
		Description    string          `json:"description"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request")
	}
	if req.FromWalletID == uuid.Nil {
		req.FromWalletID = claims.WalletID
	}
	if req.FromWalletID == uuid.Nil || req.ToWalletID == uuid.Nil {
		return utils.BadRequest(c, "from_wallet_id and to_wallet_id are required")
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.Get(IdempotencyHeader)
	}

	res, err := h.service.Transfer(c.UserContext(), transfer.Request{
		FromWalletID:   req.FromWalletID,
		ToWalletID:     req.ToWalletID,
		Currency:       req.Currency,
		Amount:         req.Amount,
		ConvertTo:      req.ConvertTo,
		RequestorID:    claims.PrincipalID,
		Description:    req.Description,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, res)
}
