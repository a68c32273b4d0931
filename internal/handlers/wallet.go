package handlers

import (
	"context"
	"time"

	"orusfx/internal/models"
	"orusfx/internal/repositories"
	"orusfx/internal/services/exchange"
	"orusfx/internal/services/wallet"
	"orusfx/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IdempotencyHeader may carry the idempotency key instead of the body.
const IdempotencyHeader = "Idempotency-Key"

type WalletHandler struct {
	wallets  wallet.Service
	exchange exchange.Service
	logger   *zap.Logger
}

func NewWalletHandler(wallets wallet.Service, exchangeService exchange.Service, logger *zap.Logger) *WalletHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WalletHandler{
		wallets:  wallets,
		exchange: exchangeService,
		logger:   logger.Named("http.wallet"),
	}
}

type amountInput struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

type exchangeInput struct {
	From           string          `json:"from"`
	To             string          `json:"to"`
	Amount         decimal.Decimal `json:"amount"`
	IdempotencyKey string          `json:"idempotency_key"`
}

// CreateWallet handles POST /api/wallets. It is idempotent per principal.
func (h *WalletHandler) CreateWallet(c *fiber.Ctx) error {
	claims, err := utils.GetClaims(c)
	if err != nil {
		return utils.Unauthorized(c, err.Error())
	}

	w, err := h.wallets.CreateWallet(c.UserContext(), claims.PrincipalID)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Created(c, w)
}

// GetBalances handles GET /api/wallets/:id/balances.
func (h *WalletHandler) GetBalances(c *fiber.Ctx) error {
	id, ok := walletID(c)
	if !ok {
		return utils.BadRequest(c, "invalid wallet id")
	}
	summary, err := h.wallets.GetBalances(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, summary)
}

// GetLedger handles GET /api/wallets/:id/ledger. Supported filters:
// currency, type, reference_type, reference_id, from and to (RFC 3339).
func (h *WalletHandler) GetLedger(c *fiber.Ctx) error {
	id, ok := walletID(c)
	if !ok {
		return utils.BadRequest(c, "invalid wallet id")
	}

	filter := repositories.EntryFilter{
		Currency:      c.Query("currency"),
		Type:          models.EntryType(c.Query("type")),
		ReferenceType: c.Query("reference_type"),
		ReferenceID:   c.Query("reference_id"),
	}
	for param, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return utils.BadRequest(c, "invalid "+param+" timestamp")
		}
		*dst = &t
	}

	pagination := utils.GetPagination(c, wallet.DefaultHistoryPageSize, wallet.DefaultMaxHistoryPageSize)
	page, err := h.wallets.GetLedgerHistory(c.UserContext(), id, wallet.HistoryQuery{
		Filter: filter,
		Limit:  pagination.Limit,
		Offset: pagination.Offset,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	pagination.SetTotal(page.Total)
	return utils.Success(c, utils.NewPaginatedResponse(page.Entries, pagination))
}

// VerifyLedger handles GET /api/wallets/:id/ledger/verify?currency=.
func (h *WalletHandler) VerifyLedger(c *fiber.Ctx) error {
	id, ok := walletID(c)
	if !ok {
		return utils.BadRequest(c, "invalid wallet id")
	}
	res, err := h.wallets.VerifyLedger(c.UserContext(), id, c.Query("currency"))
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, res)
}

// Lock handles POST /api/service/wallets/:id/lock.
func (h *WalletHandler) Lock(c *fiber.Ctx) error {
	return h.reserve(c, h.wallets.Lock)
}

// Unlock handles POST /api/service/wallets/:id/unlock.
func (h *WalletHandler) Unlock(c *fiber.Ctx) error {
	return h.reserve(c, h.wallets.Unlock)
}

func (h *WalletHandler) reserve(c *fiber.Ctx, apply func(ctx context.Context, req wallet.OperationRequest) (*models.CurrencyBalance, error)) error {
	id, ok := walletID(c)
	if !ok {
		return utils.BadRequest(c, "invalid wallet id")
	}
	var input amountInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	balance, err := apply(c.UserContext(), wallet.OperationRequest{
		WalletID: id,
		Currency: input.Currency,
		Amount:   input.Amount,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, balance)
}

// Quote handles POST /api/wallets/:id/quote. Nothing is mutated.
func (h *WalletHandler) Quote(c *fiber.Ctx) error {
	id, ok := walletID(c)
	if !ok {
		return utils.BadRequest(c, "invalid wallet id")
	}
	var input exchangeInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}

	q, err := h.exchange.Quote(c.UserContext(), id, input.From, input.To, input.Amount)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, q)
}

// Exchange handles POST /api/wallets/:id/exchange.
func (h *WalletHandler) Exchange(c *fiber.Ctx) error {
	claims, err := utils.GetClaims(c)
	if err != nil {
		return utils.Unauthorized(c, err.Error())
	}
	id, ok := walletID(c)
	if !ok {
		return utils.BadRequest(c, "invalid wallet id")
	}
	var input exchangeInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "invalid request format")
	}
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = c.Get(IdempotencyHeader)
	}

	res, err := h.exchange.Exchange(c.UserContext(), exchange.Request{
		WalletID:       id,
		RequestorID:    claims.PrincipalID,
		FromCurrency:   input.From,
		ToCurrency:     input.To,
		Amount:         input.Amount,
		IdempotencyKey: input.IdempotencyKey,
	})
	if err != nil {
		return respondError(c, h.logger, err)
	}
	return utils.Success(c, res)
}

func walletID(c *fiber.Ctx) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Params("id"))
	return id, err == nil
}
