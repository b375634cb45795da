package handlers

import (
	"errors"

	"github.com/mutalechilando/DigitalWalletBackend/internal/models"
	"github.com/mutalechilando/DigitalWalletBackend/internal/repositories"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/history"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/identity"
	"github.com/mutalechilando/DigitalWalletBackend/internal/services/ledger"
	"github.com/mutalechilando/DigitalWalletBackend/internal/utils/response"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type WalletHandler struct {
	ledgerService  ledger.Service
	historyService history.Service
}

func NewWalletHandler(ledgerService ledger.Service, historyService history.Service) *WalletHandler {
	return &WalletHandler{
		ledgerService:  ledgerService,
		historyService: historyService,
	}
}

func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

// callerAccount resolves the authenticated user's account.
func (h *WalletHandler) callerAccount(c *fiber.Ctx) (*models.Account, error) {
	claims, err := extractUserClaims(c)
	if err != nil {
		return nil, err
	}
	return h.ledgerService.AccountForUser(c.Context(), claims.UserID)
}

func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	account, err := h.callerAccount(c)
	if err != nil {
		return mapLedgerError(c, err)
	}

	balance, err := h.ledgerService.GetBalance(c.Context(), account.ID)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return response.Success(c, "balance retrieved", fiber.Map{
		"account_id": account.ID,
		"balance":    balance,
	})
}

func (h *WalletHandler) Deposit(c *fiber.Ctx) error {
	account, err := h.callerAccount(c)
	if err != nil {
		return mapLedgerError(c, err)
	}

	var input struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	entry, err := h.ledgerService.Deposit(c.Context(), account.ID, input.Amount)
	if err != nil {
		return mapLedgerError(c, err)
	}

	balance, err := h.ledgerService.GetBalance(c.Context(), account.ID)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return response.Success(c, "deposit successful", fiber.Map{
		"entry":       entry,
		"new_balance": balance,
	})
}

func (h *WalletHandler) Withdraw(c *fiber.Ctx) error {
	account, err := h.callerAccount(c)
	if err != nil {
		return mapLedgerError(c, err)
	}

	var input struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	entry, err := h.ledgerService.Withdraw(c.Context(), account.ID, input.Amount)
	if err != nil {
		return mapLedgerError(c, err)
	}

	balance, err := h.ledgerService.GetBalance(c.Context(), account.ID)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return response.Success(c, "withdrawal successful", fiber.Map{
		"entry":       entry,
		"new_balance": balance,
	})
}

func (h *WalletHandler) Transfer(c *fiber.Ctx) error {
	account, err := h.callerAccount(c)
	if err != nil {
		return mapLedgerError(c, err)
	}

	var input struct {
		Receiver       string          `json:"receiver"`
		Amount         decimal.Decimal `json:"amount"`
		IdempotencyKey string          `json:"idempotency_key"`
	}
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if input.Receiver == "" {
		return response.BadRequest(c, "receiver is required")
	}

	entry, err := h.ledgerService.Transfer(c.Context(), ledger.TransferRequest{
		SenderAccountID:   account.ID,
		ReceiverReference: input.Receiver,
		Amount:            input.Amount,
		IdempotencyKey:    input.IdempotencyKey,
	})
	if err != nil {
		return mapLedgerError(c, err)
	}

	balance, err := h.ledgerService.GetBalance(c.Context(), account.ID)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return response.Success(c, "transfer successful", fiber.Map{
		"entry":          entry,
		"sender_balance": balance,
	})
}

func (h *WalletHandler) GetHistory(c *fiber.Ctx) error {
	account, err := h.callerAccount(c)
	if err != nil {
		return mapLedgerError(c, err)
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	items, err := h.historyService.GetHistory(c.Context(), account.ID, limit, offset)
	if err != nil {
		return mapLedgerError(c, err)
	}
	return response.Success(c, "history retrieved", items)
}

// mapLedgerError translates the engine's error taxonomy to HTTP statuses.
// Business rejections are terminal; transient storage faults invite a retry.
func mapLedgerError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, fiber.ErrUnauthorized):
		return response.Unauthorized(c, "invalid claims")
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrSelfTransfer),
		errors.Is(err, ledger.ErrInsufficientFunds):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, repositories.ErrAccountNotFound),
		errors.Is(err, identity.ErrNotFound):
		return response.NotFound(c, err.Error())
	case errors.Is(err, identity.ErrAmbiguousReference),
		errors.Is(err, ledger.ErrKeyReused):
		return response.Conflict(c, err.Error())
	case errors.Is(err, ledger.ErrTransientStorage):
		return response.Unavailable(c, err.Error())
	default:
		return response.ServerError(c, "operation failed")
	}
}
