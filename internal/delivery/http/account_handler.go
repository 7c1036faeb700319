package http

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"propdesk/internal/delivery/http/dto"
	"propdesk/internal/domain"
	"propdesk/internal/middleware"
	"propdesk/internal/usecase"
)

// AccountHandler exposes account provisioning and the activation webhook
type AccountHandler struct {
	accountService *usecase.AccountService
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(accountService *usecase.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// CreateAccount provisions a pending challenge account for the caller
// POST /api/accounts
func (h *AccountHandler) CreateAccount(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	var req dto.CreateAccountRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	account, err := h.accountService.Create(ctx, userID, domain.ChallengeRules{
		AccountSize:       req.AccountSize,
		ProfitTargetPct:   req.ProfitTargetPct,
		DailyLossLimitPct: req.DailyLossLimitPct,
		MaxDrawdownPct:    req.MaxDrawdownPct,
		ProfitSplitPct:    req.ProfitSplitPct,
		PhaseCount:        req.PhaseCount,
		MinTradingDays:    req.MinTradingDays,
		LeverageCap:       req.LeverageCap,
	})
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	return CreatedResponse(c, account)
}

// GetAccount returns the account aggregate
// GET /api/accounts/:id
func (h *AccountHandler) GetAccount(c echo.Context) error {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return UnauthorizedResponse(c, "User not authenticated")
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return BadRequestResponse(c, "Invalid account id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	account, err := h.accountService.Get(ctx, accountID)
	if err != nil || account.OwnerID != userID {
		return NotFoundResponse(c, "Account not found")
	}

	return SuccessResponse(c, account)
}

// PaymentConfirmed is the webhook called by the payment collaborator once
// a challenge purchase settles; it activates the pending account.
// POST /api/payments/confirmed
func (h *AccountHandler) PaymentConfirmed(c echo.Context) error {
	var req dto.PaymentConfirmedRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return BadRequestResponse(c, "Invalid account id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.accountService.Activate(ctx, accountID); err != nil {
		return DomainErrorResponse(c, err)
	}

	return SuccessResponse(c, map[string]interface{}{
		"account_id": accountID,
		"status":     domain.AccountActive,
	})
}
