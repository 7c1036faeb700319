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

// TradeHandler exposes the engine's inbound trade and evaluation operations
type TradeHandler struct {
	tradeService   *usecase.TradeService
	accountService *usecase.AccountService
	monitor        *usecase.Monitor
}

// NewTradeHandler creates a new TradeHandler
func NewTradeHandler(tradeService *usecase.TradeService, accountService *usecase.AccountService, monitor *usecase.Monitor) *TradeHandler {
	return &TradeHandler{
		tradeService:   tradeService,
		accountService: accountService,
		monitor:        monitor,
	}
}

// ownedAccount resolves the path account id and checks it belongs to the
// authenticated user.
func (h *TradeHandler) ownedAccount(c echo.Context, ctx context.Context) (uuid.UUID, error) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(401, "User not authenticated")
	}

	accountID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(400, "Invalid account id")
	}

	account, err := h.accountService.Get(ctx, accountID)
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(404, "Account not found")
	}
	if account.OwnerID != userID {
		return uuid.Nil, echo.NewHTTPError(404, "Account not found")
	}

	return accountID, nil
}

// OpenTrade opens a position on the account
// POST /api/accounts/:id/trades
func (h *TradeHandler) OpenTrade(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	accountID, err := h.ownedAccount(c, ctx)
	if err != nil {
		return err
	}

	var req dto.OpenTradeRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	position, err := h.tradeService.OpenTrade(ctx, usecase.OpenTradeInput{
		AccountID:  accountID,
		Symbol:     req.Symbol,
		Side:       req.Side,
		Quantity:   req.Quantity,
		Leverage:   req.Leverage,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	return CreatedResponse(c, position)
}

// CloseTrade settles an open position at the market price
// POST /api/accounts/:id/positions/:positionId/close
func (h *TradeHandler) CloseTrade(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	accountID, err := h.ownedAccount(c, ctx)
	if err != nil {
		return err
	}

	positionID, err := uuid.Parse(c.Param("positionId"))
	if err != nil {
		return BadRequestResponse(c, "Invalid position id")
	}

	result, err := h.tradeService.CloseTrade(ctx, accountID, positionID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	return SuccessResponse(c, result)
}

// Evaluate runs a risk evaluation cycle for the account on demand.
// Concurrent requests share the evaluation already in flight.
// POST /api/accounts/:id/evaluate
func (h *TradeHandler) Evaluate(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	accountID, err := h.ownedAccount(c, ctx)
	if err != nil {
		return err
	}

	result, err := h.monitor.Trigger(ctx, accountID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}

	return SuccessResponse(c, result)
}

// GetPositions lists the account's positions, newest first
// GET /api/accounts/:id/positions
func (h *TradeHandler) GetPositions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	accountID, err := h.ownedAccount(c, ctx)
	if err != nil {
		return err
	}

	positions, err := h.accountService.GetPositions(ctx, accountID)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	if positions == nil {
		positions = []*domain.Position{}
	}

	return SuccessResponse(c, positions)
}

// GetTrades lists the account's trade ledger entries, newest first
// GET /api/accounts/:id/trades
func (h *TradeHandler) GetTrades(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	accountID, err := h.ownedAccount(c, ctx)
	if err != nil {
		return err
	}

	trades, err := h.accountService.GetTrades(ctx, accountID, 50)
	if err != nil {
		return DomainErrorResponse(c, err)
	}
	if trades == nil {
		trades = []*domain.TradeLedgerEntry{}
	}

	return SuccessResponse(c, trades)
}
