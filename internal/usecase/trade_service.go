package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
	"propdesk/internal/lock"
)

// marginHeadroom caps the margin a single trade may reserve at 95% of the
// current balance.
var marginHeadroom = decimal.NewFromFloat(0.95)

// OpenTradeInput carries the parameters of an open request.
type OpenTradeInput struct {
	AccountID  uuid.UUID
	Symbol     string
	Side       string
	Quantity   decimal.Decimal
	Leverage   decimal.Decimal
	StopLoss   *decimal.Decimal
	TakeProfit *decimal.Decimal
}

// CloseTradeResult reports a settled manual close.
type CloseTradeResult struct {
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	NewBalance  decimal.Decimal `json:"new_balance"`
}

// TradeService validates and opens/closes individual positions, keeping the
// position and account ledgers consistent. Every mutation runs inside the
// account's critical section and commits atomically.
type TradeService struct {
	accounts    domain.AccountRepository
	positions   domain.PositionRepository
	trades      domain.TradeRepository
	prices      domain.PriceService
	tx          domain.TxManager
	locks       *lock.Keyed
	lockTimeout time.Duration
}

// NewTradeService creates a new TradeService
func NewTradeService(
	accounts domain.AccountRepository,
	positions domain.PositionRepository,
	trades domain.TradeRepository,
	prices domain.PriceService,
	tx domain.TxManager,
	locks *lock.Keyed,
	lockTimeout time.Duration,
) *TradeService {
	return &TradeService{
		accounts:    accounts,
		positions:   positions,
		trades:      trades,
		prices:      prices,
		tx:          tx,
		locks:       locks,
		lockTimeout: lockTimeout,
	}
}

// acquireAccount enters the per-account critical section, bounded by the
// configured timeout. The returned release runs on every exit path.
func acquireAccount(ctx context.Context, locks *lock.Keyed, timeout time.Duration, accountID uuid.UUID) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	release, err := locks.Acquire(lockCtx, "account:"+accountID.String())
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", accountID, domain.ErrLockTimeout)
	}
	return release, nil
}

// OpenTrade opens a leveraged position at the current market price. The
// position, its ledger entry, and the trade counter commit together or not
// at all; a failed price lookup writes nothing.
func (s *TradeService) OpenTrade(ctx context.Context, in OpenTradeInput) (*domain.Position, error) {
	if err := validateOpenInput(in); err != nil {
		return nil, err
	}

	release, err := acquireAccount(ctx, s.locks, s.lockTimeout, in.AccountID)
	if err != nil {
		return nil, err
	}
	defer release()

	account, err := s.accounts.GetByID(ctx, in.AccountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account %s has status %s: %w", account.ID, account.Status, domain.ErrAccountNotActive)
	}
	if account.Rules.LeverageCap.Sign() > 0 && in.Leverage.GreaterThan(account.Rules.LeverageCap) {
		return nil, fmt.Errorf("leverage %s exceeds cap %s: %w", in.Leverage, account.Rules.LeverageCap, domain.ErrInvalidInput)
	}

	quote, err := s.prices.GetQuote(ctx, in.Symbol)
	if err != nil {
		return nil, fmt.Errorf("open trade on account %s: %w", in.AccountID, err)
	}

	marginRequired := domain.MarginRequired(quote.Price, in.Quantity, in.Leverage)
	if marginRequired.GreaterThan(account.Balance.Mul(marginHeadroom)) {
		return nil, fmt.Errorf("margin %s exceeds 95%% of balance %s: %w",
			marginRequired, account.Balance, domain.ErrInsufficientMargin)
	}

	now := time.Now()
	position := &domain.Position{
		ID:            uuid.New(),
		AccountID:     account.ID,
		Symbol:        in.Symbol,
		Side:          in.Side,
		EntryPrice:    quote.Price,
		Quantity:      in.Quantity,
		Leverage:      in.Leverage,
		StopLoss:      in.StopLoss,
		TakeProfit:    in.TakeProfit,
		CurrentPrice:  quote.Price,
		UnrealizedPnL: decimal.Zero,
		Status:        domain.PositionOpen,
		OpenedAt:      now,
	}

	entry := &domain.TradeLedgerEntry{
		ID:         uuid.New(),
		AccountID:  account.ID,
		PositionID: position.ID,
		Symbol:     in.Symbol,
		Side:       in.Side,
		EntryPrice: quote.Price,
		Quantity:   in.Quantity,
		ProfitLoss: decimal.Zero,
		Status:     domain.TradeOpen,
		OpenedAt:   now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.positions.Save(ctx, position); err != nil {
			return err
		}
		if err := s.trades.Append(ctx, entry); err != nil {
			return err
		}
		return s.accounts.IncrementTradeCount(ctx, account.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[OK] Trade OPENED: account=%s %s %s qty=%s lev=%sx entry=%s margin=%s",
		account.ID, in.Symbol, in.Side, in.Quantity, in.Leverage, quote.Price, marginRequired)

	return position, nil
}

// CloseTrade settles an open position at the current market price. A price
// lookup failure leaves the position open and the call safely retryable; a
// retry after an already-committed close observes ErrPositionNotOpen.
func (s *TradeService) CloseTrade(ctx context.Context, accountID, positionID uuid.UUID) (*CloseTradeResult, error) {
	release, err := acquireAccount(ctx, s.locks, s.lockTimeout, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	position, err := s.positions.GetByID(ctx, positionID)
	if err != nil {
		return nil, err
	}
	if position.AccountID != accountID {
		return nil, fmt.Errorf("position %s does not belong to account %s: %w",
			positionID, accountID, domain.ErrPositionNotFound)
	}
	if position.Status != domain.PositionOpen {
		return nil, fmt.Errorf("position %s has status %s: %w", positionID, position.Status, domain.ErrPositionNotOpen)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.IsTerminal() {
		return nil, fmt.Errorf("account %s has status %s: %w", accountID, account.Status, domain.ErrAccountClosed)
	}

	quote, err := s.prices.GetQuote(ctx, position.Symbol)
	if err != nil {
		return nil, fmt.Errorf("close trade %s on account %s: %w", positionID, accountID, err)
	}

	realizedPnL, err := domain.RealizedPnL(position.Side, position.EntryPrice, quote.Price, position.Quantity, position.Leverage)
	if err != nil {
		return nil, err
	}

	outcome := domain.OutcomeLoss
	if realizedPnL.Sign() > 0 {
		outcome = domain.OutcomeWin
	}

	now := time.Now()
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.positions.Close(ctx, positionID, quote.Price, realizedPnL, domain.PositionClosed, domain.ReasonManual, now); err != nil {
			return err
		}
		if err := s.trades.Finalize(ctx, positionID, quote.Price, realizedPnL, now); err != nil {
			return err
		}
		return s.accounts.ApplyRealizedPnL(ctx, accountID, realizedPnL, outcome)
	})
	if err != nil {
		return nil, err
	}

	newBalance := account.Balance.Add(realizedPnL)

	log.Printf("[OK] Trade CLOSED: account=%s %s %s entry=%s exit=%s pnl=%s balance=%s",
		accountID, position.Symbol, position.Side, position.EntryPrice, quote.Price, realizedPnL, newBalance)

	return &CloseTradeResult{
		RealizedPnL: realizedPnL,
		NewBalance:  newBalance,
	}, nil
}

func validateOpenInput(in OpenTradeInput) error {
	if strings.TrimSpace(in.Symbol) == "" {
		return fmt.Errorf("symbol is required: %w", domain.ErrInvalidInput)
	}
	if in.Side != domain.SideLong && in.Side != domain.SideShort {
		return fmt.Errorf("side must be %q or %q, got %q: %w", domain.SideLong, domain.SideShort, in.Side, domain.ErrInvalidInput)
	}
	if in.Quantity.Sign() <= 0 {
		return fmt.Errorf("quantity must be positive, got %s: %w", in.Quantity, domain.ErrInvalidInput)
	}
	if in.Leverage.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("leverage must be at least 1, got %s: %w", in.Leverage, domain.ErrInvalidInput)
	}
	return nil
}
