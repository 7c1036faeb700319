package usecase

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"propdesk/internal/domain"
)

// AccountService provisions challenge accounts and applies externally
// driven status transitions. Payment confirmation is the only caller of
// Activate; the core never talks to a payment gateway.
type AccountService struct {
	accounts  domain.AccountRepository
	positions domain.PositionRepository
	trades    domain.TradeRepository
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts domain.AccountRepository, positions domain.PositionRepository, trades domain.TradeRepository) *AccountService {
	return &AccountService{
		accounts:  accounts,
		positions: positions,
		trades:    trades,
	}
}

// Create provisions a pending account from a challenge-rule snapshot. The
// account starts trading only after payment confirmation activates it.
func (s *AccountService) Create(ctx context.Context, ownerID uuid.UUID, rules domain.ChallengeRules) (*domain.Account, error) {
	if rules.AccountSize.Sign() <= 0 {
		return nil, fmt.Errorf("account size must be positive, got %s: %w", rules.AccountSize, domain.ErrInvalidInput)
	}
	if rules.DailyLossLimitPct.Sign() <= 0 || rules.MaxDrawdownPct.Sign() <= 0 {
		return nil, fmt.Errorf("risk limits must be positive: %w", domain.ErrInvalidInput)
	}

	account := &domain.Account{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		Rules:          rules,
		Balance:        rules.AccountSize,
		InitialBalance: rules.AccountSize,
		Status:         domain.AccountPending,
		CurrentPhase:   1,
		CreatedAt:      time.Now(),
	}

	if err := s.accounts.Save(ctx, account); err != nil {
		return nil, err
	}

	log.Printf("[OK] Account created: id=%s owner=%s size=%s status=%s",
		account.ID, ownerID, rules.AccountSize, account.Status)

	return account, nil
}

// Activate moves a pending account to active after payment confirmation.
func (s *AccountService) Activate(ctx context.Context, accountID uuid.UUID) error {
	if err := s.accounts.TransitionStatus(ctx, accountID, domain.AccountPending, domain.AccountActive, nil); err != nil {
		return err
	}
	log.Printf("[OK] Account activated: %s", accountID)
	return nil
}

// MarkPassed moves an active account to passed. Reaching the profit target
// is decided by an external reviewer, not by the evaluation tick.
func (s *AccountService) MarkPassed(ctx context.Context, accountID uuid.UUID) error {
	now := time.Now()
	if err := s.accounts.TransitionStatus(ctx, accountID, domain.AccountActive, domain.AccountPassed, &now); err != nil {
		return err
	}
	log.Printf("[OK] Account passed: %s", accountID)
	return nil
}

// Get returns the account aggregate.
func (s *AccountService) Get(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

// GetPositions returns all positions of the account, newest first.
func (s *AccountService) GetPositions(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	return s.positions.GetByAccount(ctx, accountID)
}

// GetTrades returns the most recent trade ledger entries of the account.
func (s *AccountService) GetTrades(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.TradeLedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.trades.GetByAccount(ctx, accountID, limit)
}
