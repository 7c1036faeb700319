package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
)

// AccountRepositoryImpl implements the AccountRepository interface
type AccountRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository
func NewAccountRepository(db *pgxpool.Pool) domain.AccountRepository {
	return &AccountRepositoryImpl{db: db}
}

const accountColumns = `
	id, owner_id, account_size, profit_target_pct, daily_loss_limit_pct,
	max_drawdown_pct, profit_split_pct, phase_count, min_trading_days,
	leverage_cap, balance, initial_balance, profit_loss, status,
	current_phase, total_trades, winning_trades, losing_trades,
	created_at, completed_at`

// Save creates a new account
func (r *AccountRepositoryImpl) Save(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO user_accounts (
			id, owner_id, account_size, profit_target_pct, daily_loss_limit_pct,
			max_drawdown_pct, profit_split_pct, phase_count, min_trading_days,
			leverage_cap, balance, initial_balance, profit_loss, status,
			current_phase, total_trades, winning_trades, losing_trades, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19
		)
	`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		account.ID,
		account.OwnerID,
		account.Rules.AccountSize,
		account.Rules.ProfitTargetPct,
		account.Rules.DailyLossLimitPct,
		account.Rules.MaxDrawdownPct,
		account.Rules.ProfitSplitPct,
		account.Rules.PhaseCount,
		account.Rules.MinTradingDays,
		account.Rules.LeverageCap,
		account.Balance,
		account.InitialBalance,
		account.ProfitLoss,
		account.Status,
		account.CurrentPhase,
		account.TotalTrades,
		account.WinningTrades,
		account.LosingTrades,
		account.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}

	return nil
}

// GetByID retrieves the full account aggregate, rule snapshot included
func (r *AccountRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM user_accounts WHERE id = $1`

	account := &domain.Account{}
	err := conn(ctx, r.db).QueryRow(ctx, query, id).Scan(
		&account.ID,
		&account.OwnerID,
		&account.Rules.AccountSize,
		&account.Rules.ProfitTargetPct,
		&account.Rules.DailyLossLimitPct,
		&account.Rules.MaxDrawdownPct,
		&account.Rules.ProfitSplitPct,
		&account.Rules.PhaseCount,
		&account.Rules.MinTradingDays,
		&account.Rules.LeverageCap,
		&account.Balance,
		&account.InitialBalance,
		&account.ProfitLoss,
		&account.Status,
		&account.CurrentPhase,
		&account.TotalTrades,
		&account.WinningTrades,
		&account.LosingTrades,
		&account.CreatedAt,
		&account.CompletedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("account %s: not found", id)
		}
		return nil, fmt.Errorf("failed to get account by ID: %w", err)
	}

	return account, nil
}

// GetActiveIDs retrieves the ids of all active accounts
func (r *AccountRepositoryImpl) GetActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM user_accounts WHERE status = 'active' ORDER BY created_at ASC`

	rows, err := conn(ctx, r.db).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active accounts: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active accounts: %w", err)
	}

	return ids, nil
}

// ApplyRealizedPnL moves balance by pnl and recomputes profit_loss
func (r *AccountRepositoryImpl) ApplyRealizedPnL(ctx context.Context, id uuid.UUID, pnl decimal.Decimal, outcome domain.TradeOutcome) error {
	winInc, lossInc := 0, 0
	switch outcome {
	case domain.OutcomeWin:
		winInc = 1
	case domain.OutcomeLoss:
		lossInc = 1
	}

	query := `
		UPDATE user_accounts
		SET balance = balance + $1,
		    profit_loss = balance + $1 - initial_balance,
		    winning_trades = winning_trades + $2,
		    losing_trades = losing_trades + $3
		WHERE id = $4 AND status NOT IN ('passed', 'failed')
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query, pnl, winInc, lossInc, id)
	if err != nil {
		return fmt.Errorf("failed to apply realized pnl to account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, domain.ErrAccountClosed)
	}

	return nil
}

// IncrementTradeCount bumps total_trades by one
func (r *AccountRepositoryImpl) IncrementTradeCount(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE user_accounts
		SET total_trades = total_trades + 1
		WHERE id = $1 AND status NOT IN ('passed', 'failed')
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to increment trade count for account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", id, domain.ErrAccountClosed)
	}

	return nil
}

// TransitionStatus moves the account between statuses, conditional on the
// current one so concurrent transitions lose cleanly
func (r *AccountRepositoryImpl) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, completedAt *time.Time) error {
	if !domain.ValidTransition(from, to) {
		return fmt.Errorf("account %s: %s -> %s: %w", id, from, to, domain.ErrInvalidTransition)
	}

	query := `
		UPDATE user_accounts
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query, to, completedAt, id, from)
	if err != nil {
		return fmt.Errorf("failed to transition account %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s is no longer %s: %w", id, from, domain.ErrInvalidTransition)
	}

	return nil
}
