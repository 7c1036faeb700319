package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
)

// TradeRepositoryImpl implements the TradeRepository interface
type TradeRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db *pgxpool.Pool) domain.TradeRepository {
	return &TradeRepositoryImpl{db: db}
}

// Append records the open event of a position
func (r *TradeRepositoryImpl) Append(ctx context.Context, entry *domain.TradeLedgerEntry) error {
	query := `
		INSERT INTO trades (
			id, account_id, position_id, symbol, side, entry_price,
			quantity, profit_loss, status, opened_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		entry.ID,
		entry.AccountID,
		entry.PositionID,
		entry.Symbol,
		entry.Side,
		entry.EntryPrice,
		entry.Quantity,
		entry.ProfitLoss,
		entry.Status,
		entry.OpenedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append trade entry: %w", err)
	}

	return nil
}

// Finalize records the close event on the open entry for the position.
// The status guard keeps finalized entries immutable.
func (r *TradeRepositoryImpl) Finalize(ctx context.Context, positionID uuid.UUID, exitPrice, profitLoss decimal.Decimal, closedAt time.Time) error {
	query := `
		UPDATE trades
		SET exit_price = $1, profit_loss = $2, closed_at = $3, status = 'closed'
		WHERE position_id = $4 AND status = 'open'
	`

	_, err := conn(ctx, r.db).Exec(ctx, query, exitPrice, profitLoss, closedAt, positionID)
	if err != nil {
		return fmt.Errorf("failed to finalize trade for position %s: %w", positionID, err)
	}

	return nil
}

// GetByAccount retrieves ledger entries for an account, newest first
func (r *TradeRepositoryImpl) GetByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.TradeLedgerEntry, error) {
	query := `
		SELECT id, account_id, position_id, symbol, side, entry_price,
		       exit_price, quantity, profit_loss, status, opened_at, closed_at
		FROM trades
		WHERE account_id = $1
		ORDER BY opened_at DESC
		LIMIT $2
	`

	rows, err := conn(ctx, r.db).Query(ctx, query, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TradeLedgerEntry
	for rows.Next() {
		entry := &domain.TradeLedgerEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.AccountID,
			&entry.PositionID,
			&entry.Symbol,
			&entry.Side,
			&entry.EntryPrice,
			&entry.ExitPrice,
			&entry.Quantity,
			&entry.ProfitLoss,
			&entry.Status,
			&entry.OpenedAt,
			&entry.ClosedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return entries, nil
}
