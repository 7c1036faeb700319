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

// PositionRepositoryImpl implements the PositionRepository interface
type PositionRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewPositionRepository creates a new PositionRepository
func NewPositionRepository(db *pgxpool.Pool) domain.PositionRepository {
	return &PositionRepositoryImpl{db: db}
}

const positionColumns = `
	id, account_id, symbol, side, entry_price, quantity, leverage,
	stop_loss, take_profit, current_price, unrealized_pnl, status,
	opened_at, closed_at, close_reason`

func scanPosition(row pgx.Row) (*domain.Position, error) {
	position := &domain.Position{}
	err := row.Scan(
		&position.ID,
		&position.AccountID,
		&position.Symbol,
		&position.Side,
		&position.EntryPrice,
		&position.Quantity,
		&position.Leverage,
		&position.StopLoss,
		&position.TakeProfit,
		&position.CurrentPrice,
		&position.UnrealizedPnL,
		&position.Status,
		&position.OpenedAt,
		&position.ClosedAt,
		&position.CloseReason,
	)
	if err != nil {
		return nil, err
	}
	return position, nil
}

// Save creates a new open position
func (r *PositionRepositoryImpl) Save(ctx context.Context, position *domain.Position) error {
	query := `
		INSERT INTO positions (
			id, account_id, symbol, side, entry_price, quantity, leverage,
			stop_loss, take_profit, current_price, unrealized_pnl, status, opened_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13
		)
	`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		position.ID,
		position.AccountID,
		position.Symbol,
		position.Side,
		position.EntryPrice,
		position.Quantity,
		position.Leverage,
		position.StopLoss,
		position.TakeProfit,
		position.CurrentPrice,
		position.UnrealizedPnL,
		position.Status,
		position.OpenedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}

	return nil
}

// GetByID retrieves a position by ID
func (r *PositionRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions WHERE id = $1`

	position, err := scanPosition(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("position %s: %w", id, domain.ErrPositionNotFound)
		}
		return nil, fmt.Errorf("failed to get position by ID: %w", err)
	}

	return position, nil
}

// GetOpenByAccount retrieves all open positions for an account
func (r *PositionRepositoryImpl) GetOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE account_id = $1 AND status = 'open'
		ORDER BY opened_at ASC
	`
	return r.queryPositions(ctx, query, accountID)
}

// GetByAccount retrieves all positions for an account, newest first
func (r *PositionRepositoryImpl) GetByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	query := `
		SELECT ` + positionColumns + `
		FROM positions
		WHERE account_id = $1
		ORDER BY opened_at DESC
	`
	return r.queryPositions(ctx, query, accountID)
}

func (r *PositionRepositoryImpl) queryPositions(ctx context.Context, query string, args ...any) ([]*domain.Position, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []*domain.Position
	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, position)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// MarkPrice refreshes current_price/unrealized_pnl of an open position
func (r *PositionRepositoryImpl) MarkPrice(ctx context.Context, id uuid.UUID, price, unrealizedPnL decimal.Decimal) error {
	query := `
		UPDATE positions
		SET current_price = $1, unrealized_pnl = $2
		WHERE id = $3 AND status = 'open'
	`

	_, err := conn(ctx, r.db).Exec(ctx, query, price, unrealizedPnL, id)
	if err != nil {
		return fmt.Errorf("failed to mark position %s: %w", id, err)
	}

	return nil
}

// Close transitions an open position to closed or liquidated. The WHERE
// clause on status makes concurrent closes settle exactly once.
func (r *PositionRepositoryImpl) Close(ctx context.Context, id uuid.UUID, closePrice, realizedPnL decimal.Decimal, status, reason string, closedAt time.Time) error {
	query := `
		UPDATE positions
		SET current_price = $1,
		    unrealized_pnl = $2,
		    status = $3,
		    close_reason = $4,
		    closed_at = $5
		WHERE id = $6 AND status = 'open'
	`

	tag, err := conn(ctx, r.db).Exec(ctx, query, closePrice, realizedPnL, status, reason, closedAt, id)
	if err != nil {
		return fmt.Errorf("failed to close position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("position %s: %w", id, domain.ErrPositionNotOpen)
	}

	return nil
}
