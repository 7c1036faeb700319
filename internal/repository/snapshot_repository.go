package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"propdesk/internal/domain"
)

// SnapshotRepositoryImpl implements the SnapshotRepository interface
type SnapshotRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewSnapshotRepository creates a new SnapshotRepository
func NewSnapshotRepository(db *pgxpool.Pool) domain.SnapshotRepository {
	return &SnapshotRepositoryImpl{db: db}
}

// Append stores a new point-in-time snapshot
func (r *SnapshotRepositoryImpl) Append(ctx context.Context, snapshot *domain.AccountSnapshot) error {
	query := `
		INSERT INTO account_snapshots (
			id, account_id, balance, equity, unrealized_pnl,
			daily_pnl, daily_pnl_pct, drawdown_pct, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	_, err := conn(ctx, r.db).Exec(ctx, query,
		snapshot.ID,
		snapshot.AccountID,
		snapshot.Balance,
		snapshot.Equity,
		snapshot.UnrealizedPnL,
		snapshot.DailyPnL,
		snapshot.DailyPnLPct,
		snapshot.DrawdownPct,
		snapshot.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to append account snapshot: %w", err)
	}

	return nil
}
