package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxManager runs a function inside one atomic unit of work. Repository
// calls made with the context passed to fn join the same transaction; if fn
// returns an error nothing is observably changed.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// AccountRepository defines the interface for account ledger operations
type AccountRepository interface {
	// Save creates a new account
	Save(ctx context.Context, account *Account) error

	// GetByID retrieves the full account aggregate, rules included
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetActiveIDs retrieves the ids of all active accounts
	GetActiveIDs(ctx context.Context) ([]uuid.UUID, error)

	// ApplyRealizedPnL moves balance by pnl, recomputes profit_loss against
	// the initial balance, and bumps the win/loss counters per outcome
	ApplyRealizedPnL(ctx context.Context, id uuid.UUID, pnl decimal.Decimal, outcome TradeOutcome) error

	// IncrementTradeCount bumps total_trades by one
	IncrementTradeCount(ctx context.Context, id uuid.UUID) error

	// TransitionStatus moves the account from one status to another. The
	// update is conditional on the current status so a concurrent transition
	// loses cleanly with ErrInvalidTransition. completedAt is set for
	// terminal statuses.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, completedAt *time.Time) error
}

// PositionRepository defines the interface for position ledger operations
type PositionRepository interface {
	// Save creates a new open position
	Save(ctx context.Context, position *Position) error

	// GetByID retrieves a position by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Position, error)

	// GetOpenByAccount retrieves all open positions for an account
	GetOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]*Position, error)

	// GetByAccount retrieves all positions for an account, newest first
	GetByAccount(ctx context.Context, accountID uuid.UUID) ([]*Position, error)

	// MarkPrice refreshes current_price/unrealized_pnl of an open position
	MarkPrice(ctx context.Context, id uuid.UUID, price, unrealizedPnL decimal.Decimal) error

	// Close transitions an open position to closed or liquidated, fixing the
	// final mark as the realized value. Returns ErrPositionNotOpen when the
	// position is not currently open, which makes concurrent closes settle
	// exactly once.
	Close(ctx context.Context, id uuid.UUID, closePrice, realizedPnL decimal.Decimal, status, reason string, closedAt time.Time) error
}

// TradeRepository defines the interface for the append-only trade ledger
type TradeRepository interface {
	// Append records the open event of a position
	Append(ctx context.Context, entry *TradeLedgerEntry) error

	// Finalize records the close event on the entry opened for the position.
	// A finalized entry is never touched again.
	Finalize(ctx context.Context, positionID uuid.UUID, exitPrice, profitLoss decimal.Decimal, closedAt time.Time) error

	// GetByAccount retrieves ledger entries for an account, newest first
	GetByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*TradeLedgerEntry, error)
}

// SnapshotRepository defines the interface for audit snapshots
type SnapshotRepository interface {
	// Append stores a new point-in-time snapshot
	Append(ctx context.Context, snapshot *AccountSnapshot) error
}
