package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"propdesk/internal/domain"
)

type txKey struct{}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so repository
// methods run against whichever the context carries.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn returns the transaction bound to ctx, or the pool when no
// transaction is in flight.
func conn(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return pool
}

// TxManagerImpl implements domain.TxManager on a pgx connection pool.
type TxManagerImpl struct {
	db *pgxpool.Pool
}

// NewTxManager creates a new TxManager
func NewTxManager(db *pgxpool.Pool) domain.TxManager {
	return &TxManagerImpl{db: db}
}

// WithinTx runs fn inside a single database transaction. Repository calls
// made with the derived context join it; any error rolls everything back.
func (m *TxManagerImpl) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		// Already inside a transaction, just run in it.
		return fn(ctx)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", domain.ErrStorageFailure)
	}
	defer tx.Rollback(ctx)

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", domain.ErrStorageFailure)
	}
	return nil
}
