// Package memory provides an in-memory implementation of every repository
// interface plus the transaction manager. It backs the test suite and the
// STORE_DRIVER=memory mode used for local development without Postgres.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"propdesk/internal/domain"
)

type txKey struct{}

// Store holds all records behind a single mutex. Logical operations are
// already serialized per account by the callers; the mutex only protects
// map access across accounts.
type Store struct {
	mu        sync.Mutex
	accounts  map[uuid.UUID]*domain.Account
	positions map[uuid.UUID]*domain.Position
	trades    map[uuid.UUID]*domain.TradeLedgerEntry
	snapshots []*domain.AccountSnapshot
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		accounts:  make(map[uuid.UUID]*domain.Account),
		positions: make(map[uuid.UUID]*domain.Position),
		trades:    make(map[uuid.UUID]*domain.TradeLedgerEntry),
	}
}

// lock acquires the store mutex unless ctx is already inside a transaction,
// which holds it for the whole unit of work.
func (s *Store) lock(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithinTx implements domain.TxManager. State is snapshotted up front and
// restored when fn fails, so partial writes are never observable.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	backupAccounts := make(map[uuid.UUID]*domain.Account, len(s.accounts))
	for id, a := range s.accounts {
		backupAccounts[id] = copyAccount(a)
	}
	backupPositions := make(map[uuid.UUID]*domain.Position, len(s.positions))
	for id, p := range s.positions {
		backupPositions[id] = copyPosition(p)
	}
	backupTrades := make(map[uuid.UUID]*domain.TradeLedgerEntry, len(s.trades))
	for id, t := range s.trades {
		backupTrades[id] = copyTrade(t)
	}
	backupSnapshots := append([]*domain.AccountSnapshot(nil), s.snapshots...)

	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.accounts = backupAccounts
		s.positions = backupPositions
		s.trades = backupTrades
		s.snapshots = backupSnapshots
		return err
	}
	return nil
}

// --- AccountRepository ---

// Save creates a new account
func (s *Store) Save(ctx context.Context, account *domain.Account) error {
	defer s.lock(ctx)()
	s.accounts[account.ID] = copyAccount(account)
	return nil
}

// GetByID retrieves the full account aggregate
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	defer s.lock(ctx)()
	account, ok := s.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %s: not found", id)
	}
	return copyAccount(account), nil
}

// GetActiveIDs retrieves the ids of all active accounts
func (s *Store) GetActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	defer s.lock(ctx)()
	var ids []uuid.UUID
	for id, a := range s.accounts {
		if a.Status == domain.AccountActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// ApplyRealizedPnL moves balance by pnl and recomputes profit_loss
func (s *Store) ApplyRealizedPnL(ctx context.Context, id uuid.UUID, pnl decimal.Decimal, outcome domain.TradeOutcome) error {
	defer s.lock(ctx)()
	account, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: not found", id)
	}
	if account.IsTerminal() {
		return fmt.Errorf("account %s: %w", id, domain.ErrAccountClosed)
	}
	account.Balance = account.Balance.Add(pnl)
	account.ProfitLoss = account.Balance.Sub(account.InitialBalance)
	switch outcome {
	case domain.OutcomeWin:
		account.WinningTrades++
	case domain.OutcomeLoss:
		account.LosingTrades++
	}
	return nil
}

// IncrementTradeCount bumps total_trades by one
func (s *Store) IncrementTradeCount(ctx context.Context, id uuid.UUID) error {
	defer s.lock(ctx)()
	account, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: not found", id)
	}
	if account.IsTerminal() {
		return fmt.Errorf("account %s: %w", id, domain.ErrAccountClosed)
	}
	account.TotalTrades++
	return nil
}

// TransitionStatus moves the account between statuses
func (s *Store) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, completedAt *time.Time) error {
	if !domain.ValidTransition(from, to) {
		return fmt.Errorf("account %s: %s -> %s: %w", id, from, to, domain.ErrInvalidTransition)
	}
	defer s.lock(ctx)()
	account, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: not found", id)
	}
	if account.Status != from {
		return fmt.Errorf("account %s is no longer %s: %w", id, from, domain.ErrInvalidTransition)
	}
	account.Status = to
	account.CompletedAt = completedAt
	return nil
}

// --- PositionRepository ---

// SavePosition creates a new open position
func (s *Store) SavePosition(ctx context.Context, position *domain.Position) error {
	defer s.lock(ctx)()
	s.positions[position.ID] = copyPosition(position)
	return nil
}

// GetPositionByID retrieves a position by ID
func (s *Store) GetPositionByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	defer s.lock(ctx)()
	position, ok := s.positions[id]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", id, domain.ErrPositionNotFound)
	}
	return copyPosition(position), nil
}

// GetOpenByAccount retrieves all open positions for an account
func (s *Store) GetOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	defer s.lock(ctx)()
	var positions []*domain.Position
	for _, p := range s.positions {
		if p.AccountID == accountID && p.Status == domain.PositionOpen {
			positions = append(positions, copyPosition(p))
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].OpenedAt.Before(positions[j].OpenedAt) })
	return positions, nil
}

// GetByAccount retrieves all positions for an account, newest first
func (s *Store) GetByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	defer s.lock(ctx)()
	var positions []*domain.Position
	for _, p := range s.positions {
		if p.AccountID == accountID {
			positions = append(positions, copyPosition(p))
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].OpenedAt.After(positions[j].OpenedAt) })
	return positions, nil
}

// MarkPrice refreshes current_price/unrealized_pnl of an open position
func (s *Store) MarkPrice(ctx context.Context, id uuid.UUID, price, unrealizedPnL decimal.Decimal) error {
	defer s.lock(ctx)()
	position, ok := s.positions[id]
	if !ok || position.Status != domain.PositionOpen {
		return nil
	}
	position.CurrentPrice = price
	position.UnrealizedPnL = unrealizedPnL
	return nil
}

// ClosePosition transitions an open position to closed or liquidated
func (s *Store) ClosePosition(ctx context.Context, id uuid.UUID, closePrice, realizedPnL decimal.Decimal, status, reason string, closedAt time.Time) error {
	defer s.lock(ctx)()
	position, ok := s.positions[id]
	if !ok {
		return fmt.Errorf("position %s: %w", id, domain.ErrPositionNotFound)
	}
	if position.Status != domain.PositionOpen {
		return fmt.Errorf("position %s: %w", id, domain.ErrPositionNotOpen)
	}
	position.CurrentPrice = closePrice
	position.UnrealizedPnL = realizedPnL
	position.Status = status
	position.CloseReason = &reason
	position.ClosedAt = &closedAt
	return nil
}

// --- TradeRepository ---

// Append records the open event of a position
func (s *Store) Append(ctx context.Context, entry *domain.TradeLedgerEntry) error {
	defer s.lock(ctx)()
	s.trades[entry.ID] = copyTrade(entry)
	return nil
}

// Finalize records the close event on the open entry for the position
func (s *Store) Finalize(ctx context.Context, positionID uuid.UUID, exitPrice, profitLoss decimal.Decimal, closedAt time.Time) error {
	defer s.lock(ctx)()
	for _, entry := range s.trades {
		if entry.PositionID == positionID && entry.Status == domain.TradeOpen {
			exit := exitPrice
			closed := closedAt
			entry.ExitPrice = &exit
			entry.ProfitLoss = profitLoss
			entry.ClosedAt = &closed
			entry.Status = domain.TradeClosed
		}
	}
	return nil
}

// GetTradesByAccount retrieves ledger entries for an account, newest first
func (s *Store) GetTradesByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.TradeLedgerEntry, error) {
	defer s.lock(ctx)()
	var entries []*domain.TradeLedgerEntry
	for _, entry := range s.trades {
		if entry.AccountID == accountID {
			entries = append(entries, copyTrade(entry))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].OpenedAt.After(entries[j].OpenedAt) })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// --- SnapshotRepository ---

// AppendSnapshot stores a new point-in-time snapshot
func (s *Store) AppendSnapshot(ctx context.Context, snapshot *domain.AccountSnapshot) error {
	defer s.lock(ctx)()
	cp := *snapshot
	s.snapshots = append(s.snapshots, &cp)
	return nil
}

// Snapshots returns all snapshots recorded for an account, oldest first.
func (s *Store) Snapshots(accountID uuid.UUID) []*domain.AccountSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.AccountSnapshot
	for _, snap := range s.snapshots {
		if snap.AccountID == accountID {
			cp := *snap
			out = append(out, &cp)
		}
	}
	return out
}

// --- repository views ---
//
// The interfaces in domain share method names (Save, GetByID, Append), so
// the store exposes one narrow view per repository.

// Accounts returns the store as a domain.AccountRepository.
func (s *Store) Accounts() domain.AccountRepository { return accountRepo{s} }

// Positions returns the store as a domain.PositionRepository.
func (s *Store) Positions() domain.PositionRepository { return positionRepo{s} }

// Trades returns the store as a domain.TradeRepository.
func (s *Store) Trades() domain.TradeRepository { return tradeRepo{s} }

// SnapshotsRepo returns the store as a domain.SnapshotRepository.
func (s *Store) SnapshotsRepo() domain.SnapshotRepository { return snapshotRepo{s} }

type accountRepo struct{ s *Store }

func (r accountRepo) Save(ctx context.Context, account *domain.Account) error {
	return r.s.Save(ctx, account)
}
func (r accountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return r.s.GetByID(ctx, id)
}
func (r accountRepo) GetActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	return r.s.GetActiveIDs(ctx)
}
func (r accountRepo) ApplyRealizedPnL(ctx context.Context, id uuid.UUID, pnl decimal.Decimal, outcome domain.TradeOutcome) error {
	return r.s.ApplyRealizedPnL(ctx, id, pnl, outcome)
}
func (r accountRepo) IncrementTradeCount(ctx context.Context, id uuid.UUID) error {
	return r.s.IncrementTradeCount(ctx, id)
}
func (r accountRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to string, completedAt *time.Time) error {
	return r.s.TransitionStatus(ctx, id, from, to, completedAt)
}

type positionRepo struct{ s *Store }

func (r positionRepo) Save(ctx context.Context, position *domain.Position) error {
	return r.s.SavePosition(ctx, position)
}
func (r positionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Position, error) {
	return r.s.GetPositionByID(ctx, id)
}
func (r positionRepo) GetOpenByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	return r.s.GetOpenByAccount(ctx, accountID)
}
func (r positionRepo) GetByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Position, error) {
	return r.s.GetByAccount(ctx, accountID)
}
func (r positionRepo) MarkPrice(ctx context.Context, id uuid.UUID, price, unrealizedPnL decimal.Decimal) error {
	return r.s.MarkPrice(ctx, id, price, unrealizedPnL)
}
func (r positionRepo) Close(ctx context.Context, id uuid.UUID, closePrice, realizedPnL decimal.Decimal, status, reason string, closedAt time.Time) error {
	return r.s.ClosePosition(ctx, id, closePrice, realizedPnL, status, reason, closedAt)
}

type tradeRepo struct{ s *Store }

func (r tradeRepo) Append(ctx context.Context, entry *domain.TradeLedgerEntry) error {
	return r.s.Append(ctx, entry)
}
func (r tradeRepo) Finalize(ctx context.Context, positionID uuid.UUID, exitPrice, profitLoss decimal.Decimal, closedAt time.Time) error {
	return r.s.Finalize(ctx, positionID, exitPrice, profitLoss, closedAt)
}
func (r tradeRepo) GetByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]*domain.TradeLedgerEntry, error) {
	return r.s.GetTradesByAccount(ctx, accountID, limit)
}

type snapshotRepo struct{ s *Store }

func (r snapshotRepo) Append(ctx context.Context, snapshot *domain.AccountSnapshot) error {
	return r.s.AppendSnapshot(ctx, snapshot)
}

// --- copies ---

func copyAccount(a *domain.Account) *domain.Account {
	cp := *a
	if a.CompletedAt != nil {
		t := *a.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func copyPosition(p *domain.Position) *domain.Position {
	cp := *p
	if p.StopLoss != nil {
		v := *p.StopLoss
		cp.StopLoss = &v
	}
	if p.TakeProfit != nil {
		v := *p.TakeProfit
		cp.TakeProfit = &v
	}
	if p.ClosedAt != nil {
		t := *p.ClosedAt
		cp.ClosedAt = &t
	}
	if p.CloseReason != nil {
		r := *p.CloseReason
		cp.CloseReason = &r
	}
	return &cp
}

func copyTrade(t *domain.TradeLedgerEntry) *domain.TradeLedgerEntry {
	cp := *t
	if t.ExitPrice != nil {
		v := *t.ExitPrice
		cp.ExitPrice = &v
	}
	if t.ClosedAt != nil {
		ts := *t.ClosedAt
		cp.ClosedAt = &ts
	}
	return &cp
}
