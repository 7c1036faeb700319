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

var hundred = decimal.NewFromInt(100)

// ClosedPosition describes one position force-closed during an evaluation.
type ClosedPosition struct {
	PositionID  uuid.UUID       `json:"position_id"`
	Symbol      string          `json:"symbol"`
	ClosePrice  decimal.Decimal `json:"close_price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Reason      string          `json:"reason"`
}

// EvaluationResult is the outcome of one risk evaluation cycle.
type EvaluationResult struct {
	Liquidated      bool             `json:"liquidated"`
	Reason          string           `json:"reason,omitempty"`
	Equity          decimal.Decimal  `json:"equity"`
	Balance         decimal.Decimal  `json:"balance"`
	FinalBalance    decimal.Decimal  `json:"final_balance,omitempty"`
	UnrealizedPnL   decimal.Decimal  `json:"unrealized_pnl"`
	DailyPnL        decimal.Decimal  `json:"daily_pnl"`
	DailyPnLPct     decimal.Decimal  `json:"daily_pnl_pct"`
	DrawdownPct     decimal.Decimal  `json:"drawdown_pct"`
	PositionsClosed []ClosedPosition `json:"positions_closed,omitempty"`
}

// RiskService prices open positions, evaluates rule breaches, and settles
// the resulting closes. It is, alongside TradeService, the only writer of
// ledger state; both serialize through the same per-account lock.
type RiskService struct {
	accounts    domain.AccountRepository
	positions   domain.PositionRepository
	trades      domain.TradeRepository
	snapshots   domain.SnapshotRepository
	prices      domain.PriceService
	alerts      domain.AlertPublisher
	tx          domain.TxManager
	locks       *lock.Keyed
	lockTimeout time.Duration
}

// NewRiskService creates a new RiskService
func NewRiskService(
	accounts domain.AccountRepository,
	positions domain.PositionRepository,
	trades domain.TradeRepository,
	snapshots domain.SnapshotRepository,
	prices domain.PriceService,
	alerts domain.AlertPublisher,
	tx domain.TxManager,
	locks *lock.Keyed,
	lockTimeout time.Duration,
) *RiskService {
	return &RiskService{
		accounts:    accounts,
		positions:   positions,
		trades:      trades,
		snapshots:   snapshots,
		prices:      prices,
		alerts:      alerts,
		tx:          tx,
		locks:       locks,
		lockTimeout: lockTimeout,
	}
}

// Evaluate runs one risk evaluation cycle for an account: refresh marks,
// aggregate equity/drawdown figures, liquidate the whole account on a rule
// breach or single positions on stop-loss/take-profit, and append an audit
// snapshot. A price lookup failing for one symbol degrades to that symbol's
// prior mark; it never aborts the cycle.
func (s *RiskService) Evaluate(ctx context.Context, accountID uuid.UUID) (*EvaluationResult, error) {
	release, err := acquireAccount(ctx, s.locks, s.lockTimeout, accountID)
	if err != nil {
		return nil, err
	}
	defer release()

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account %s has status %s: %w", accountID, account.Status, domain.ErrAccountNotActive)
	}

	openPositions, err := s.positions.GetOpenByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.refreshMarks(ctx, accountID, openPositions)

	totalUnrealized := decimal.Zero
	for _, position := range openPositions {
		totalUnrealized = totalUnrealized.Add(position.UnrealizedPnL)
	}

	equity := account.Balance.Add(totalUnrealized)
	dailyPnL := equity.Sub(account.InitialBalance)
	dailyPnLPct := dailyPnL.Div(account.InitialBalance).Mul(hundred)
	drawdownPct := account.InitialBalance.Sub(equity).Div(account.InitialBalance).Mul(hundred)

	result := &EvaluationResult{
		Equity:        equity,
		Balance:       account.Balance,
		UnrealizedPnL: totalUnrealized,
		DailyPnL:      dailyPnL,
		DailyPnLPct:   dailyPnLPct,
		DrawdownPct:   drawdownPct,
	}

	breachReason := ""
	if dailyPnLPct.LessThanOrEqual(account.Rules.DailyLossLimitPct.Neg()) {
		breachReason = fmt.Sprintf("Daily loss limit of %s%% breached", account.Rules.DailyLossLimitPct)
	}
	if drawdownPct.GreaterThanOrEqual(account.Rules.MaxDrawdownPct) {
		breachReason = fmt.Sprintf("Maximum drawdown of %s%% breached", account.Rules.MaxDrawdownPct)
	}

	if breachReason != "" {
		return s.liquidateAccount(ctx, account, openPositions, breachReason, result)
	}

	closed := s.settleStops(ctx, account, openPositions)
	result.PositionsClosed = closed

	now := time.Now()
	snapshot := &domain.AccountSnapshot{
		ID:            uuid.New(),
		AccountID:     accountID,
		Balance:       account.Balance,
		Equity:        equity,
		UnrealizedPnL: totalUnrealized,
		DailyPnL:      dailyPnL,
		DailyPnLPct:   dailyPnLPct,
		DrawdownPct:   drawdownPct,
		CreatedAt:     now,
	}
	if err := s.snapshots.Append(ctx, snapshot); err != nil {
		log.Printf("WARNING: Failed to append snapshot for account %s: %v", accountID, err)
	}

	return result, nil
}

// refreshMarks bulk-fetches quotes and re-marks each position that got a
// fresh price. Positions without a fresh quote keep their prior mark.
func (s *RiskService) refreshMarks(ctx context.Context, accountID uuid.UUID, positions []*domain.Position) {
	if len(positions) == 0 {
		return
	}

	symbolSet := make(map[string]bool)
	for _, position := range positions {
		symbolSet[position.Symbol] = true
	}
	symbols := make([]string, 0, len(symbolSet))
	for symbol := range symbolSet {
		symbols = append(symbols, symbol)
	}

	quotes, err := s.prices.GetQuotes(ctx, symbols)
	if err != nil {
		log.Printf("WARNING: Price lookup failed for account %s, keeping prior marks: %v", accountID, err)
		return
	}

	for _, position := range positions {
		quote, ok := quoteFor(quotes, position.Symbol)
		if !ok {
			log.Printf("WARNING: No quote for %s, keeping prior mark for position %s", position.Symbol, position.ID)
			continue
		}
		if err := position.Mark(quote.Price); err != nil {
			log.Printf("ERROR: Failed to mark position %s: %v", position.ID, err)
			continue
		}
		if err := s.positions.MarkPrice(ctx, position.ID, position.CurrentPrice, position.UnrealizedPnL); err != nil {
			log.Printf("ERROR: Failed to persist mark for position %s: %v", position.ID, err)
		}
	}
}

// liquidateAccount closes every open position at its latest known price,
// realizes all PnL into the balance, and fails the account. All of it
// commits in one transaction or not at all.
func (s *RiskService) liquidateAccount(ctx context.Context, account *domain.Account, openPositions []*domain.Position, reason string, result *EvaluationResult) (*EvaluationResult, error) {
	now := time.Now()
	totalRealized := decimal.Zero
	closed := make([]ClosedPosition, 0, len(openPositions))

	for _, position := range openPositions {
		realized := position.UnrealizedPnL.Round(2)
		totalRealized = totalRealized.Add(realized)
		closed = append(closed, ClosedPosition{
			PositionID:  position.ID,
			Symbol:      position.Symbol,
			ClosePrice:  position.CurrentPrice,
			RealizedPnL: realized,
			Reason:      reason,
		})
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i, position := range openPositions {
			if err := s.positions.Close(ctx, position.ID, position.CurrentPrice, closed[i].RealizedPnL, domain.PositionLiquidated, reason, now); err != nil {
				return err
			}
			if err := s.trades.Finalize(ctx, position.ID, position.CurrentPrice, closed[i].RealizedPnL, now); err != nil {
				return err
			}
		}
		if err := s.accounts.ApplyRealizedPnL(ctx, account.ID, totalRealized, domain.OutcomeNone); err != nil {
			return err
		}
		return s.accounts.TransitionStatus(ctx, account.ID, domain.AccountActive, domain.AccountFailed, &now)
	})
	if err != nil {
		return nil, fmt.Errorf("liquidation of account %s failed: %w", account.ID, err)
	}

	for _, c := range closed {
		s.publishAlert(ctx, account.ID, c)
	}

	result.Liquidated = true
	result.Reason = reason
	result.FinalBalance = account.Balance.Add(totalRealized)
	result.Balance = result.FinalBalance
	result.PositionsClosed = closed

	log.Printf("[RISK] Account %s LIQUIDATED: %s | finalBalance=%s dailyPnLPct=%s drawdownPct=%s",
		account.ID, reason, result.FinalBalance, result.DailyPnLPct, result.DrawdownPct)

	return result, nil
}

// settleStops closes each position whose latest price crossed its stop-loss
// or take-profit, one transaction per position. The account status is left
// untouched; a failure for one position never blocks the others.
func (s *RiskService) settleStops(ctx context.Context, account *domain.Account, openPositions []*domain.Position) []ClosedPosition {
	var closed []ClosedPosition

	for _, position := range openPositions {
		hit, reason := position.CheckStops(position.CurrentPrice)
		if !hit {
			continue
		}

		realized := position.UnrealizedPnL.Round(2)
		now := time.Now()

		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.positions.Close(ctx, position.ID, position.CurrentPrice, realized, domain.PositionClosed, reason, now); err != nil {
				return err
			}
			if err := s.trades.Finalize(ctx, position.ID, position.CurrentPrice, realized, now); err != nil {
				return err
			}
			return s.accounts.ApplyRealizedPnL(ctx, account.ID, realized, domain.OutcomeNone)
		})
		if err != nil {
			log.Printf("ERROR: Failed to close position %s via %s: %v", position.ID, reason, err)
			continue
		}

		c := ClosedPosition{
			PositionID:  position.ID,
			Symbol:      position.Symbol,
			ClosePrice:  position.CurrentPrice,
			RealizedPnL: realized,
			Reason:      reason,
		}
		closed = append(closed, c)
		s.publishAlert(ctx, account.ID, c)

		log.Printf("[RISK] Position %s closed via %s @ %s | pnl=%s", position.ID, reason, position.CurrentPrice, realized)
	}

	return closed
}

func (s *RiskService) publishAlert(ctx context.Context, accountID uuid.UUID, c ClosedPosition) {
	alert := domain.LiquidationAlert{
		AccountID:  accountID,
		PositionID: c.PositionID,
		Symbol:     c.Symbol,
		ClosePrice: c.ClosePrice,
		Reason:     c.Reason,
	}
	if err := s.alerts.PublishLiquidation(ctx, alert); err != nil {
		log.Printf("WARNING: Failed to publish liquidation alert for position %s: %v", c.PositionID, err)
	}
}

// quoteFor resolves a position symbol against the quote map, tolerating
// chart-style symbol spellings ("BINANCE:BTCUSDT", "BTC/USDT").
func quoteFor(quotes map[string]domain.PriceQuote, symbol string) (domain.PriceQuote, bool) {
	if quote, ok := quotes[symbol]; ok {
		return quote, true
	}
	normalized := strings.ToUpper(symbol)
	if i := strings.IndexByte(normalized, ':'); i >= 0 {
		normalized = normalized[i+1:]
	}
	normalized = strings.ReplaceAll(normalized, "/", "")
	quote, ok := quotes[normalized]
	return quote, ok
}
