package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStatus constants
const (
	AccountPending = "pending"
	AccountActive  = "active"
	AccountPassed  = "passed"
	AccountFailed  = "failed"
)

// ChallengeRules is the rule snapshot embedded into an account at purchase
// time. Later edits to the challenge catalog never affect running accounts.
type ChallengeRules struct {
	AccountSize       decimal.Decimal `json:"account_size"`
	ProfitTargetPct   decimal.Decimal `json:"profit_target_pct"`
	DailyLossLimitPct decimal.Decimal `json:"daily_loss_limit_pct"`
	MaxDrawdownPct    decimal.Decimal `json:"max_drawdown_pct"`
	ProfitSplitPct    decimal.Decimal `json:"profit_split_pct"`
	PhaseCount        int             `json:"phase_count"`
	MinTradingDays    int             `json:"min_trading_days"`
	LeverageCap       decimal.Decimal `json:"leverage_cap"`
}

// Account is the per-challenge trading account aggregate. Balance moves only
// at realized-PnL events; equity is always derived, never stored.
type Account struct {
	ID             uuid.UUID       `json:"id"`
	OwnerID        uuid.UUID       `json:"owner_id"`
	Rules          ChallengeRules  `json:"rules"`
	Balance        decimal.Decimal `json:"balance"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	ProfitLoss     decimal.Decimal `json:"profit_loss"`
	Status         string          `json:"status"`
	CurrentPhase   int             `json:"current_phase"`
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	LosingTrades   int             `json:"losing_trades"`
	CreatedAt      time.Time       `json:"created_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the account reached a final state. Terminal
// accounts accept no further mutation.
func (a *Account) IsTerminal() bool {
	return a.Status == AccountPassed || a.Status == AccountFailed
}

// IsActive reports whether the account may gain new positions.
func (a *Account) IsActive() bool {
	return a.Status == AccountActive
}

// ValidTransition reports whether a status change is allowed. The only legal
// edges are pending→active, active→passed, and active→failed.
func ValidTransition(from, to string) bool {
	switch {
	case from == AccountPending && to == AccountActive:
		return true
	case from == AccountActive && to == AccountPassed:
		return true
	case from == AccountActive && to == AccountFailed:
		return true
	}
	return false
}

// TradeOutcome classifies a realized-PnL event for win/loss bookkeeping.
type TradeOutcome int

const (
	// OutcomeNone applies realized PnL without touching the counters
	// (forced closes: stop-loss, take-profit, liquidation).
	OutcomeNone TradeOutcome = iota
	OutcomeWin
	OutcomeLoss
)
