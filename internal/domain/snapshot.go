package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountSnapshot is a point-in-time audit record appended on every
// evaluation tick that does not liquidate the account.
type AccountSnapshot struct {
	ID            uuid.UUID       `json:"id"`
	AccountID     uuid.UUID       `json:"account_id"`
	Balance       decimal.Decimal `json:"balance"`
	Equity        decimal.Decimal `json:"equity"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	DailyPnL      decimal.Decimal `json:"daily_pnl"`
	DailyPnLPct   decimal.Decimal `json:"daily_pnl_pct"`
	DrawdownPct   decimal.Decimal `json:"drawdown_pct"`
	CreatedAt     time.Time       `json:"created_at"`
}
