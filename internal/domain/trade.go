package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeStatus constants
const (
	TradeOpen   = "open"
	TradeClosed = "closed"
)

// TradeLedgerEntry is the append-only audit record of an open/close pair.
// The entry is created when the position opens and finalized exactly once
// when it closes; after that it is never mutated.
type TradeLedgerEntry struct {
	ID         uuid.UUID        `json:"id"`
	AccountID  uuid.UUID        `json:"account_id"`
	PositionID uuid.UUID        `json:"position_id"`
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	ExitPrice  *decimal.Decimal `json:"exit_price,omitempty"`
	Quantity   decimal.Decimal  `json:"quantity"`
	ProfitLoss decimal.Decimal  `json:"profit_loss"`
	Status     string           `json:"status"`
	OpenedAt   time.Time        `json:"opened_at"`
	ClosedAt   *time.Time       `json:"closed_at,omitempty"`
}
