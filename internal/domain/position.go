package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PositionSide constants
const (
	SideLong  = "long"
	SideShort = "short"
)

// PositionStatus constants
const (
	PositionOpen       = "open"
	PositionClosed     = "closed"
	PositionLiquidated = "liquidated"
)

// CloseReason constants for positions closed by the engine. Account-wide
// liquidations carry the breached-rule message instead.
const (
	ReasonManual     = "manual"
	ReasonStopLoss   = "stop_loss"
	ReasonTakeProfit = "take_profit"
)

// Position is a leveraged long/short position on a challenge account.
// CurrentPrice and UnrealizedPnL are refreshed on every evaluation tick;
// once closed or liquidated the record is immutable.
type Position struct {
	ID            uuid.UUID        `json:"id"`
	AccountID     uuid.UUID        `json:"account_id"`
	Symbol        string           `json:"symbol"`
	Side          string           `json:"side"`
	EntryPrice    decimal.Decimal  `json:"entry_price"`
	Quantity      decimal.Decimal  `json:"quantity"`
	Leverage      decimal.Decimal  `json:"leverage"`
	StopLoss      *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit    *decimal.Decimal `json:"take_profit,omitempty"`
	CurrentPrice  decimal.Decimal  `json:"current_price"`
	UnrealizedPnL decimal.Decimal  `json:"unrealized_pnl"`
	Status        string           `json:"status"`
	OpenedAt      time.Time        `json:"opened_at"`
	ClosedAt      *time.Time       `json:"closed_at,omitempty"`
	CloseReason   *string          `json:"close_reason,omitempty"`
}

// IsLong checks whether the position profits from rising prices.
func (p *Position) IsLong() bool {
	return p.Side == SideLong
}

// Mark recomputes the position's price mark. Idempotent for a repeated
// identical price.
func (p *Position) Mark(price decimal.Decimal) error {
	pnl, err := UnrealizedPnL(p.Side, p.EntryPrice, price, p.Quantity, p.Leverage)
	if err != nil {
		return err
	}
	p.CurrentPrice = price
	p.UnrealizedPnL = pnl
	return nil
}

// CheckStops reports whether the latest price crossed the position's
// stop-loss or take-profit threshold and which reason applies.
func (p *Position) CheckStops(price decimal.Decimal) (bool, string) {
	if p.IsLong() {
		if p.StopLoss != nil && price.LessThanOrEqual(*p.StopLoss) {
			return true, ReasonStopLoss
		}
		if p.TakeProfit != nil && price.GreaterThanOrEqual(*p.TakeProfit) {
			return true, ReasonTakeProfit
		}
	} else {
		if p.StopLoss != nil && price.GreaterThanOrEqual(*p.StopLoss) {
			return true, ReasonStopLoss
		}
		if p.TakeProfit != nil && price.LessThanOrEqual(*p.TakeProfit) {
			return true, ReasonTakeProfit
		}
	}
	return false, ""
}
