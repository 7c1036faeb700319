package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceQuote is the result of a price lookup.
type PriceQuote struct {
	Symbol    string
	Price     decimal.Decimal
	Timestamp time.Time
}

// PriceService defines the interface for the market price lookup
// collaborator. Lookups fail with ErrPriceUnavailable; GetQuotes degrades
// per symbol and simply omits symbols it could not price.
type PriceService interface {
	GetQuote(ctx context.Context, symbol string) (PriceQuote, error)
	GetQuotes(ctx context.Context, symbols []string) (map[string]PriceQuote, error)
}

// LiquidationAlert is emitted whenever the engine force-closes a position.
type LiquidationAlert struct {
	AccountID  uuid.UUID       `json:"account_id"`
	PositionID uuid.UUID       `json:"position_id"`
	Symbol     string          `json:"symbol"`
	ClosePrice decimal.Decimal `json:"close_price"`
	Reason     string          `json:"reason"`
}

// AlertPublisher defines the interface for the outbound pub/sub
// collaborator. Delivery and fan-out to clients is its responsibility.
type AlertPublisher interface {
	PublishLiquidation(ctx context.Context, alert LiquidationAlert) error
}
