package dto

import "github.com/shopspring/decimal"

// OpenTradeRequest is the payload for opening a position
type OpenTradeRequest struct {
	Symbol     string           `json:"symbol"`
	Side       string           `json:"side"`
	Quantity   decimal.Decimal  `json:"quantity"`
	Leverage   decimal.Decimal  `json:"leverage"`
	StopLoss   *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit *decimal.Decimal `json:"take_profit,omitempty"`
}

// CreateAccountRequest is the payload for provisioning a challenge account
type CreateAccountRequest struct {
	AccountSize       decimal.Decimal `json:"account_size"`
	ProfitTargetPct   decimal.Decimal `json:"profit_target_pct"`
	DailyLossLimitPct decimal.Decimal `json:"daily_loss_limit_pct"`
	MaxDrawdownPct    decimal.Decimal `json:"max_drawdown_pct"`
	ProfitSplitPct    decimal.Decimal `json:"profit_split_pct"`
	PhaseCount        int             `json:"phase_count"`
	MinTradingDays    int             `json:"min_trading_days"`
	LeverageCap       decimal.Decimal `json:"leverage_cap"`
}

// PaymentConfirmedRequest is the webhook payload sent by the payment
// collaborator once a challenge purchase settles
type PaymentConfirmedRequest struct {
	AccountID string `json:"account_id"`
	OrderID   string `json:"order_id"`
}
